package vm

import (
	"fmt"
	"os"
	"strings"
	"time"
)

func (rt *Runtime) registerSystemClass() {
	c := rt.clsSystem
	meta := c.meta

	meta.BindNative("print", 1, systemPrint)
	meta.BindNative("put", 1, systemPut)
	meta.BindNative("nanotime", 0, systemNanotime)
	meta.BindNative("exit", 1, systemExit)

	bindProperty(meta, "gcEnabled", func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewBool(rt.Config.GCEnabled))
	}, func(rt *Runtime, recv Value, args []Value) Result {
		rb := rt.toBool(args[0])
		if rb.IsError() {
			return rb
		}
		rt.Config.GCEnabled = rb.Value().Bool()
		return NoValue()
	})
	bindProperty(meta, "gcMinThreshold", systemConfigIntGet(func(rt *Runtime) int { return rt.Config.GCMinThreshold }),
		systemConfigIntSet(func(rt *Runtime, n int) { rt.Config.GCMinThreshold = n }))
	bindProperty(meta, "gcThreshold", systemConfigIntGet(func(rt *Runtime) int { return rt.Config.GCThreshold }),
		systemConfigIntSet(func(rt *Runtime, n int) { rt.Config.GCThreshold = n }))
	bindProperty(meta, "maxCallDepth", systemConfigIntGet(func(rt *Runtime) int { return rt.Config.MaxCallDepth }),
		systemConfigIntSet(func(rt *Runtime, n int) { rt.Config.MaxCallDepth = n }))
	bindProperty(meta, "maxBlockSize", systemConfigIntGet(func(rt *Runtime) int { return rt.Config.MaxBlockSize }),
		systemConfigIntSet(func(rt *Runtime, n int) { rt.Config.MaxBlockSize = n }))
	bindProperty(meta, "maxRecursionDepth", systemConfigIntGet(func(rt *Runtime) int { return rt.Config.MaxRecursionDepth }),
		systemConfigIntSet(func(rt *Runtime, n int) { rt.Config.MaxRecursionDepth = n }))
	bindProperty(meta, "gcRatio", func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewFloat(rt.Config.GCRatio))
	}, func(rt *Runtime, recv Value, args []Value) Result {
		rf := rt.toFloat(args[0])
		if rf.IsError() {
			return rf
		}
		rt.Config.GCRatio = rf.Value().Float()
		return NoValue()
	})
}

func systemConfigIntGet(get func(rt *Runtime) int) NativeFn {
	return func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewInt(int64(get(rt))))
	}
}

func systemConfigIntSet(set func(rt *Runtime, n int)) NativeFn {
	return func(rt *Runtime, recv Value, args []Value) Result {
		ri := rt.toInt(args[0])
		if ri.IsError() {
			return ri
		}
		set(rt, int(ri.Value().Int()))
		return NoValue()
	}
}

func (rt *Runtime) renderArgs(args []Value) (string, Result) {
	parts := make([]string, len(args))
	for i, a := range args {
		s, err := rt.argString(a)
		if err != nil {
			return "", Fail(err)
		}
		parts[i] = s
	}
	return strings.Join(parts, " "), NoValue()
}

func systemPrint(rt *Runtime, recv Value, args []Value) Result {
	line, res := rt.renderArgs(args)
	if res.IsError() {
		return res
	}
	if rt.Delegate != nil && rt.Delegate.Print != nil {
		rt.Delegate.Print(line)
	} else {
		fmt.Fprintln(os.Stdout, line)
	}
	return NoValue()
}

func systemPut(rt *Runtime, recv Value, args []Value) Result {
	line, res := rt.renderArgs(args)
	if res.IsError() {
		return res
	}
	if rt.Delegate != nil && rt.Delegate.Put != nil {
		rt.Delegate.Put(line)
	} else {
		fmt.Fprint(os.Stdout, line)
	}
	return NoValue()
}

func systemNanotime(rt *Runtime, recv Value, args []Value) Result {
	return Done(NewInt(time.Now().UnixNano()))
}

// systemExit records the request; the host decides whether the process dies
func systemExit(rt *Runtime, recv Value, args []Value) Result {
	code := int64(0)
	if len(args) > 0 {
		ri := rt.toInt(args[0])
		if ri.IsError() {
			return ri
		}
		code = ri.Value().Int()
	}
	rt.exitCode = int(code)
	rt.exitRequested = true
	if rt.Delegate != nil && rt.Delegate.Exit != nil {
		rt.Delegate.Exit(int(code))
	}
	return NoValue()
}
