package vm

import (
	verrs "vela/internal/errors"
)

// Reserved selector names consumed by the dispatch layer. Operators are plain
// selectors resolved like any other method; there is no separate operator
// dispatch path.
const (
	SelectorExec     = "$exec"
	SelectorLoad     = "$load"
	SelectorStore    = "$store"
	SelectorLoadAt   = "$loadat"
	SelectorStoreAt  = "$storeat"
	SelectorNotFound = "$notfound"
	SelectorLoop     = "loop"
	SelectorIterate  = "iterate"
	SelectorNext     = "next"

	OpAdd  = "+"
	OpSub  = "-"
	OpDiv  = "/"
	OpMul  = "*"
	OpRem  = "%"
	OpAnd  = "&&"
	OpOr   = "||"
	OpCmp  = "<=>"
	OpNeg  = "neg"
	OpNot  = "!"
	OpBor  = "|"
	OpBand = "&"
	OpBxor = "^"
	OpIs   = "is"
	OpEqq  = "==="
	OpNeqq = "!=="
)

// Dispatch resolves name against the receiver's class and begins the call.
// Class receivers resolve on their meta-class (static members). A resolution
// miss invokes the not-found method, which Object guarantees to exist, so a
// missing member is a regular overridable operation. Native bodies run
// immediately; bytecode bodies come back as TailCall results for the caller's
// interpreter loop.
func (rt *Runtime) Dispatch(recv Value, name string, args []Value) Result {
	cls := rt.ClassOf(recv)
	entry := Resolve(cls, name)
	if entry == nil || entry.Fn == nil {
		return rt.dispatchNotFound(recv, cls, name)
	}
	if entry.Fn.IsSpecial() {
		// computed properties answer loads, not calls
		return rt.dispatchNotFound(recv, cls, name)
	}
	return rt.beginCall(entry, recv, args)
}

func (rt *Runtime) dispatchNotFound(recv Value, cls *Class, name string) Result {
	nf := Resolve(cls, SelectorNotFound)
	if nf == nil {
		// unreachable while Object carries the default, but never panic
		return Failf(verrs.LookupError, "unable to find %s into class %s", name, cls.Name)
	}
	res := rt.beginCall(nf, recv, []Value{NewString(name)})
	if res.kind == rClosure && res.cargs == nil {
		// a bytecode override still receives the missing name
		res.cargs = []Value{NewString(name)}
	}
	return res
}

// beginCall starts executing a closure: native bodies run now, bytecode
// bodies are deferred to the interpreter as tail calls.
func (rt *Runtime) beginCall(cl *Closure, recv Value, args []Value) Result {
	if cl.Context != nil {
		recv = ObjectValue(cl.Context)
	}
	switch cl.Fn.Kind {
	case FuncNative:
		prev := rt.active
		rt.active = cl
		res := cl.Fn.Native(rt, recv, args)
		rt.active = prev
		return res
	case FuncBytecode:
		return TailCall(cl)
	default:
		return Failf(verrs.TypeError, "forbidden execution of property %s", cl.Fn.Name)
	}
}

// CallMethod dispatches name on recv and runs the call to completion,
// returning the produced value. It is the convenience wrapper natives and
// embedders use when they need a finished value rather than a Result.
func (rt *Runtime) CallMethod(recv Value, name string, args []Value) (Value, *verrs.RuntimeError) {
	from := rt.fiber
	res := rt.Dispatch(recv, name, args)
	switch res.kind {
	case rValue:
		return res.value, nil
	case rNoValue:
		return Null(), nil
	case rFiber:
		// a fiber transfer from the host boundary: drive the scheduler until
		// control comes back
		if !rt.runLoop(from, len(from.frames)) {
			return Null(), rt.currentError()
		}
		return Null(), nil
	case rClosure:
		cargs := args
		if res.cargs != nil {
			cargs = res.cargs
		}
		if !rt.RunClosure(res.closure, recv, cargs) {
			return Null(), rt.lastError
		}
		return rt.result, nil
	default:
		return Null(), res.err
	}
}
