package vm

import (
	"vela/internal/config"
	verrs "vela/internal/errors"
)

// Delegate is the host-bridging surface. Every hook is optional; a nil hook
// simply removes that fallback.
type Delegate struct {
	// BridgeGetUndef supplies a dynamically-typed property for a bridged
	// instance when ordinary resolution misses.
	BridgeGetUndef func(rt *Runtime, xdata interface{}, target Value, key string) (Value, bool)
	// BridgeSetUndef stores a dynamically-typed property on a bridged instance.
	BridgeSetUndef func(rt *Runtime, xdata interface{}, target Value, key string, value Value) bool
	// BridgeString stringifies a foreign instance.
	BridgeString func(rt *Runtime, xdata interface{}) (string, bool)
	// BridgeInitInstance constructs the foreign side of a bridged instance
	// when no user constructor matches.
	BridgeInitInstance func(rt *Runtime, xdata interface{}, inst *Instance, args []Value) bool
	// Print and Put receive System.print / System.put output.
	Print func(s string)
	Put   func(s string)
	// Exit is the single process-fatal escape hatch; the core never calls
	// os.Exit itself.
	Exit func(code int)
}

// Runtime is one independent object-runtime instance: class registry, globals,
// fiber scheduler state and configuration. Instances share no global state, so
// several can coexist.
type Runtime struct {
	Config   *config.Config
	Delegate *Delegate

	globals map[string]Value

	// core classes (the fixed built-in set)
	clsObject   *Class
	clsClass    *Class
	clsNull     *Class
	clsBool     *Class
	clsInt      *Class
	clsFloat    *Class
	clsString   *Class
	clsList     *Class
	clsMap      *Class
	clsRange    *Class
	clsFunction *Class
	clsClosure  *Class
	clsFiber    *Class
	clsInstance *Class
	clsSystem   *Class

	// scheduler state: exactly one fiber executes at a time
	mainFiber *Fiber
	fiber     *Fiber

	result       Value
	lastError    *verrs.RuntimeError
	pendingError *verrs.RuntimeError
	aborted      bool

	// re-entrancy bookkeeping for the conversion recursion guard and the
	// nested-native yield restriction
	active    *Closure
	nestedRun int
	loopDepth int

	// containers currently being rendered; self-references collapse to null
	stringifying map[Object]bool

	exitCode      int
	exitRequested bool
}

// New creates a runtime with registered core classes and a main fiber.
func New() *Runtime {
	return NewWithConfig(config.Default())
}

// NewWithConfig creates a runtime using the given option set
func NewWithConfig(cfg *config.Config) *Runtime {
	rt := &Runtime{
		Config:   cfg,
		Delegate: &Delegate{},
		globals:  map[string]Value{},
		result:   Null(),
	}
	rt.registerCoreClasses()
	rt.mainFiber = newFiber(nil)
	rt.mainFiber.started = true
	rt.mainFiber.status = fiberRunning
	rt.fiber = rt.mainFiber
	return rt
}

// SetGlobal defines or replaces a global by name
func (rt *Runtime) SetGlobal(name string, v Value) {
	rt.globals[name] = v
}

// Global looks up a global by name
func (rt *Runtime) Global(name string) (Value, bool) {
	v, ok := rt.globals[name]
	return v, ok
}

// Result returns the last produced result of the execution boundary
func (rt *Runtime) Result() Value { return rt.result }

// LastError returns the error that made RunClosure report failure
func (rt *Runtime) LastError() *verrs.RuntimeError { return rt.lastError }

// CurrentFiber returns the currently executing fiber
func (rt *Runtime) CurrentFiber() *Fiber { return rt.fiber }

// ExitRequested reports whether System.exit was called, and with which code
func (rt *Runtime) ExitRequested() (int, bool) { return rt.exitCode, rt.exitRequested }

// ClassOf is total and O(1): every variant maps to exactly one class.
func (rt *Runtime) ClassOf(v Value) *Class {
	switch v.kind {
	case KindNull:
		return rt.clsNull
	case KindBool:
		return rt.clsBool
	case KindInt:
		return rt.clsInt
	case KindFloat:
		return rt.clsFloat
	default:
		return v.obj.objclass(rt)
	}
}

// IsCoreClass reports whether c is one of the fixed built-in classes (or one
// of their metas). Binding methods onto these is forbidden.
func (rt *Runtime) IsCoreClass(c *Class) bool {
	for _, core := range []*Class{
		rt.clsObject, rt.clsClass, rt.clsNull, rt.clsBool, rt.clsInt,
		rt.clsFloat, rt.clsString, rt.clsList, rt.clsMap, rt.clsRange,
		rt.clsFunction, rt.clsClosure, rt.clsFiber, rt.clsInstance, rt.clsSystem,
	} {
		if c == core || (core != nil && c == core.meta) {
			return true
		}
	}
	return false
}

// CoreClass returns a built-in class by its registered name
func (rt *Runtime) CoreClass(name string) *Class {
	if v, ok := rt.globals[name]; ok {
		if c, ok := v.AsClass(); ok {
			return c
		}
	}
	return nil
}
