package vm

import (
	"sort"

	verrs "vela/internal/errors"
)

// registerCoreClasses bootstraps the fixed class set and their members. The
// two roots reference each other, so they are created first and their meta
// chains patched by hand; everything else hangs off Object.
func (rt *Runtime) registerCoreClasses() {
	rt.clsObject = NewClass(ClassNameObject, nil)
	rt.clsClass = NewClass(ClassNameClass, rt.clsObject)
	// statics resolve through meta -> ... -> Class -> Object
	rt.clsObject.meta.Super = rt.clsClass

	rt.clsNull = NewClass(ClassNameNull, rt.clsObject)
	rt.clsBool = NewClass(ClassNameBool, rt.clsObject)
	rt.clsInt = NewClass(ClassNameInt, rt.clsObject)
	rt.clsFloat = NewClass(ClassNameFloat, rt.clsObject)
	rt.clsString = NewClass(ClassNameString, rt.clsObject)
	rt.clsList = NewClass(ClassNameList, rt.clsObject)
	rt.clsMap = NewClass(ClassNameMap, rt.clsObject)
	rt.clsRange = NewClass(ClassNameRange, rt.clsObject)
	rt.clsFunction = NewClass(ClassNameFunction, rt.clsObject)
	rt.clsClosure = NewClass(ClassNameClosure, rt.clsObject)
	rt.clsFiber = NewClass(ClassNameFiber, rt.clsObject)
	rt.clsInstance = NewClass(ClassNameInstance, rt.clsObject)
	rt.clsSystem = NewClass(ClassNameSystem, rt.clsObject)

	rt.registerObjectClass()
	rt.registerClassClass()
	rt.registerNullClass()
	rt.registerBoolClass()
	rt.registerIntClass()
	rt.registerFloatClass()
	rt.registerStringClass()
	rt.registerListClass()
	rt.registerMapClass()
	rt.registerRangeClass()
	rt.registerFunctionClass()
	rt.registerClosureClass()
	rt.registerFiberClass()
	rt.registerSystemClass()

	for name, c := range map[string]*Class{
		ClassNameObject: rt.clsObject, ClassNameClass: rt.clsClass,
		ClassNameNull: rt.clsNull, ClassNameBool: rt.clsBool,
		ClassNameInt: rt.clsInt, ClassNameFloat: rt.clsFloat,
		ClassNameString: rt.clsString, ClassNameList: rt.clsList,
		ClassNameMap: rt.clsMap, ClassNameRange: rt.clsRange,
		ClassNameFunction: rt.clsFunction, ClassNameClosure: rt.clsClosure,
		ClassNameFiber: rt.clsFiber, ClassNameInstance: rt.clsInstance,
		ClassNameSystem: rt.clsSystem,
	} {
		rt.globals[name] = ObjectValue(c)
	}
}

// NewUserClass creates a user-defined class under the given superclass
// (Object when nil), inheriting the superclass ivar layout.
func (rt *Runtime) NewUserClass(name string, super *Class) *Class {
	if super == nil {
		super = rt.clsObject
	}
	c := NewClass(name, super)
	c.NIVars = super.NIVars
	if c.meta.Super == nil {
		c.meta.Super = rt.clsClass
	}
	return c
}

func bindInternal(c *Class, name string, nparams int, id internalID, fn NativeFn) {
	f := NewNativeFunction(name, nparams, fn)
	f.internal = id
	c.Bind(name, NewClosure(f))
}

func (rt *Runtime) registerObjectClass() {
	c := rt.clsObject

	c.BindNative(SelectorLoad, 1, objectLoad)
	c.BindNative(SelectorStore, 2, objectStore)
	c.BindNative(SelectorNotFound, 1, objectNotFound)
	c.BindNative("class", 0, objectClass)
	c.BindNative("meta", 0, objectMeta)
	c.BindNative("respondTo", 1, objectRespondTo)
	c.BindNative("methods", 0, objectMethods)
	c.BindNative("properties", 0, objectProperties)
	c.BindNative("clone", 0, objectClone)
	c.BindNative("bind", 2, objectBind)
	c.BindNative("unbind", 1, objectUnbind)
	c.BindNative(OpIs, 1, objectIs)
	c.BindNative(OpEqq, 1, objectIdentical)
	c.BindNative(OpNeqq, 1, objectNotIdentical)
	c.BindNative(OpCmp, 1, objectCmp)
	c.BindNative(OpNot, 0, objectNot)

	bindInternal(c, ClassNameInt, 0, internalConvertInt, convertDispatchInt)
	bindInternal(c, ClassNameFloat, 0, internalConvertFloat, convertDispatchFloat)
	bindInternal(c, ClassNameBool, 0, internalConvertBool, convertDispatchBool)
	bindInternal(c, ClassNameString, 0, internalConvertString, convertDispatchString)
}

func objectNotFound(rt *Runtime, recv Value, args []Value) Result {
	name := "?"
	if len(args) > 0 {
		if s, ok := args[0].AsString(); ok {
			name = s.S
		}
	}
	return Failf(verrs.LookupError, "unable to find %s into class %s", name, rt.ClassOf(recv).Name)
}

func objectClass(rt *Runtime, recv Value, args []Value) Result {
	return Done(ObjectValue(rt.ClassOf(recv)))
}

func objectMeta(rt *Runtime, recv Value, args []Value) Result {
	if c, ok := recv.AsClass(); ok && c.meta != nil {
		return Done(ObjectValue(c.meta))
	}
	return Done(ObjectValue(rt.ClassOf(recv)))
}

func objectRespondTo(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Done(NewBool(false))
	}
	s, ok := args[0].AsString()
	if !ok {
		return Done(NewBool(false))
	}
	return Done(NewBool(Resolve(rt.ClassOf(recv), s.S) != nil))
}

// introspectNames lists member names up the chain, methods or properties
func introspectNames(c *Class, properties bool) []Value {
	seen := map[string]bool{}
	var names []string
	for ; c != nil; c = c.Super {
		for name, entry := range c.methods {
			if seen[name] || entry.Fn == nil {
				continue
			}
			seen[name] = true
			if entry.Fn.IsSpecial() == properties {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	out := make([]Value, len(names))
	for i, n := range names {
		out[i] = NewString(n)
	}
	return out
}

func objectMethods(rt *Runtime, recv Value, args []Value) Result {
	return Done(ObjectValue(NewList(introspectNames(rt.ClassOf(recv), false)...)))
}

func objectProperties(rt *Runtime, recv Value, args []Value) Result {
	return Done(ObjectValue(NewList(introspectNames(rt.ClassOf(recv), true)...)))
}

func objectClone(rt *Runtime, recv Value, args []Value) Result {
	switch o := recv.Obj().(type) {
	case *Instance:
		return Done(ObjectValue(o.Clone()))
	case *List:
		items := make([]Value, len(o.Items))
		copy(items, o.Items)
		return Done(ObjectValue(NewList(items...)))
	case *Map:
		return Done(ObjectValue(o.Clone()))
	}
	// value kinds and immutable objects clone to themselves
	return Done(recv)
}

// objectBind adds a method at runtime: onto the class itself for a class
// receiver, onto a synthesized per-object class for an instance receiver.
// Core classes are sealed.
func objectBind(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 2 {
		return Failf(verrs.BindError, "bind requires a name and a closure")
	}
	name, ok := args[0].AsString()
	if !ok {
		return Failf(verrs.BindError, "bind name must be a String")
	}
	cl, ok := args[1].AsClosure()
	if !ok {
		if fn, ok := args[1].AsFunction(); ok {
			cl = NewClosure(fn)
		} else {
			return Failf(verrs.BindError, "bind value must be a Closure")
		}
	}

	if c, ok := recv.AsClass(); ok {
		if rt.IsCoreClass(c) {
			return Failf(verrs.BindError, "unable to bind %s to a core class", name.S)
		}
		c.Bind(name.S, cl)
		return NoValue()
	}
	if inst, ok := recv.AsInstance(); ok {
		if !inst.Class.IsAnon() {
			anon := newAnonClass(inst.Class)
			anon.NIVars = inst.Class.NIVars
			anon.meta.Super = rt.clsClass
			inst.Class = anon
		}
		inst.Class.Bind(name.S, cl)
		return NoValue()
	}
	return Failf(verrs.BindError, "unable to bind %s to a %s value", name.S, rt.ClassOf(recv).Name)
}

func objectUnbind(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.BindError, "unbind requires a name")
	}
	name, ok := args[0].AsString()
	if !ok {
		return Failf(verrs.BindError, "unbind name must be a String")
	}
	var target *Class
	if c, ok := recv.AsClass(); ok {
		target = c
	} else if inst, ok := recv.AsInstance(); ok {
		target = inst.Class
	} else {
		return Failf(verrs.BindError, "unable to unbind %s from a %s value", name.S, rt.ClassOf(recv).Name)
	}
	if rt.IsCoreClass(target) {
		return Failf(verrs.BindError, "unable to unbind %s from a core class", name.S)
	}
	if entry := target.lookupOwn(name.S); entry != nil {
		// sever the context so the closure no longer keeps its target alive
		entry.Context = nil
		delete(target.methods, name.S)
	}
	return NoValue()
}

func objectIs(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Done(NewBool(false))
	}
	want, ok := args[0].AsClass()
	if !ok {
		return Done(NewBool(false))
	}
	for c := rt.ClassOf(recv); c != nil; c = c.Super {
		if c == want {
			return Done(NewBool(true))
		}
	}
	return Done(NewBool(false))
}

func objectIdentical(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Done(NewBool(false))
	}
	return Done(NewBool(rt.identical(recv, args[0])))
}

func objectNotIdentical(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Done(NewBool(true))
	}
	return Done(NewBool(!rt.identical(recv, args[0])))
}

func objectCmp(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "comparison requires an argument")
	}
	n, err := rt.compare(recv, args[0])
	if err != nil {
		return Fail(err)
	}
	return Done(NewInt(int64(n)))
}

func objectNot(rt *Runtime, recv Value, args []Value) Result {
	res := rt.toBool(recv)
	if res.IsError() {
		return res
	}
	return Done(NewBool(!res.Value().Bool()))
}

func convertDispatchInt(rt *Runtime, recv Value, args []Value) Result {
	return rt.toInt(recv)
}

func convertDispatchFloat(rt *Runtime, recv Value, args []Value) Result {
	return rt.toFloat(recv)
}

func convertDispatchBool(rt *Runtime, recv Value, args []Value) Result {
	return rt.toBool(recv)
}

func convertDispatchString(rt *Runtime, recv Value, args []Value) Result {
	return rt.toString(recv)
}

func (rt *Runtime) registerClassClass() {
	c := rt.clsClass
	c.BindNative("name", 0, className)
	c.BindNative(SelectorExec, 0, classExec)
}

func className(rt *Runtime, recv Value, args []Value) Result {
	if c, ok := recv.AsClass(); ok {
		return Done(NewString(c.Name))
	}
	return Done(NewString(rt.ClassOf(recv).Name))
}

// classExec constructs an instance: allocate, run the arity-matched
// constructor if any, fall back to the host bridge for foreign classes.
// The constructor's own return value is discarded.
func classExec(rt *Runtime, recv Value, args []Value) Result {
	c, ok := recv.AsClass()
	if !ok {
		return Failf(verrs.TypeError, "unable to construct from a %s value", rt.ClassOf(recv).Name)
	}
	if err := rt.lazyMetaInit(c); err != nil {
		return Fail(err)
	}
	inst := c.NewInstance()
	self := ObjectValue(inst)

	ctor := c.lookupConstructor(len(args))
	if ctor != nil {
		if !rt.RunClosure(ctor, self, args) {
			return rt.propagate()
		}
		return Done(self)
	}
	if len(c.constructors) > 0 {
		return Failf(verrs.TypeError, "no constructor of class %s accepts %d arguments", c.Name, len(args))
	}
	if rt.Delegate != nil && rt.Delegate.BridgeInitInstance != nil && c.XData != nil {
		if !rt.Delegate.BridgeInitInstance(rt, c.XData, inst, args) {
			return Failf(verrs.TypeError, "bridge failed to initialize an instance of %s", c.Name)
		}
	}
	return Done(self)
}

func (rt *Runtime) registerNullClass() {
	c := rt.clsNull
	c.BindNative(OpNot, 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewBool(true))
	})
	c.BindNative(SelectorExec, 0, func(rt *Runtime, recv Value, args []Value) Result {
		// calling null quietly produces null
		return Done(Null())
	})
	// null absorbs arithmetic
	for _, op := range []string{OpAdd, OpSub, OpMul, OpDiv, OpRem} {
		c.BindNative(op, 1, func(rt *Runtime, recv Value, args []Value) Result {
			return Done(Null())
		})
	}
}

func (rt *Runtime) registerBoolClass() {
	c := rt.clsBool
	c.BindNative(OpNot, 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewBool(!recv.Bool()))
	})
	c.BindNative(OpAnd, 1, boolBinary(func(a, b bool) bool { return a && b }))
	c.BindNative(OpOr, 1, boolBinary(func(a, b bool) bool { return a || b }))
	c.BindNative(OpBand, 1, boolBinary(func(a, b bool) bool { return a && b }))
	c.BindNative(OpBor, 1, boolBinary(func(a, b bool) bool { return a || b }))
	c.BindNative(OpBxor, 1, boolBinary(func(a, b bool) bool { return a != b }))
	// booleans take part in arithmetic as 0/1
	for _, op := range []string{OpAdd, OpSub, OpMul, OpDiv, OpRem} {
		op := op
		c.BindNative(op, 1, func(rt *Runtime, recv Value, args []Value) Result {
			return rt.Dispatch(NewInt(recv.n), op, args)
		})
	}
}

func boolBinary(op func(a, b bool) bool) NativeFn {
	return func(rt *Runtime, recv Value, args []Value) Result {
		if len(args) < 1 {
			return Failf(verrs.TypeError, "boolean operator requires an argument")
		}
		rb := rt.toBool(args[0])
		if rb.IsError() {
			return rb
		}
		return Done(NewBool(op(recv.Bool(), rb.Value().Bool())))
	}
}

func (rt *Runtime) registerFunctionClass() {
	c := rt.clsFunction
	c.BindNative(SelectorExec, 0, functionExec)
	c.BindNative("closure", 0, functionClosure)
	c.BindNative("name", 0, func(rt *Runtime, recv Value, args []Value) Result {
		if fn, ok := recv.AsFunction(); ok {
			return Done(NewString(fn.Name))
		}
		return Done(NewString(""))
	})
}

func functionExec(rt *Runtime, recv Value, args []Value) Result {
	fn, ok := recv.AsFunction()
	if !ok {
		return Failf(verrs.TypeError, "unable to execute a %s value", rt.ClassOf(recv).Name)
	}
	return TailCallWith(NewClosure(fn), args...)
}

func functionClosure(rt *Runtime, recv Value, args []Value) Result {
	fn, ok := recv.AsFunction()
	if !ok {
		return Failf(verrs.TypeError, "closure requires a Func receiver")
	}
	return Done(ObjectValue(NewClosure(fn)))
}

func (rt *Runtime) registerClosureClass() {
	c := rt.clsClosure
	c.BindNative(SelectorExec, 0, closureExec)
	c.BindNative("apply", 2, closureApply)
	c.BindNative("bind", 1, closureBind)
}

func closureExec(rt *Runtime, recv Value, args []Value) Result {
	cl, ok := recv.AsClosure()
	if !ok {
		return Failf(verrs.TypeError, "unable to execute a %s value", rt.ClassOf(recv).Name)
	}
	return TailCallWith(cl, args...)
}

// closureApply runs the closure against an explicit receiver and argument list
func closureApply(rt *Runtime, recv Value, args []Value) Result {
	cl, ok := recv.AsClosure()
	if !ok {
		return Failf(verrs.TypeError, "apply requires a Closure receiver")
	}
	if len(args) < 2 {
		return Failf(verrs.TypeError, "apply requires a target and an argument list")
	}
	list, ok := args[1].AsList()
	if !ok {
		return Failf(verrs.TypeError, "apply arguments must be a List")
	}
	// an explicit target beats any bound context for this one call
	call := &Closure{Fn: cl.Fn}
	if !rt.RunClosure(call, args[0], list.Items) {
		return rt.propagate()
	}
	return Done(rt.result)
}

// closureBind attaches (or, given null, clears) the captured receiver
func closureBind(rt *Runtime, recv Value, args []Value) Result {
	cl, ok := recv.AsClosure()
	if !ok {
		return Failf(verrs.TypeError, "bind requires a Closure receiver")
	}
	if len(args) < 1 || args[0].IsNullClass() {
		cl.Context = nil
		return Done(recv)
	}
	if !args[0].IsObject() {
		return Failf(verrs.BindError, "unable to bind a closure to a %s value", rt.ClassOf(args[0]).Name)
	}
	cl.Context = args[0].Obj()
	return Done(recv)
}

func (rt *Runtime) registerFiberClass() {
	c := rt.clsFiber
	meta := c.meta

	meta.BindNative("create", 1, fiberCreate)
	meta.BindNative("yield", 0, fiberYield)
	meta.BindNative("yieldWaitTime", 1, fiberYieldWaitTime)
	meta.BindNative("abort", 1, fiberAbort)

	c.BindNative("call", 0, fiberCall)
	c.BindNative("try", 0, fiberTry)
	c.BindNative("status", 0, fiberStatus)
	c.BindNative("isDone", 0, fiberIsDone)
	c.BindNative("elapsedTime", 0, fiberElapsedTime)
	c.BindNative("error", 0, fiberErrorMsg)
}

func fiberCreate(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.FiberError, "Fiber.create requires a closure")
	}
	cl, ok := args[0].AsClosure()
	if !ok {
		if fn, ok := args[0].AsFunction(); ok {
			cl = NewClosure(fn)
		} else {
			return Failf(verrs.FiberError, "Fiber.create requires a closure")
		}
	}
	return Done(ObjectValue(rt.NewFiber(cl)))
}

func fiberYield(rt *Runtime, recv Value, args []Value) Result {
	return rt.yieldFiber(0)
}

func fiberYieldWaitTime(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return rt.yieldFiber(0)
	}
	rf := rt.toFloat(args[0])
	if rf.IsError() {
		return rf
	}
	return rt.yieldFiber(rf.Value().Float())
}

// fiberAbort raises an error on the current fiber; an untried chain aborts
// the whole execution.
func fiberAbort(rt *Runtime, recv Value, args []Value) Result {
	msg := "fiber aborted"
	if len(args) > 0 {
		rs := rt.toString(args[0])
		if rs.IsError() {
			return rs
		}
		if s, ok := rs.Value().AsString(); ok {
			msg = s.S
		}
	}
	return Failf(verrs.AbortedError, "%s", msg)
}

func fiberCall(rt *Runtime, recv Value, args []Value) Result {
	f, ok := recv.AsFiber()
	if !ok {
		return Failf(verrs.FiberError, "call requires a Fiber receiver")
	}
	return rt.resumeFiber(f, false)
}

func fiberTry(rt *Runtime, recv Value, args []Value) Result {
	f, ok := recv.AsFiber()
	if !ok {
		return Failf(verrs.FiberError, "try requires a Fiber receiver")
	}
	return rt.resumeFiber(f, true)
}

func fiberStatus(rt *Runtime, recv Value, args []Value) Result {
	f, ok := recv.AsFiber()
	if !ok {
		return Failf(verrs.FiberError, "status requires a Fiber receiver")
	}
	return Done(NewInt(int64(f.Status())))
}

func fiberIsDone(rt *Runtime, recv Value, args []Value) Result {
	f, ok := recv.AsFiber()
	if !ok {
		return Failf(verrs.FiberError, "isDone requires a Fiber receiver")
	}
	return Done(NewBool(f.IsDone()))
}

func fiberElapsedTime(rt *Runtime, recv Value, args []Value) Result {
	f, ok := recv.AsFiber()
	if !ok {
		return Failf(verrs.FiberError, "elapsedTime requires a Fiber receiver")
	}
	return Done(NewFloat(f.ElapsedTime()))
}

func fiberErrorMsg(rt *Runtime, recv Value, args []Value) Result {
	f, ok := recv.AsFiber()
	if !ok {
		return Failf(verrs.FiberError, "error requires a Fiber receiver")
	}
	if f.err == nil {
		return Done(Null())
	}
	return Done(NewString(f.err.Message))
}
