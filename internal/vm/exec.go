package vm

import (
	"vela/internal/bytecode"
	verrs "vela/internal/errors"
)

// RunClosure is the execution boundary: run cl with the given receiver and
// arguments, leaving the produced value in Result(). A false return means the
// call failed to produce a result; LastError() carries the reason.
func (rt *Runtime) RunClosure(cl *Closure, recv Value, args []Value) bool {
	if cl == nil || cl.Fn == nil {
		rt.lastError = verrs.New(verrs.TypeError, "unable to run a nil closure")
		return false
	}
	root := rt.nestedRun == 0
	if root {
		rt.resetForRun()
	}
	if rt.nestedRun >= rt.Config.MaxRecursionDepth {
		rt.raise(verrs.Newf(verrs.FiberError, "maximum recursion depth exceeded (%d)", rt.Config.MaxRecursionDepth))
		rt.lastError = rt.currentError()
		return false
	}
	rt.nestedRun++
	defer func() { rt.nestedRun-- }()

	entryFiber := rt.fiber
	entryDepth := len(entryFiber.frames)
	res := rt.beginCall(cl, recv, args)
	for {
		switch res.kind {
		case rValue:
			rt.result = res.value
			return true
		case rNoValue:
			rt.result = Null()
			return true
		case rClosure:
			next := res.closure
			cargs := args
			if res.cargs != nil {
				cargs = res.cargs
			}
			if next.Fn.Kind == FuncBytecode {
				return rt.runBytecode(next, recv, cargs)
			}
			res = rt.beginCall(next, recv, cargs)
		case rFiber:
			// control moved to another fiber; drive the scheduler until it
			// comes back to the fiber that issued this call
			if !rt.runLoop(entryFiber, entryDepth) {
				rt.lastError = rt.currentError()
				return false
			}
			return true
		default:
			rt.raise(res.err)
			rt.lastError = rt.currentError()
			return false
		}
	}
}

// runBytecode pushes a frame for cl on the current fiber and interprets until
// that frame returns.
func (rt *Runtime) runBytecode(cl *Closure, recv Value, args []Value) bool {
	f := rt.fiber
	entry := len(f.frames)
	if !rt.pushFrame(f, cl, recv, args) {
		rt.lastError = rt.currentError()
		return false
	}
	if !rt.runLoop(f, entry) {
		rt.lastError = rt.currentError()
		return false
	}
	return true
}

func (rt *Runtime) resetForRun() {
	rt.aborted = false
	rt.pendingError = nil
	rt.fiber = rt.mainFiber
	rt.mainFiber.err = nil
	rt.mainFiber.frames = rt.mainFiber.frames[:0]
	rt.mainFiber.stack = rt.mainFiber.stack[:0]
}

// raise records a runtime error; the outermost loop decides who catches it.
// The first error wins.
func (rt *Runtime) raise(err *verrs.RuntimeError) {
	if rt.pendingError == nil {
		rt.pendingError = err
	}
}

func (rt *Runtime) currentError() *verrs.RuntimeError {
	if rt.pendingError != nil {
		return rt.pendingError
	}
	return rt.lastError
}

// propagate is what natives return after a nested RunClosure failed
func (rt *Runtime) propagate() Result {
	return Fail(rt.currentError())
}

// pushFrame lays out [recv, args..., undefined-fill, locals...] on the fiber
// stack and activates a new frame over it.
func (rt *Runtime) pushFrame(f *Fiber, cl *Closure, recv Value, args []Value) bool {
	if len(f.frames) >= rt.Config.MaxCallDepth {
		rt.raise(verrs.Newf(verrs.FiberError, "maximum call depth exceeded (%d)", rt.Config.MaxCallDepth))
		return false
	}
	if cl.Context != nil {
		recv = ObjectValue(cl.Context)
	}
	slotBase := len(f.stack)
	f.push(recv)
	for _, a := range args {
		f.push(a)
	}
	// never leave declared parameters uninitialized
	for n := len(args); n < cl.Fn.NParams; n++ {
		f.push(Undefined())
	}
	for n := 0; n < cl.Fn.NLocals; n++ {
		f.push(Null())
	}
	f.frames = append(f.frames, frame{closure: cl, slotBase: slotBase})
	return true
}

// runLoop is the interpreter. One loop instance drives every fiber: a fiber
// switch just changes which frame stack the next iteration reads. Errors are
// resolved against the caller chain only by the outermost loop instance.
func (rt *Runtime) runLoop(stop *Fiber, stopDepth int) bool {
	rt.loopDepth++
	defer func() { rt.loopDepth-- }()

	for {
		if rt.pendingError != nil {
			if rt.loopDepth > 1 {
				return false
			}
			if !rt.resolveError() {
				return false
			}
			continue
		}

		f := rt.fiber
		if f == stop && len(f.frames) == stopDepth {
			return true
		}
		if len(f.frames) == 0 {
			if !f.started {
				f.started = true
				if !rt.pushFrame(f, f.closure, Null(), nil) {
					continue
				}
				continue
			}
			// terminated: hand control back to whoever resumed it
			caller := f.caller
			f.caller = nil
			f.trying = false
			if caller == nil {
				return true
			}
			rt.fiber = caller
			continue
		}
		rt.step(f)
	}
}

// resolveError walks the caller chain of the erroring fiber looking for a
// try-resumed fiber; its caller catches. With no catcher the whole execution
// is aborted. Returns false when nothing caught the error.
func (rt *Runtime) resolveError() bool {
	err := rt.pendingError
	f := rt.fiber
	for {
		caller := f.caller
		trying := f.trying
		f.err = err
		f.frames = nil
		f.stack = f.stack[:0]
		f.caller = nil
		f.trying = false
		if trying && caller != nil {
			rt.pendingError = nil
			rt.lastError = err
			rt.fiber = caller
			return true
		}
		if caller == nil {
			rt.pendingError = nil
			rt.lastError = err
			rt.aborted = true
			return false
		}
		f = caller
		rt.fiber = caller
	}
}

func (rt *Runtime) currentFrame(f *Fiber) *frame {
	return &f.frames[len(f.frames)-1]
}

func (fr *frame) chunk() *bytecode.Chunk { return fr.closure.Fn.Chunk }

func (rt *Runtime) readByte(fr *frame) byte {
	b := fr.chunk().Code[fr.ip]
	fr.ip++
	return b
}

func (rt *Runtime) readShort(fr *frame) int {
	c := fr.chunk().Code
	high := int(c[fr.ip])
	low := int(c[fr.ip+1])
	fr.ip += 2
	return (high << 8) | low
}

func (rt *Runtime) constant(fr *frame, idx byte) Value {
	return rt.toValue(fr.chunk().Constants[idx])
}

func (rt *Runtime) constantName(fr *frame, idx byte) string {
	if s, ok := fr.chunk().Constants[idx].(string); ok {
		return s
	}
	return ""
}

// step executes one instruction of f's top frame
func (rt *Runtime) step(f *Fiber) {
	fr := rt.currentFrame(f)
	if fr.ip >= len(fr.chunk().Code) {
		// instruction stream exhausted counts as a normal return
		rt.doReturn(f, Null())
		return
	}
	op := bytecode.OpCode(rt.readByte(fr))

	switch op {
	case bytecode.OpConstant:
		f.push(rt.constant(fr, rt.readByte(fr)))

	case bytecode.OpNil:
		f.push(Null())

	case bytecode.OpPop:
		f.pop()

	case bytecode.OpDup:
		f.push(f.peek())

	case bytecode.OpJump:
		offset := rt.readShort(fr)
		fr.ip += offset

	case bytecode.OpJumpIfFalse:
		offset := rt.readShort(fr)
		if !rt.truthy(f.pop()) {
			fr.ip += offset
		}

	case bytecode.OpLoop:
		offset := rt.readShort(fr)
		fr.ip -= offset

	case bytecode.OpGetGlobal:
		name := rt.constantName(fr, rt.readByte(fr))
		v, ok := rt.globals[name]
		if !ok {
			rt.raise(verrs.Newf(verrs.LookupError, "undefined global %q", name))
			return
		}
		f.push(v)

	case bytecode.OpSetGlobal:
		name := rt.constantName(fr, rt.readByte(fr))
		rt.globals[name] = f.pop()

	case bytecode.OpGetLocal:
		slot := int(rt.readByte(fr))
		f.push(f.stack[fr.slotBase+slot])

	case bytecode.OpSetLocal:
		slot := int(rt.readByte(fr))
		f.stack[fr.slotBase+slot] = f.peek()

	case bytecode.OpGetProperty:
		name := rt.constantName(fr, rt.readByte(fr))
		target := f.pop()
		res := rt.Dispatch(target, SelectorLoad, []Value{NewString(name)})
		rt.applyCallResult(f, target, res, nil, true)

	case bytecode.OpSetProperty:
		name := rt.constantName(fr, rt.readByte(fr))
		value := f.pop()
		target := f.pop()
		res := rt.Dispatch(target, SelectorStore, []Value{NewString(name), value})
		rt.applyCallResult(f, target, res, nil, false)

	case bytecode.OpGetIndex:
		key := f.pop()
		target := f.pop()
		res := rt.Dispatch(target, SelectorLoadAt, []Value{key})
		rt.applyCallResult(f, target, res, []Value{key}, true)

	case bytecode.OpSetIndex:
		value := f.pop()
		key := f.pop()
		target := f.pop()
		res := rt.Dispatch(target, SelectorStoreAt, []Value{key, value})
		rt.applyCallResult(f, target, res, []Value{key, value}, false)

	case bytecode.OpInvoke:
		name := rt.constantName(fr, rt.readByte(fr))
		argc := int(rt.readByte(fr))
		args := rt.popArgs(f, argc)
		recv := f.pop()
		res := rt.Dispatch(recv, name, args)
		rt.applyCallResult(f, recv, res, args, true)

	case bytecode.OpCall:
		argc := int(rt.readByte(fr))
		args := rt.popArgs(f, argc)
		callee := f.pop()
		if cl, ok := callee.AsClosure(); ok {
			rt.applyCallResult(f, Null(), rt.beginCall(cl, Null(), args), args, true)
			return
		}
		res := rt.Dispatch(callee, SelectorExec, args)
		rt.applyCallResult(f, callee, res, args, true)

	case bytecode.OpReturn:
		var ret Value
		fr2 := rt.currentFrame(f)
		if len(f.stack) > fr2.slotBase {
			ret = f.pop()
		} else {
			ret = Null()
		}
		rt.doReturn(f, ret)

	default:
		rt.raise(verrs.Newf(verrs.TypeError, "unknown opcode %d", op))
	}
}

func (rt *Runtime) popArgs(f *Fiber, argc int) []Value {
	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = f.pop()
	}
	return args
}

func (rt *Runtime) doReturn(f *Fiber, ret Value) {
	fr := rt.currentFrame(f)
	f.stack = f.stack[:fr.slotBase]
	f.frames = f.frames[:len(f.frames)-1]
	rt.result = ret
	if len(f.frames) > 0 {
		f.push(ret)
	}
	// an empty frame stack is handled by the loop (fiber terminated)
}

// applyCallResult finishes a dispatch begun by step. wantValue distinguishes
// expression positions (a value must land on the stack) from store positions.
func (rt *Runtime) applyCallResult(f *Fiber, recv Value, res Result, args []Value, wantValue bool) {
	for {
		switch res.kind {
		case rValue:
			if wantValue {
				f.push(res.value)
			}
			rt.result = res.value
			return
		case rNoValue:
			if wantValue {
				f.push(Null())
			}
			return
		case rClosure:
			cargs := args
			if res.cargs != nil {
				cargs = res.cargs
			}
			next := res.closure
			if next.Fn.Kind == FuncBytecode {
				if !wantValue {
					// the frame's return value must not leak into this
					// expressionless position; run it to completion instead
					if !rt.RunClosure(next, recv, cargs) {
						return
					}
					return
				}
				rt.pushFrame(f, next, recv, cargs)
				return
			}
			res = rt.beginCall(next, recv, cargs)
		case rFiber:
			if rt.fiber != f && wantValue {
				// the invoke's result slot when this fiber resumes
				f.push(Null())
			}
			return
		default:
			rt.raise(res.err)
			return
		}
	}
}

// truthy applies the built-in boolean rules without dispatching overrides
func (rt *Runtime) truthy(v Value) bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.n != 0
	case KindInt:
		return v.n != 0
	case KindFloat:
		return v.f != 0
	default:
		if s, ok := v.AsString(); ok {
			return len(s.S) > 0 && s.S != "false"
		}
		return true
	}
}
