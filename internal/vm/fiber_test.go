package vm

import (
	"testing"

	"vela/internal/bytecode"
	verrs "vela/internal/errors"
)

// fiberOf builds a fiber over a bytecode body.
func fiberOf(rt *Runtime, code []byte, constants []interface{}) (*Fiber, Value) {
	f := rt.NewFiber(makeClosure("fiber body", 0, code, constants))
	return f, ObjectValue(f)
}

// A fiber runs to its first yield, keeps its state across the suspension,
// then terminates; a terminated fiber refuses another resume.
func TestFiberYieldResumeTerminate(t *testing.T) {
	rt := New()
	code := []byte{
		byte(bytecode.OpConstant), 0, // 1
		byte(bytecode.OpSetGlobal), 1, // step = 1
		byte(bytecode.OpGetGlobal), 2, // Fiber
		byte(bytecode.OpInvoke), 3, 0, // yield
		byte(bytecode.OpPop),
		byte(bytecode.OpConstant), 4, // 2
		byte(bytecode.OpSetGlobal), 1, // step = 2
		byte(bytecode.OpReturn),
	}
	constants := []interface{}{int64(1), "step", "Fiber", "yield", int64(2)}
	f, fv := fiberOf(rt, code, constants)

	if f.Status() != FiberNeverRun {
		t.Fatalf("fresh fiber status %d", f.Status())
	}

	if _, err := rt.CallMethod(fv, "call", nil); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	step, _ := rt.Global("step")
	if step.Int() != 1 {
		t.Fatalf("fiber did not run to the yield: step=%d", step.Int())
	}
	if f.Status() != FiberRunning || !f.Yielded() {
		t.Errorf("suspended fiber: status=%d yielded=%v", f.Status(), f.Yielded())
	}
	if f.Caller() != nil {
		t.Error("a yielded fiber must have no caller")
	}

	if _, err := rt.CallMethod(fv, "call", nil); err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	step, _ = rt.Global("step")
	if step.Int() != 2 {
		t.Fatalf("fiber did not resume past the yield: step=%d", step.Int())
	}
	if f.Status() != FiberTerminated || !f.IsDone() {
		t.Errorf("finished fiber: status=%d", f.Status())
	}

	if _, err := rt.CallMethod(fv, "call", nil); err == nil || err.Type != verrs.FiberError {
		t.Errorf("resuming a terminated fiber: got %v, want FiberError", err)
	}
}

// Two fibers interleave deterministically through yields.
func TestFiberInterleaving(t *testing.T) {
	rt := New()
	trace := ObjectValue(NewList())
	rt.SetGlobal("trace", trace)

	body := func(tag string) []byte {
		return []byte{
			byte(bytecode.OpGetGlobal), 0, // trace
			byte(bytecode.OpConstant), 1, // tag+"1"
			byte(bytecode.OpInvoke), 2, 1, // push
			byte(bytecode.OpPop),
			byte(bytecode.OpGetGlobal), 3, // Fiber
			byte(bytecode.OpInvoke), 4, 0, // yield
			byte(bytecode.OpPop),
			byte(bytecode.OpGetGlobal), 0,
			byte(bytecode.OpConstant), 5, // tag+"2"
			byte(bytecode.OpInvoke), 2, 1,
			byte(bytecode.OpPop),
			byte(bytecode.OpReturn),
		}
	}
	consts := func(tag string) []interface{} {
		return []interface{}{"trace", tag + "1", "push", "Fiber", "yield", tag + "2"}
	}

	_, av := fiberOf(rt, body("a"), consts("a"))
	_, bv := fiberOf(rt, body("b"), consts("b"))

	for _, fv := range []Value{av, bv, av, bv} {
		if _, err := rt.CallMethod(fv, "call", nil); err != nil {
			t.Fatalf("call failed: %v", err)
		}
	}

	l, _ := trace.AsList()
	want := []string{"a1", "b1", "a2", "b2"}
	if len(l.Items) != len(want) {
		t.Fatalf("trace has %d entries: %v", len(l.Items), l.Items)
	}
	for i, w := range want {
		if s, _ := l.Items[i].AsString(); s.S != w {
			t.Errorf("trace[%d] = %q, want %q", i, s.S, w)
		}
	}
}

// Resuming a fiber that is already on the caller chain is an error.
func TestFiberDoubleResume(t *testing.T) {
	rt := New()
	code := []byte{
		byte(bytecode.OpGetGlobal), 0, // self
		byte(bytecode.OpInvoke), 1, 0, // call
		byte(bytecode.OpReturn),
	}
	f, fv := fiberOf(rt, code, []interface{}{"self", "call"})
	rt.SetGlobal("self", fv)

	_, err := rt.CallMethod(fv, "call", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Type != verrs.FiberError {
		t.Errorf("got %s, want FiberError", err.Type)
	}
	if f.Status() != FiberAborted {
		t.Errorf("fiber status %d, want aborted", f.Status())
	}
}

// Yield with no caller is a quiet no-op.
func TestYieldWithoutCaller(t *testing.T) {
	rt := New()
	fiberClass, _ := rt.Global(ClassNameFiber)
	if _, err := rt.CallMethod(fiberClass, "yield", nil); err != nil {
		t.Errorf("top-level yield must be a no-op: %v", err)
	}
}

// abort in a fiber resumed with try is caught by the caller: try returns,
// the error is observable, and the fiber reads as aborted.
func TestFiberTryCatchesAbort(t *testing.T) {
	rt := New()
	code := []byte{
		byte(bytecode.OpGetGlobal), 0, // Fiber
		byte(bytecode.OpConstant), 1, // "boom"
		byte(bytecode.OpInvoke), 2, 1, // abort
		byte(bytecode.OpReturn),
	}
	f, fv := fiberOf(rt, code, []interface{}{"Fiber", "boom", "abort"})

	if _, err := rt.CallMethod(fv, "try", nil); err != nil {
		t.Fatalf("try must catch, got %v", err)
	}
	if f.Status() != FiberAborted {
		t.Errorf("fiber status %d, want aborted", f.Status())
	}
	if rt.LastError() == nil || rt.LastError().Type != verrs.AbortedError {
		t.Errorf("caught error not recorded: %v", rt.LastError())
	}

	msg, err := rt.CallMethod(fv, "error", nil)
	if err != nil {
		t.Fatalf("error accessor failed: %v", err)
	}
	if s, _ := msg.AsString(); s.S != "boom" {
		t.Errorf("error message %q", s.S)
	}
}

// The same abort without try propagates and fails the whole run.
func TestFiberAbortWithoutTryPropagates(t *testing.T) {
	rt := New()
	code := []byte{
		byte(bytecode.OpGetGlobal), 0,
		byte(bytecode.OpConstant), 1,
		byte(bytecode.OpInvoke), 2, 1,
		byte(bytecode.OpReturn),
	}
	_, fv := fiberOf(rt, code, []interface{}{"Fiber", "oops", "abort"})

	_, err := rt.CallMethod(fv, "call", nil)
	if err == nil {
		t.Fatal("expected the abort to propagate")
	}
	if err.Type != verrs.AbortedError {
		t.Errorf("got %s, want AbortedError", err.Type)
	}
}

// A fiber created from a closure that never yields runs to completion in one
// resume and produces its effects exactly once.
func TestFiberSingleShot(t *testing.T) {
	rt := New()
	code := []byte{
		byte(bytecode.OpConstant), 0,
		byte(bytecode.OpSetGlobal), 1,
		byte(bytecode.OpReturn),
	}
	f, fv := fiberOf(rt, code, []interface{}{int64(7), "out"})

	if _, err := rt.CallMethod(fv, "call", nil); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	out, _ := rt.Global("out")
	if out.Int() != 7 {
		t.Errorf("fiber effect missing: %v", out)
	}
	if !f.IsDone() {
		t.Errorf("fiber not done: status %d", f.Status())
	}

	done, err := rt.CallMethod(fv, "isDone", nil)
	if err != nil || !done.Bool() {
		t.Errorf("isDone: %v %v", done, err)
	}
}

// Fiber.create through the method surface mirrors the host constructor.
func TestFiberCreateMethod(t *testing.T) {
	rt := New()
	fiberClass, _ := rt.Global(ClassNameFiber)
	cl := ObjectValue(makeClosure("body", 0, []byte{
		byte(bytecode.OpReturn),
	}, nil))

	got, err := rt.CallMethod(fiberClass, "create", []Value{cl})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	f, ok := got.AsFiber()
	if !ok {
		t.Fatalf("got %v", got.Kind())
	}
	if f.Status() != FiberNeverRun {
		t.Errorf("fresh status %d", f.Status())
	}

	// a fiber with no closure cannot start
	empty := rt.NewFiber(nil)
	if _, err := rt.CallMethod(ObjectValue(empty), "call", nil); err == nil {
		t.Error("resuming a closureless fiber must fail")
	}
}

// Switching fibers from inside a nested native callback is rejected; the
// collection traversal machinery is not a place control can leave from.
func TestYieldInsideNativeCallback(t *testing.T) {
	rt := New()
	// fiber body: [1,2].loop({ Fiber.yield })  via the list loop native
	inner := makeClosure("inner", 0, []byte{
		byte(bytecode.OpGetGlobal), 0, // Fiber
		byte(bytecode.OpInvoke), 1, 0, // yield
		byte(bytecode.OpReturn),
	}, []interface{}{"Fiber", "yield"})

	outer := []byte{
		byte(bytecode.OpConstant), 0, // the list
		byte(bytecode.OpConstant), 1, // the inner closure
		byte(bytecode.OpInvoke), 2, 1, // loop
		byte(bytecode.OpReturn),
	}
	list := ObjectValue(NewList(NewInt(1), NewInt(2)))
	_, fv := fiberOf(rt, outer, []interface{}{list, inner, "loop"})

	_, err := rt.CallMethod(fv, "call", nil)
	if err == nil {
		t.Fatal("expected a fiber error")
	}
	if err.Type != verrs.FiberError {
		t.Errorf("got %s, want FiberError", err.Type)
	}
}

func TestFiberStatusNames(t *testing.T) {
	tests := []struct {
		status FiberStatus
		name   string
	}{
		{FiberNeverRun, "never run"},
		{FiberAborted, "aborted"},
		{FiberTerminated, "terminated"},
		{FiberRunning, "running"},
		{FiberTrying, "trying"},
	}
	for _, tt := range tests {
		if got := tt.status.Name(); got != tt.name {
			t.Errorf("status %d named %q, want %q", tt.status, got, tt.name)
		}
	}
}
