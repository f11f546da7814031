package vm

import (
	"testing"

	"vela/internal/bytecode"
	verrs "vela/internal/errors"
)

func makeClosure(name string, nparams int, code []byte, constants []interface{}) *Closure {
	chunk := bytecode.NewChunk()
	chunk.Code = code
	chunk.Constants = constants
	return NewClosure(NewBytecodeFunction(name, nparams, chunk))
}

func runBody(t *testing.T, rt *Runtime, cl *Closure, recv Value, args []Value) Value {
	t.Helper()
	if !rt.RunClosure(cl, recv, args) {
		t.Fatalf("execution failed: %v", rt.LastError())
	}
	return rt.Result()
}

// Operators are plain selectors: arithmetic compiles to OpInvoke.
func TestInvokeOperators(t *testing.T) {
	rt := New()
	tests := []struct {
		name      string
		code      []byte
		constants []interface{}
		expected  Value
	}{
		{
			name: "int addition",
			code: []byte{
				byte(bytecode.OpConstant), 0, // 40
				byte(bytecode.OpConstant), 1, // 2
				byte(bytecode.OpInvoke), 2, 1, // "+" with 1 arg
				byte(bytecode.OpReturn),
			},
			constants: []interface{}{int64(40), int64(2), "+"},
			expected:  NewInt(42),
		},
		{
			name: "mixed promotes to float",
			code: []byte{
				byte(bytecode.OpConstant), 0, // 1
				byte(bytecode.OpConstant), 1, // 0.5
				byte(bytecode.OpInvoke), 2, 1,
				byte(bytecode.OpReturn),
			},
			constants: []interface{}{int64(1), float64(0.5), "+"},
			expected:  NewFloat(1.5),
		},
		{
			name: "string concatenation",
			code: []byte{
				byte(bytecode.OpConstant), 0,
				byte(bytecode.OpConstant), 1,
				byte(bytecode.OpInvoke), 2, 1,
				byte(bytecode.OpReturn),
			},
			constants: []interface{}{"ans", "wer", "+"},
			expected:  NewString("answer"),
		},
		{
			name: "unary negate",
			code: []byte{
				byte(bytecode.OpConstant), 0,
				byte(bytecode.OpInvoke), 1, 0, // "neg" with no args
				byte(bytecode.OpReturn),
			},
			constants: []interface{}{int64(9), "neg"},
			expected:  NewInt(-9),
		},
		{
			name: "division by zero aborts",
			code: []byte{
				byte(bytecode.OpConstant), 0,
				byte(bytecode.OpConstant), 1,
				byte(bytecode.OpInvoke), 2, 1,
				byte(bytecode.OpReturn),
			},
			constants: []interface{}{int64(1), int64(0), "/"},
			expected:  Value{}, // error expected
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := makeClosure(tt.name, 0, tt.code, tt.constants)
			ok := rt.RunClosure(cl, Null(), nil)
			if tt.name == "division by zero aborts" {
				if ok {
					t.Fatal("expected failure")
				}
				if rt.LastError().Type != verrs.TypeError {
					t.Errorf("got %s", rt.LastError().Type)
				}
				return
			}
			if !ok {
				t.Fatalf("execution failed: %v", rt.LastError())
			}
			if !rt.identical(rt.Result(), tt.expected) {
				t.Errorf("got %v, want %v", rt.Result(), tt.expected)
			}
		})
	}
}

// A conditional picks a branch; the loop opcode jumps backwards.
func TestJumps(t *testing.T) {
	rt := New()
	branch := func(cond interface{}) *Closure {
		return makeClosure("branch", 0, []byte{
			byte(bytecode.OpConstant), 0, // cond
			byte(bytecode.OpJumpIfFalse), 0, 5, // skip the then-branch
			byte(bytecode.OpConstant), 1, // "yes"
			byte(bytecode.OpJump), 0, 2, // skip the else-branch
			byte(bytecode.OpConstant), 2, // "no"
			byte(bytecode.OpReturn),
		}, []interface{}{cond, "yes", "no"})
	}

	got := runBody(t, rt, branch(true), Null(), nil)
	if s, _ := got.AsString(); s.S != "yes" {
		t.Errorf("true branch: got %q", s.S)
	}
	got = runBody(t, rt, branch(false), Null(), nil)
	if s, _ := got.AsString(); s.S != "no" {
		t.Errorf("false branch: got %q", s.S)
	}
	// zero is falsy in a branch position
	got = runBody(t, rt, branch(int64(0)), Null(), nil)
	if s, _ := got.AsString(); s.S != "no" {
		t.Errorf("zero branch: got %q", s.S)
	}
}

// sum = 0; i = 0; while i <=> 5 { sum = sum + i; i = i + 1 }; return sum
func TestLoopAccumulates(t *testing.T) {
	rt := New()
	code := []byte{
		byte(bytecode.OpConstant), 0, // 0
		byte(bytecode.OpSetGlobal), 1, // sum
		byte(bytecode.OpConstant), 0, // 0
		byte(bytecode.OpSetGlobal), 2, // i
		byte(bytecode.OpGetGlobal), 2, // loop head (ip 8)
		byte(bytecode.OpConstant), 3, // 5
		byte(bytecode.OpInvoke), 6, 1, // <=>
		byte(bytecode.OpJumpIfFalse), 0, 21, // exit to ip 39
		byte(bytecode.OpGetGlobal), 1,
		byte(bytecode.OpGetGlobal), 2,
		byte(bytecode.OpInvoke), 5, 1, // sum + i
		byte(bytecode.OpSetGlobal), 1,
		byte(bytecode.OpGetGlobal), 2,
		byte(bytecode.OpConstant), 4, // 1
		byte(bytecode.OpInvoke), 5, 1, // i + 1
		byte(bytecode.OpSetGlobal), 2,
		byte(bytecode.OpLoop), 0, 31, // back to ip 8
		byte(bytecode.OpGetGlobal), 1, // ip 39
		byte(bytecode.OpReturn),
	}
	constants := []interface{}{int64(0), "sum", "i", int64(5), int64(1), "+", "<=>"}
	got := runBody(t, rt, makeClosure("accumulate", 0, code, constants), Null(), nil)
	if got.Int() != 10 {
		t.Errorf("got %d, want 10", got.Int())
	}
}

func TestLocalsAndCall(t *testing.T) {
	rt := New()
	// double(x) = x * 2; slot 0 is the receiver, slot 1 the parameter
	double := makeClosure("double", 1, []byte{
		byte(bytecode.OpGetLocal), 1,
		byte(bytecode.OpConstant), 0, // 2
		byte(bytecode.OpInvoke), 1, 1, // *
		byte(bytecode.OpReturn),
	}, []interface{}{int64(2), "*"})

	// body: double(21)
	code := []byte{
		byte(bytecode.OpConstant), 0, // the closure
		byte(bytecode.OpConstant), 1, // 21
		byte(bytecode.OpCall), 1,
		byte(bytecode.OpReturn),
	}
	got := runBody(t, rt, makeClosure("main", 0, code, []interface{}{double, int64(21)}), Null(), nil)
	if got.Int() != 42 {
		t.Errorf("got %d, want 42", got.Int())
	}
}

// Missing arguments surface as Undefined, never as garbage slots.
func TestMissingArgumentsAreUndefined(t *testing.T) {
	rt := New()
	probe := makeClosure("probe", 2, []byte{
		byte(bytecode.OpGetLocal), 2, // second parameter
		byte(bytecode.OpReturn),
	}, nil)
	got := runBody(t, rt, probe, Null(), []Value{NewInt(1)})
	if !got.IsUndefined() {
		t.Errorf("got %v, want undefined", got.Kind())
	}
}

// Calling a class constructs; calling a closure executes it.
func TestCallDispatchesExec(t *testing.T) {
	rt := New()
	c := rt.NewUserClass("Widget", nil)
	code := []byte{
		byte(bytecode.OpConstant), 0, // the class
		byte(bytecode.OpCall), 0,
		byte(bytecode.OpReturn),
	}
	got := runBody(t, rt, makeClosure("make", 0, code, []interface{}{ObjectValue(c)}), Null(), nil)
	inst, ok := got.AsInstance()
	if !ok || inst.Class != c {
		t.Errorf("construction through OpCall failed: %v", got.Kind())
	}
}

func TestPropertyOpcodes(t *testing.T) {
	rt := New()
	c := rt.NewUserClass("Box", nil)
	c.AddIVar("v")
	inst := ObjectValue(c.NewInstance())

	// box.v = 7; return box.v
	code := []byte{
		byte(bytecode.OpGetLocal), 0, // receiver
		byte(bytecode.OpConstant), 0, // 7
		byte(bytecode.OpSetProperty), 1, // "v"
		byte(bytecode.OpGetLocal), 0,
		byte(bytecode.OpGetProperty), 1,
		byte(bytecode.OpReturn),
	}
	got := runBody(t, rt, makeClosure("roundtrip", 0, code, []interface{}{int64(7), "v"}), inst, nil)
	if got.Int() != 7 {
		t.Errorf("got %d, want 7", got.Int())
	}
}

func TestIndexOpcodes(t *testing.T) {
	rt := New()
	m := NewMap()
	code := []byte{
		byte(bytecode.OpGetLocal), 0, // the map
		byte(bytecode.OpConstant), 0, // "k"
		byte(bytecode.OpConstant), 1, // 5
		byte(bytecode.OpSetIndex),
		byte(bytecode.OpGetLocal), 0,
		byte(bytecode.OpConstant), 0,
		byte(bytecode.OpGetIndex),
		byte(bytecode.OpReturn),
	}
	got := runBody(t, rt, makeClosure("index", 0, code, []interface{}{"k", int64(5)}), ObjectValue(m), nil)
	if got.Int() != 5 {
		t.Errorf("got %d, want 5", got.Int())
	}
}

func TestUndefinedGlobalFails(t *testing.T) {
	rt := New()
	cl := makeClosure("bad", 0, []byte{
		byte(bytecode.OpGetGlobal), 0,
		byte(bytecode.OpReturn),
	}, []interface{}{"nothing"})
	if rt.RunClosure(cl, Null(), nil) {
		t.Fatal("expected failure")
	}
	if rt.LastError().Type != verrs.LookupError {
		t.Errorf("got %s, want LookupError", rt.LastError().Type)
	}
}

// Unbounded recursion hits the call depth limit instead of the Go stack.
func TestCallDepthLimit(t *testing.T) {
	rt := New()
	rec := makeClosure("rec", 0, []byte{
		byte(bytecode.OpGetGlobal), 0,
		byte(bytecode.OpCall), 0,
		byte(bytecode.OpReturn),
	}, []interface{}{"rec"})
	rt.SetGlobal("rec", ObjectValue(rec))

	if rt.RunClosure(rec, Null(), nil) {
		t.Fatal("expected failure")
	}
	if rt.LastError().Type != verrs.FiberError {
		t.Errorf("got %s, want FiberError", rt.LastError().Type)
	}
}

// A nested runtime error unwinds cleanly and a later run starts fresh.
func TestErrorRecovery(t *testing.T) {
	rt := New()
	bad := makeClosure("bad", 0, []byte{
		byte(bytecode.OpConstant), 0,
		byte(bytecode.OpConstant), 1,
		byte(bytecode.OpInvoke), 2, 1, // 1 / 0
		byte(bytecode.OpReturn),
	}, []interface{}{int64(1), int64(0), "/"})
	if rt.RunClosure(bad, Null(), nil) {
		t.Fatal("expected failure")
	}

	good := makeClosure("good", 0, []byte{
		byte(bytecode.OpConstant), 0,
		byte(bytecode.OpReturn),
	}, []interface{}{int64(1)})
	got := runBody(t, rt, good, Null(), nil)
	if got.Int() != 1 {
		t.Errorf("runtime did not recover: %v", got)
	}
}
