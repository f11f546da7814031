package vm

import (
	"testing"
)

func systemClass(t *testing.T, rt *Runtime) Value {
	t.Helper()
	v, ok := rt.Global(ClassNameSystem)
	if !ok {
		t.Fatal("System class not registered")
	}
	return v
}

func TestSystemPrintDelegate(t *testing.T) {
	rt := New()
	var lines []string
	rt.Delegate.Print = func(s string) { lines = append(lines, s) }

	sys := systemClass(t, rt)
	if _, err := rt.CallMethod(sys, "print", []Value{NewString("hello"), NewInt(42)}); err != nil {
		t.Fatalf("print failed: %v", err)
	}
	if len(lines) != 1 || lines[0] != "hello 42" {
		t.Errorf("print output: %q", lines)
	}
}

// Runtime options read and write through the ordinary property protocol.
func TestSystemOptionProperties(t *testing.T) {
	rt := New()
	sys := systemClass(t, rt)

	got, err := rt.CallMethod(sys, SelectorLoad, []Value{NewString("maxCallDepth")})
	if err != nil || got.Int() != int64(rt.Config.MaxCallDepth) {
		t.Fatalf("maxCallDepth read: %v %v", got, err)
	}

	if _, err := rt.CallMethod(sys, SelectorStore, []Value{NewString("maxCallDepth"), NewInt(32)}); err != nil {
		t.Fatalf("maxCallDepth write: %v", err)
	}
	if rt.Config.MaxCallDepth != 32 {
		t.Errorf("write did not land: %d", rt.Config.MaxCallDepth)
	}

	if _, err := rt.CallMethod(sys, SelectorStore, []Value{NewString("gcEnabled"), NewBool(false)}); err != nil {
		t.Fatalf("gcEnabled write: %v", err)
	}
	got, _ = rt.CallMethod(sys, SelectorLoad, []Value{NewString("gcEnabled")})
	if got.Bool() {
		t.Error("gcEnabled write did not land")
	}

	got, err = rt.CallMethod(sys, SelectorLoad, []Value{NewString("gcRatio")})
	if err != nil || got.Float() != rt.Config.GCRatio {
		t.Errorf("gcRatio read: %v %v", got, err)
	}

	if _, err := rt.CallMethod(sys, SelectorLoad, []Value{NewString("noSuchOption")}); err == nil {
		t.Error("unknown option must fail")
	}
}

func TestSystemNanotime(t *testing.T) {
	rt := New()
	sys := systemClass(t, rt)

	a, err := rt.CallMethod(sys, "nanotime", nil)
	if err != nil {
		t.Fatalf("nanotime failed: %v", err)
	}
	b, err := rt.CallMethod(sys, "nanotime", nil)
	if err != nil {
		t.Fatalf("nanotime failed: %v", err)
	}
	if b.Int() < a.Int() {
		t.Errorf("nanotime went backwards: %d then %d", a.Int(), b.Int())
	}
}

// exit records the request for the host; the runtime itself never dies.
func TestSystemExit(t *testing.T) {
	rt := New()
	exited := -1
	rt.Delegate.Exit = func(code int) { exited = code }

	sys := systemClass(t, rt)
	if _, err := rt.CallMethod(sys, "exit", []Value{NewInt(3)}); err != nil {
		t.Fatalf("exit failed: %v", err)
	}
	if exited != 3 {
		t.Errorf("delegate exit code: %d", exited)
	}
	if code, ok := rt.ExitRequested(); !ok || code != 3 {
		t.Errorf("recorded exit: %d %v", code, ok)
	}
}
