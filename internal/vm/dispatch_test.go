package vm

import (
	"testing"

	verrs "vela/internal/errors"
)

func TestResolveWalksSuperChain(t *testing.T) {
	rt := New()
	animal := rt.NewUserClass("Animal", nil)
	animal.BindNative("speak", 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewString("..."))
	})
	dog := rt.NewUserClass("Dog", animal)

	// inherited
	got, err := rt.CallMethod(ObjectValue(dog.NewInstance()), "speak", nil)
	if err != nil {
		t.Fatalf("inherited dispatch failed: %v", err)
	}
	if s, _ := got.AsString(); s.S != "..." {
		t.Errorf("got %q", s.S)
	}

	// overridden
	dog.BindNative("speak", 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewString("woof"))
	})
	got, err = rt.CallMethod(ObjectValue(dog.NewInstance()), "speak", nil)
	if err != nil {
		t.Fatalf("overridden dispatch failed: %v", err)
	}
	if s, _ := got.AsString(); s.S != "woof" {
		t.Errorf("override not preferred: got %q", s.S)
	}

	// resolution is deterministic: same receiver, same answer
	for i := 0; i < 3; i++ {
		if cl := Resolve(dog, "speak"); cl == nil || cl.Fn.Name != "speak" {
			t.Fatalf("resolve #%d changed its answer", i)
		}
	}
}

func TestNotFoundDefault(t *testing.T) {
	rt := New()
	_, err := rt.CallMethod(NewInt(1), "fly", nil)
	if err == nil {
		t.Fatal("expected a lookup error")
	}
	if err.Type != verrs.LookupError {
		t.Errorf("got %s, want LookupError", err.Type)
	}
}

// A user class can replace $notfound and turn misses into values.
func TestNotFoundOverride(t *testing.T) {
	rt := New()
	c := rt.NewUserClass("Ghost", nil)
	c.BindNative(SelectorNotFound, 1, func(rt *Runtime, recv Value, args []Value) Result {
		name, _ := args[0].AsString()
		return Done(NewString("missing:" + name.S))
	})
	got, err := rt.CallMethod(ObjectValue(c.NewInstance()), "anything", nil)
	if err != nil {
		t.Fatalf("overridden not-found failed: %v", err)
	}
	if s, _ := got.AsString(); s.S != "missing:anything" {
		t.Errorf("got %q", s.S)
	}
}

func TestStaticDispatchUsesMeta(t *testing.T) {
	rt := New()
	c := rt.NewUserClass("Registry", nil)
	c.Meta().BindNative("version", 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewInt(3))
	})
	got, err := rt.CallMethod(ObjectValue(c), "version", nil)
	if err != nil {
		t.Fatalf("static dispatch failed: %v", err)
	}
	if got.Int() != 3 {
		t.Errorf("got %d", got.Int())
	}

	// instances do not see statics
	if _, err := rt.CallMethod(ObjectValue(c.NewInstance()), "version", nil); err == nil {
		t.Error("instance saw a static member")
	}
}

func TestRespondTo(t *testing.T) {
	rt := New()
	got, err := rt.CallMethod(NewInt(1), "respondTo", []Value{NewString("+")})
	if err != nil || !got.Bool() {
		t.Errorf("Int should respond to +: %v %v", got, err)
	}
	got, err = rt.CallMethod(NewInt(1), "respondTo", []Value{NewString("quack")})
	if err != nil || got.Bool() {
		t.Errorf("Int should not respond to quack: %v %v", got, err)
	}
}

func TestBindOnCoreClassForbidden(t *testing.T) {
	rt := New()
	cl := ObjectValue(NewClosure(NewNativeFunction("nop", 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(Null())
	})))
	intClass, _ := rt.Global(ClassNameInt)
	_, err := rt.CallMethod(intClass, "bind", []Value{NewString("hax"), cl})
	if err == nil {
		t.Fatal("bind on a core class must fail")
	}
	if err.Type != verrs.BindError {
		t.Errorf("got %s, want BindError", err.Type)
	}
}

// Binding onto an instance synthesizes a per-object class; siblings and the
// original class stay untouched.
func TestBindOnInstance(t *testing.T) {
	rt := New()
	c := rt.NewUserClass("Plain", nil)
	a := c.NewInstance()
	b := c.NewInstance()

	cl := ObjectValue(NewClosure(NewNativeFunction("greet", 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewString("hi"))
	})))
	if _, err := rt.CallMethod(ObjectValue(a), "bind", []Value{NewString("greet"), cl}); err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	if a.Class == c {
		t.Fatal("bind must insert an anonymous class")
	}
	if !a.Class.IsAnon() || a.Class.Super != c {
		t.Errorf("anonymous class not chained over the original")
	}

	got, err := rt.CallMethod(ObjectValue(a), "greet", nil)
	if err != nil {
		t.Fatalf("bound method failed: %v", err)
	}
	if s, _ := got.AsString(); s.S != "hi" {
		t.Errorf("got %q", s.S)
	}

	// the sibling never sees it
	if _, err := rt.CallMethod(ObjectValue(b), "greet", nil); err == nil {
		t.Error("sibling instance saw the bound method")
	}

	// binding twice reuses the same anonymous class
	anon := a.Class
	if _, err := rt.CallMethod(ObjectValue(a), "bind", []Value{NewString("greet2"), cl}); err != nil {
		t.Fatalf("second bind failed: %v", err)
	}
	if a.Class != anon {
		t.Error("second bind created another class")
	}
}

func TestUnbind(t *testing.T) {
	rt := New()
	c := rt.NewUserClass("Mutable", nil)
	fn := NewNativeFunction("gone", 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(Null())
	})
	entry := NewClosure(fn)
	entry.Context = c.NewInstance()
	c.Bind("gone", entry)

	classValue := ObjectValue(c)
	if _, err := rt.CallMethod(classValue, "unbind", []Value{NewString("gone")}); err != nil {
		t.Fatalf("unbind failed: %v", err)
	}
	if entry.Context != nil {
		t.Error("unbind must clear the closure context")
	}
	if _, err := rt.CallMethod(ObjectValue(c.NewInstance()), "gone", nil); err == nil {
		t.Error("unbound method still resolves")
	}
}

func TestIntrospection(t *testing.T) {
	rt := New()
	c := rt.NewUserClass("Shape", nil)
	c.AddIVar("area")
	c.BindNative("draw", 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(Null())
	})
	inst := ObjectValue(c.NewInstance())

	// class answers
	got, err := rt.CallMethod(inst, "class", nil)
	if err != nil {
		t.Fatalf("class failed: %v", err)
	}
	if cls, _ := got.AsClass(); cls != c {
		t.Errorf("class answered %v", cls)
	}

	// meta of the class is the meta-class
	got, err = rt.CallMethod(ObjectValue(c), "meta", nil)
	if err != nil {
		t.Fatalf("meta failed: %v", err)
	}
	if m, _ := got.AsClass(); m != c.Meta() {
		t.Errorf("meta answered %v", m)
	}

	// methods include draw, properties include area
	got, err = rt.CallMethod(inst, "methods", nil)
	if err != nil {
		t.Fatalf("methods failed: %v", err)
	}
	if !containsString(t, got, "draw") {
		t.Error("methods missing draw")
	}
	got, err = rt.CallMethod(inst, "properties", nil)
	if err != nil {
		t.Fatalf("properties failed: %v", err)
	}
	if !containsString(t, got, "area") {
		t.Error("properties missing area")
	}
}

func containsString(t *testing.T, list Value, want string) bool {
	t.Helper()
	l, ok := list.AsList()
	if !ok {
		t.Fatalf("expected a list, got %v", list.Kind())
	}
	for _, item := range l.Items {
		if s, ok := item.AsString(); ok && s.S == want {
			return true
		}
	}
	return false
}

func TestIsOperator(t *testing.T) {
	rt := New()
	animal := rt.NewUserClass("Beast", nil)
	dog := rt.NewUserClass("Hound", animal)
	inst := ObjectValue(dog.NewInstance())

	for _, tt := range []struct {
		name     string
		class    *Class
		expected bool
	}{
		{"own class", dog, true},
		{"superclass", animal, true},
		{"root", rt.clsObject, true},
		{"unrelated", rt.NewUserClass("Plant", nil), false},
	} {
		got, err := rt.CallMethod(inst, "is", []Value{ObjectValue(tt.class)})
		if err != nil {
			t.Fatalf("%s: is failed: %v", tt.name, err)
		}
		if got.Bool() != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, got.Bool(), tt.expected)
		}
	}
}
