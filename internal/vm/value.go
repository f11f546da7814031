package vm

import (
	"vela/internal/bytecode"
)

// Kind tags the closed set of value variants. Null and Undefined share a kind
// (and a class); they are told apart by the numeric field only.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindObject
)

// Value is the tagged representation of every runtime value. A Value is
// self-describing: ClassOf answers in O(1) without external context.
type Value struct {
	kind Kind
	n    int64
	f    float64
	obj  Object
}

// Object is the polymorphic payload of a KindObject value.
type Object interface {
	objclass(rt *Runtime) *Class
}

func Null() Value      { return Value{kind: KindNull} }
func Undefined() Value { return Value{kind: KindNull, n: 1} }

func NewBool(b bool) Value {
	if b {
		return Value{kind: KindBool, n: 1}
	}
	return Value{kind: KindBool}
}

func NewInt(n int64) Value     { return Value{kind: KindInt, n: n} }
func NewFloat(f float64) Value { return Value{kind: KindFloat, f: f} }

func NewString(s string) Value { return Value{kind: KindObject, obj: &String{S: s}} }

func ObjectValue(obj Object) Value { return Value{kind: KindObject, obj: obj} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool      { return v.kind == KindNull && v.n == 0 }
func (v Value) IsUndefined() bool { return v.kind == KindNull && v.n == 1 }
func (v Value) IsNullClass() bool { return v.kind == KindNull }
func (v Value) IsBool() bool      { return v.kind == KindBool }
func (v Value) IsInt() bool       { return v.kind == KindInt }
func (v Value) IsFloat() bool     { return v.kind == KindFloat }
func (v Value) IsObject() bool    { return v.kind == KindObject }

func (v Value) Int() int64     { return v.n }
func (v Value) Float() float64 { return v.f }
func (v Value) Bool() bool     { return v.n != 0 }
func (v Value) Obj() Object    { return v.obj }

func (v Value) isNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// numeric widens either numeric kind to float64 for mixed arithmetic
func (v Value) numeric() float64 {
	if v.kind == KindInt {
		return float64(v.n)
	}
	return v.f
}

func (v Value) AsString() (*String, bool) {
	s, ok := v.obj.(*String)
	return s, ok && v.kind == KindObject
}

func (v Value) IsString() bool {
	_, ok := v.AsString()
	return ok
}

func (v Value) AsList() (*List, bool) {
	l, ok := v.obj.(*List)
	return l, ok && v.kind == KindObject
}

func (v Value) AsMap() (*Map, bool) {
	m, ok := v.obj.(*Map)
	return m, ok && v.kind == KindObject
}

func (v Value) AsRange() (*Range, bool) {
	r, ok := v.obj.(*Range)
	return r, ok && v.kind == KindObject
}

func (v Value) AsClosure() (*Closure, bool) {
	c, ok := v.obj.(*Closure)
	return c, ok && v.kind == KindObject
}

func (v Value) AsFunction() (*Function, bool) {
	f, ok := v.obj.(*Function)
	return f, ok && v.kind == KindObject
}

func (v Value) AsClass() (*Class, bool) {
	c, ok := v.obj.(*Class)
	return c, ok && v.kind == KindObject
}

func (v Value) AsInstance() (*Instance, bool) {
	i, ok := v.obj.(*Instance)
	return i, ok && v.kind == KindObject
}

func (v Value) AsFiber() (*Fiber, bool) {
	f, ok := v.obj.(*Fiber)
	return f, ok && v.kind == KindObject
}

// String is an immutable string object
type String struct {
	S string
}

func (s *String) objclass(rt *Runtime) *Class { return rt.clsString }

// List owns a resizable, order-preserving sequence of values
type List struct {
	Items []Value
}

func NewList(items ...Value) *List { return &List{Items: items} }

func (l *List) objclass(rt *Runtime) *Class { return rt.clsList }

// Range is an inclusive [From,To] integer pair, immutable after construction
type Range struct {
	From int64
	To   int64
}

func NewRange(from, to int64) *Range { return &Range{From: from, To: to} }

func (r *Range) objclass(rt *Runtime) *Class { return rt.clsRange }

// Count returns the number of values the range spans
func (r *Range) Count() int64 {
	if r.To > r.From {
		return r.To - r.From + 1
	}
	return r.From - r.To + 1
}

// Instance is a user-class object with fixed-position ivar slots
type Instance struct {
	Class *Class
	IVars []Value
	XData interface{} // foreign payload supplied by the host bridge
}

func (i *Instance) objclass(rt *Runtime) *Class { return i.Class }

// Clone deep-copies the instance; nested value-semantics instances are cloned
// as well so copy-on-store never aliases struct state.
func (i *Instance) Clone() *Instance {
	clone := &Instance{Class: i.Class, XData: i.XData}
	clone.IVars = make([]Value, len(i.IVars))
	for n, v := range i.IVars {
		if inner, ok := v.AsInstance(); ok && inner.Class.IsStruct {
			clone.IVars[n] = ObjectValue(inner.Clone())
			continue
		}
		clone.IVars[n] = v
	}
	return clone
}

// toValue converts a chunk constant into a runtime value
func (rt *Runtime) toValue(c interface{}) Value {
	switch v := c.(type) {
	case nil:
		return Null()
	case bool:
		return NewBool(v)
	case int:
		return NewInt(int64(v))
	case int64:
		return NewInt(v)
	case float64:
		return NewFloat(v)
	case string:
		return NewString(v)
	case *Function:
		return ObjectValue(v)
	case *Closure:
		return ObjectValue(v)
	case *bytecode.Chunk:
		// a bare chunk constant becomes an anonymous function
		return ObjectValue(NewBytecodeFunction("", 0, v))
	case Value:
		return v
	default:
		return Null()
	}
}
