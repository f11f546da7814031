package vm

import (
	verrs "vela/internal/errors"
)

// mapKey normalizes a value for use as a hash key: strings hash by content,
// value kinds by their payload, every other object by identity.
type mapKey struct {
	kind Kind
	n    int64
	f    float64
	s    string
	obj  Object
}

func makeMapKey(v Value) mapKey {
	if s, ok := v.AsString(); ok {
		return mapKey{kind: KindObject, s: s.S}
	}
	return mapKey{kind: v.kind, n: v.n, f: v.f, obj: v.obj}
}

// Map is an insertion-ordered value dictionary
type Map struct {
	order   []Value
	entries map[mapKey]Value
}

func NewMap() *Map {
	return &Map{entries: map[mapKey]Value{}}
}

func (m *Map) objclass(rt *Runtime) *Class { return rt.clsMap }

func (m *Map) Len() int { return len(m.entries) }

// Keys returns the keys in insertion order
func (m *Map) Keys() []Value { return m.order }

func (m *Map) Get(key Value) (Value, bool) {
	v, ok := m.entries[makeMapKey(key)]
	return v, ok
}

func (m *Map) Has(key Value) bool {
	_, ok := m.entries[makeMapKey(key)]
	return ok
}

func (m *Map) Set(key, value Value) {
	k := makeMapKey(key)
	if _, ok := m.entries[k]; !ok {
		m.order = append(m.order, key)
	}
	m.entries[k] = value
}

func (m *Map) Delete(key Value) bool {
	k := makeMapKey(key)
	if _, ok := m.entries[k]; !ok {
		return false
	}
	delete(m.entries, k)
	for i, existing := range m.order {
		if makeMapKey(existing) == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

func (m *Map) Clone() *Map {
	clone := NewMap()
	for _, k := range m.order {
		clone.Set(k, m.entries[makeMapKey(k)])
	}
	return clone
}

func (rt *Runtime) registerMapClass() {
	c := rt.clsMap
	meta := c.meta

	meta.BindNative(SelectorExec, 0, mapExec)

	bindProperty(c, "count", func(rt *Runtime, recv Value, args []Value) Result {
		m, _ := recv.AsMap()
		return Done(NewInt(int64(m.Len())))
	}, nil)

	c.BindNative("keys", 0, mapKeys)
	c.BindNative("hasKey", 1, mapHasKey)
	c.BindNative("remove", 1, mapRemove)
	c.BindNative("loop", 1, mapLoop)
	c.BindNative(SelectorLoadAt, 1, mapLoadAt)
	c.BindNative(SelectorStoreAt, 2, mapStoreAt)
	c.BindNative(SelectorLoad, 1, mapLoad)
	c.BindNative(SelectorStore, 2, mapStore)
	c.BindNative(SelectorIterate, 1, mapIterate)
	c.BindNative(SelectorNext, 1, mapNext)
}

// mapExec builds a map from alternating key/value arguments
func mapExec(rt *Runtime, recv Value, args []Value) Result {
	if len(args)%2 != 0 {
		return Failf(verrs.TypeError, "Map requires key/value pairs")
	}
	m := NewMap()
	for i := 0; i < len(args); i += 2 {
		m.Set(args[i], args[i+1])
	}
	return Done(ObjectValue(m))
}

func mapKeys(rt *Runtime, recv Value, args []Value) Result {
	m, _ := recv.AsMap()
	keys := make([]Value, len(m.Keys()))
	copy(keys, m.Keys())
	return Done(ObjectValue(NewList(keys...)))
}

func mapHasKey(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Done(NewBool(false))
	}
	m, _ := recv.AsMap()
	return Done(NewBool(m.Has(args[0])))
}

func mapRemove(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Done(NewBool(false))
	}
	m, _ := recv.AsMap()
	return Done(NewBool(m.Delete(args[0])))
}

// mapLoop calls the closure once per key, in insertion order
func mapLoop(rt *Runtime, recv Value, args []Value) Result {
	cl, ok := listClosureArg(args)
	if !ok {
		return Failf(verrs.TypeError, "loop requires a closure")
	}
	m, _ := recv.AsMap()
	for _, k := range m.Keys() {
		if !rt.RunClosure(cl, Null(), []Value{k}) {
			return rt.propagate()
		}
	}
	return NoValue()
}

func mapLoadAt(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "index requires a key")
	}
	m, _ := recv.AsMap()
	if v, ok := m.Get(args[0]); ok {
		return Done(v)
	}
	return Done(Null())
}

func mapStoreAt(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 2 {
		return Failf(verrs.TypeError, "indexed store requires a key and a value")
	}
	m, _ := recv.AsMap()
	v := args[1]
	if inst, ok := v.AsInstance(); ok && inst.Class.IsStruct {
		v = ObjectValue(inst.Clone())
	}
	m.Set(args[0], v)
	return NoValue()
}

// mapLoad gives maps their dot syntax: a present key shadows members, an
// absent one falls through to ordinary resolution.
func mapLoad(rt *Runtime, recv Value, args []Value) Result {
	if len(args) >= 1 {
		m, _ := recv.AsMap()
		if v, ok := m.Get(args[0]); ok {
			return Done(v)
		}
	}
	return objectLoad(rt, recv, args)
}

// mapStore makes dot assignment an insert
func mapStore(rt *Runtime, recv Value, args []Value) Result {
	return mapStoreAt(rt, recv, args)
}

// mapIterate always answers false, so loops over a map body never execute;
// map traversal goes through keys or loop instead. Kept as-is because
// existing code relies on iterate being a silent no-op here.
func mapIterate(rt *Runtime, recv Value, args []Value) Result {
	return Done(NewBool(false))
}

func mapNext(rt *Runtime, recv Value, args []Value) Result {
	return Done(Null())
}
