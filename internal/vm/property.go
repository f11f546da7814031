package vm

import (
	verrs "vela/internal/errors"
)

// name of the implicit static initializer run on first class access
const staticInitName = "$init"

// lazyMetaInit runs a class's static initializer exactly once, before the
// first static member access goes through.
func (rt *Runtime) lazyMetaInit(c *Class) *verrs.RuntimeError {
	if c == nil || c.isInited {
		return nil
	}
	c.isInited = true
	if c.meta == nil {
		return nil
	}
	init := c.meta.lookupOwn(staticInitName)
	if init == nil {
		return nil
	}
	_, err := rt.finishCall(rt.beginCall(init, ObjectValue(c), nil), ObjectValue(c), nil)
	return err
}

// ivarSlots returns the slot storage a receiver reads and writes: instance
// slots for instances, class-side static slots for classes.
func ivarSlots(recv Value) ([]Value, bool) {
	if inst, ok := recv.AsInstance(); ok {
		return inst.IVars, true
	}
	if c, ok := recv.AsClass(); ok {
		return c.classIVars(), true
	}
	return nil, false
}

// objectLoad is the default $load implementation every receiver inherits from
// Object. An integer key is a direct ivar slot read; a string key goes
// through member resolution, computed getters come back as tail calls, and a
// full miss falls through to the host bridge and then to not-found.
func objectLoad(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "$load requires a key")
	}
	key := args[0]

	if key.IsInt() {
		slots, ok := ivarSlots(recv)
		if !ok {
			return Failf(verrs.TypeError, "unable to index properties of %s", rt.ClassOf(recv).Name)
		}
		idx := key.Int()
		if idx < 0 || idx >= int64(len(slots)) {
			return Failf(verrs.LookupError, "out of bounds ivar index %d (%d slots)", idx, len(slots))
		}
		return Done(slots[idx])
	}

	ks, ok := key.AsString()
	if !ok {
		return Failf(verrs.TypeError, "property keys must be Int or String")
	}
	name := ks.S

	if c, ok := recv.AsClass(); ok {
		if err := rt.lazyMetaInit(c); err != nil {
			return Fail(err)
		}
	}

	cls := rt.ClassOf(recv)
	entry := Resolve(cls, name)
	if entry == nil || entry.Fn == nil {
		if inst, ok := recv.AsInstance(); ok && inst.XData != nil &&
			rt.Delegate != nil && rt.Delegate.BridgeGetUndef != nil {
			if v, ok := rt.Delegate.BridgeGetUndef(rt, inst.XData, recv, name); ok {
				return Done(v)
			}
		}
		return rt.dispatchNotFound(recv, cls, name)
	}

	fn := entry.Fn
	if !fn.IsSpecial() {
		// loading a method by name yields the closure itself
		return Done(ObjectValue(entry))
	}
	if fn.IsDefaultAccessor() {
		slots, ok := ivarSlots(recv)
		if !ok || fn.Index >= len(slots) {
			return Failf(verrs.LookupError, "no slot storage for property %s on %s", name, cls.Name)
		}
		return Done(slots[fn.Index])
	}
	if fn.Getter == nil {
		return Failf(verrs.LookupError, "unable to load write-only property %s", name)
	}
	return TailCallWith(fn.Getter)
}

// objectStore is the default $store implementation. Struct-class values are
// cloned before landing in any slot so value semantics never alias.
func objectStore(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 2 {
		return Failf(verrs.TypeError, "$store requires a key and a value")
	}
	key := args[0]
	value := args[1]

	if inst, ok := value.AsInstance(); ok && inst.Class.IsStruct {
		value = ObjectValue(inst.Clone())
	}

	if key.IsInt() {
		slots, ok := ivarSlots(recv)
		if !ok {
			return Failf(verrs.TypeError, "unable to index properties of %s", rt.ClassOf(recv).Name)
		}
		idx := key.Int()
		if idx < 0 || idx >= int64(len(slots)) {
			return Failf(verrs.LookupError, "out of bounds ivar index %d (%d slots)", idx, len(slots))
		}
		slots[idx] = value
		return NoValue()
	}

	ks, ok := key.AsString()
	if !ok {
		return Failf(verrs.TypeError, "property keys must be Int or String")
	}
	name := ks.S

	if c, ok := recv.AsClass(); ok {
		if err := rt.lazyMetaInit(c); err != nil {
			return Fail(err)
		}
	}

	cls := rt.ClassOf(recv)
	entry := Resolve(cls, name)
	if entry == nil || entry.Fn == nil {
		if inst, ok := recv.AsInstance(); ok && inst.XData != nil &&
			rt.Delegate != nil && rt.Delegate.BridgeSetUndef != nil {
			if rt.Delegate.BridgeSetUndef(rt, inst.XData, recv, name, value) {
				return NoValue()
			}
		}
		return Failf(verrs.LookupError, "unable to find property %s in class %s", name, cls.Name)
	}

	fn := entry.Fn
	if !fn.IsSpecial() {
		return Failf(verrs.TypeError, "unable to store a value into method %s", name)
	}
	if fn.IsDefaultAccessor() {
		slots, ok := ivarSlots(recv)
		if !ok || fn.Index >= len(slots) {
			return Failf(verrs.LookupError, "no slot storage for property %s on %s", name, cls.Name)
		}
		slots[fn.Index] = value
		return NoValue()
	}
	if fn.Setter == nil {
		return Failf(verrs.LookupError, "unable to store read-only property %s", name)
	}
	return TailCallWith(fn.Setter, value)
}
