package vm

import (
	verrs "vela/internal/errors"
)

func (rt *Runtime) registerRangeClass() {
	c := rt.clsRange
	meta := c.meta

	meta.BindNative(SelectorExec, 2, rangeExec)

	bindProperty(c, "from", func(rt *Runtime, recv Value, args []Value) Result {
		r, _ := recv.AsRange()
		return Done(NewInt(r.From))
	}, nil)
	bindProperty(c, "to", func(rt *Runtime, recv Value, args []Value) Result {
		r, _ := recv.AsRange()
		return Done(NewInt(r.To))
	}, nil)
	bindProperty(c, "count", func(rt *Runtime, recv Value, args []Value) Result {
		r, _ := recv.AsRange()
		return Done(NewInt(r.Count()))
	}, nil)

	c.BindNative("contains", 1, rangeContains)
	c.BindNative("loop", 1, rangeLoop)
	c.BindNative(SelectorLoadAt, 1, rangeLoadAt)
	c.BindNative(SelectorIterate, 1, rangeIterate)
	c.BindNative(SelectorNext, 1, rangeNext)
}

func rangeExec(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 2 {
		return Failf(verrs.TypeError, "Range requires from and to")
	}
	rf := rt.toInt(args[0])
	if rf.IsError() {
		return rf
	}
	rto := rt.toInt(args[1])
	if rto.IsError() {
		return rto
	}
	return Done(ObjectValue(NewRange(rf.Value().Int(), rto.Value().Int())))
}

func rangeContains(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Done(NewBool(false))
	}
	ri := rt.toInt(args[0])
	if ri.IsError() {
		return ri
	}
	r, _ := recv.AsRange()
	n := ri.Value().Int()
	lo, hi := r.From, r.To
	if lo > hi {
		lo, hi = hi, lo
	}
	return Done(NewBool(n >= lo && n <= hi))
}

// rangeLoop walks the range inclusively, backwards when to < from
func rangeLoop(rt *Runtime, recv Value, args []Value) Result {
	cl, ok := listClosureArg(args)
	if !ok {
		return Failf(verrs.TypeError, "loop requires a closure")
	}
	r, _ := recv.AsRange()
	if r.From <= r.To {
		for i := r.From; i <= r.To; i++ {
			if !rt.RunClosure(cl, Null(), []Value{NewInt(i)}) {
				return rt.propagate()
			}
		}
	} else {
		for i := r.From; i >= r.To; i-- {
			if !rt.RunClosure(cl, Null(), []Value{NewInt(i)}) {
				return rt.propagate()
			}
		}
	}
	return NoValue()
}

// rangeLoadAt indexes the sequence the range denotes
func rangeLoadAt(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "index requires a key")
	}
	ri := rt.toInt(args[0])
	if ri.IsError() {
		return ri
	}
	r, _ := recv.AsRange()
	idx := ri.Value().Int()
	if idx < 0 || idx >= r.Count() {
		return Failf(verrs.LookupError, "out of bounds index %d (count %d)", idx, r.Count())
	}
	if r.From <= r.To {
		return Done(NewInt(r.From + idx))
	}
	return Done(NewInt(r.From - idx))
}

// range iteration carries the current element itself as the iterator value
func rangeIterate(rt *Runtime, recv Value, args []Value) Result {
	r, _ := recv.AsRange()
	forward := r.From <= r.To
	if len(args) < 1 || args[0].IsNullClass() {
		return Done(NewInt(r.From))
	}
	ri := rt.toInt(args[0])
	if ri.IsError() {
		return ri
	}
	cur := ri.Value().Int()
	if forward {
		if cur >= r.To {
			return Done(NewBool(false))
		}
		return Done(NewInt(cur + 1))
	}
	if cur <= r.To {
		return Done(NewBool(false))
	}
	return Done(NewInt(cur - 1))
}

func rangeNext(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "next requires an iterator value")
	}
	return Done(args[0])
}
