package vm

import (
	"strings"

	verrs "vela/internal/errors"
)

func (rt *Runtime) registerListClass() {
	c := rt.clsList
	meta := c.meta

	meta.BindNative(SelectorExec, 0, listExec)

	bindProperty(c, "count", func(rt *Runtime, recv Value, args []Value) Result {
		l, _ := recv.AsList()
		return Done(NewInt(int64(len(l.Items))))
	}, nil)

	c.BindNative("push", 1, listPush)
	c.BindNative("pop", 0, listPop)
	c.BindNative("contains", 1, listContains)
	c.BindNative("indexOf", 1, listIndexOf)
	c.BindNative("remove", 1, listRemove)
	c.BindNative("join", 1, listJoin)
	c.BindNative("reverse", 0, listReverse)
	c.BindNative("reversed", 0, listReversed)
	c.BindNative("map", 1, listMap)
	c.BindNative("filter", 1, listFilter)
	c.BindNative("reduce", 2, listReduce)
	c.BindNative("sort", 1, listSort)
	c.BindNative("sorted", 1, listSorted)
	c.BindNative("loop", 1, listLoop)
	c.BindNative(OpAdd, 1, listConcat)
	c.BindNative(SelectorLoadAt, 1, listLoadAt)
	c.BindNative(SelectorStoreAt, 2, listStoreAt)
	c.BindNative(SelectorIterate, 1, listIterate)
	c.BindNative(SelectorNext, 1, listNext)
}

// listExec makes the class callable: no arguments is an empty list, a single
// Int preallocates that many null slots, anything else collects the arguments.
func listExec(rt *Runtime, recv Value, args []Value) Result {
	if len(args) == 0 {
		return Done(ObjectValue(NewList()))
	}
	if len(args) == 1 && args[0].IsInt() {
		n := args[0].Int()
		if n < 0 || n > int64(rt.Config.MaxBlockSize) {
			return Failf(verrs.TypeError, "invalid list size %d", n)
		}
		items := make([]Value, n)
		for i := range items {
			items[i] = Null()
		}
		return Done(ObjectValue(NewList(items...)))
	}
	items := make([]Value, len(args))
	copy(items, args)
	return Done(ObjectValue(NewList(items...)))
}

func listPush(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "push requires a value")
	}
	l, _ := recv.AsList()
	v := args[0]
	if inst, ok := v.AsInstance(); ok && inst.Class.IsStruct {
		v = ObjectValue(inst.Clone())
	}
	l.Items = append(l.Items, v)
	return Done(NewInt(int64(len(l.Items))))
}

func listPop(rt *Runtime, recv Value, args []Value) Result {
	l, _ := recv.AsList()
	if len(l.Items) == 0 {
		return Failf(verrs.LookupError, "unable to pop from an empty list")
	}
	v := l.Items[len(l.Items)-1]
	l.Items = l.Items[:len(l.Items)-1]
	return Done(v)
}

func listContains(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Done(NewBool(false))
	}
	l, _ := recv.AsList()
	for _, item := range l.Items {
		if rt.identical(item, args[0]) {
			return Done(NewBool(true))
		}
	}
	return Done(NewBool(false))
}

func listIndexOf(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Done(NewInt(-1))
	}
	l, _ := recv.AsList()
	for i, item := range l.Items {
		if rt.identical(item, args[0]) {
			return Done(NewInt(int64(i)))
		}
	}
	return Done(NewInt(-1))
}

// listRemove drops the first occurrence; absence is not an error
func listRemove(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Done(NewBool(false))
	}
	l, _ := recv.AsList()
	for i, item := range l.Items {
		if rt.identical(item, args[0]) {
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
			return Done(NewBool(true))
		}
	}
	return Done(NewBool(false))
}

func listJoin(rt *Runtime, recv Value, args []Value) Result {
	sep := ","
	if len(args) > 0 {
		s, err := rt.argString(args[0])
		if err != nil {
			return Fail(err)
		}
		sep = s
	}
	l, _ := recv.AsList()
	parts := make([]string, len(l.Items))
	for i, item := range l.Items {
		s, err := rt.argString(item)
		if err != nil {
			return Fail(err)
		}
		parts[i] = s
	}
	return Done(NewString(strings.Join(parts, sep)))
}

func listReverse(rt *Runtime, recv Value, args []Value) Result {
	l, _ := recv.AsList()
	for i, j := 0, len(l.Items)-1; i < j; i, j = i+1, j-1 {
		l.Items[i], l.Items[j] = l.Items[j], l.Items[i]
	}
	return Done(recv)
}

// listReversed answers a reversed copy, leaving the receiver untouched
func listReversed(rt *Runtime, recv Value, args []Value) Result {
	l, _ := recv.AsList()
	items := make([]Value, len(l.Items))
	for i, v := range l.Items {
		items[len(items)-1-i] = v
	}
	return Done(ObjectValue(NewList(items...)))
}

func listClosureArg(args []Value) (*Closure, bool) {
	if len(args) < 1 {
		return nil, false
	}
	cl, ok := args[0].AsClosure()
	return cl, ok
}

func listMap(rt *Runtime, recv Value, args []Value) Result {
	cl, ok := listClosureArg(args)
	if !ok {
		return Failf(verrs.TypeError, "map requires a closure")
	}
	l, _ := recv.AsList()
	out := make([]Value, len(l.Items))
	for i, item := range l.Items {
		if !rt.RunClosure(cl, Null(), []Value{item}) {
			return rt.propagate()
		}
		out[i] = rt.result
	}
	return Done(ObjectValue(NewList(out...)))
}

func listFilter(rt *Runtime, recv Value, args []Value) Result {
	cl, ok := listClosureArg(args)
	if !ok {
		return Failf(verrs.TypeError, "filter requires a closure")
	}
	l, _ := recv.AsList()
	out := []Value{}
	for _, item := range l.Items {
		if !rt.RunClosure(cl, Null(), []Value{item}) {
			return rt.propagate()
		}
		keep := rt.toBool(rt.result)
		if keep.IsError() {
			return keep
		}
		if keep.Value().Bool() {
			out = append(out, item)
		}
	}
	return Done(ObjectValue(NewList(out...)))
}

func listReduce(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 2 {
		return Failf(verrs.TypeError, "reduce requires a seed and a closure")
	}
	cl, ok := args[1].AsClosure()
	if !ok {
		return Failf(verrs.TypeError, "reduce requires a closure")
	}
	l, _ := recv.AsList()
	acc := args[0]
	for _, item := range l.Items {
		if !rt.RunClosure(cl, Null(), []Value{acc, item}) {
			return rt.propagate()
		}
		acc = rt.result
	}
	return Done(acc)
}

func listLoop(rt *Runtime, recv Value, args []Value) Result {
	cl, ok := listClosureArg(args)
	if !ok {
		return Failf(verrs.TypeError, "loop requires a closure")
	}
	l, _ := recv.AsList()
	for _, item := range l.Items {
		if !rt.RunClosure(cl, Null(), []Value{item}) {
			return rt.propagate()
		}
	}
	return NoValue()
}

func listConcat(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "concatenation requires an argument")
	}
	other, ok := args[0].AsList()
	if !ok {
		return Failf(verrs.TypeError, "unable to concatenate a %s to a List", rt.ClassOf(args[0]).Name)
	}
	l, _ := recv.AsList()
	items := make([]Value, 0, len(l.Items)+len(other.Items))
	items = append(items, l.Items...)
	items = append(items, other.Items...)
	return Done(ObjectValue(NewList(items...)))
}

func listLoadAt(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "index requires a key")
	}
	l, _ := recv.AsList()
	n := int64(len(l.Items))
	ri := rt.toInt(args[0])
	if ri.IsError() {
		return ri
	}
	idx := ri.Value().Int()
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return Failf(verrs.LookupError, "out of bounds index %d (count %d)", ri.Value().Int(), n)
	}
	return Done(l.Items[idx])
}

// listStoreAt writes in place; storing one slot past the end appends
func listStoreAt(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 2 {
		return Failf(verrs.TypeError, "indexed store requires a key and a value")
	}
	l, _ := recv.AsList()
	n := int64(len(l.Items))
	ri := rt.toInt(args[0])
	if ri.IsError() {
		return ri
	}
	idx := ri.Value().Int()
	if idx < 0 {
		idx += n
	}
	v := args[1]
	if inst, ok := v.AsInstance(); ok && inst.Class.IsStruct {
		v = ObjectValue(inst.Clone())
	}
	switch {
	case idx >= 0 && idx < n:
		l.Items[idx] = v
	case idx == n:
		l.Items = append(l.Items, v)
	default:
		return Failf(verrs.LookupError, "out of bounds index %d (count %d)", ri.Value().Int(), n)
	}
	return NoValue()
}

func listIterate(rt *Runtime, recv Value, args []Value) Result {
	l, _ := recv.AsList()
	if len(args) < 1 || args[0].IsNullClass() {
		if len(l.Items) == 0 {
			return Done(NewBool(false))
		}
		return Done(NewInt(0))
	}
	ri := rt.toInt(args[0])
	if ri.IsError() {
		return ri
	}
	next := ri.Value().Int() + 1
	if next >= int64(len(l.Items)) {
		return Done(NewBool(false))
	}
	return Done(NewInt(next))
}

func listNext(rt *Runtime, recv Value, args []Value) Result {
	return listLoadAt(rt, recv, args)
}

// sortComparator wraps either a user closure or a built-in ordering. A closure
// answers three-way (negative means "a first") or a plain boolean. Without one
// the first element picks the rule: numbers order numerically, everything else
// by string conversion.
func (rt *Runtime) sortComparator(items []Value, args []Value) func(a, b Value) (bool, *verrs.RuntimeError) {
	if len(args) > 0 {
		if cl, ok := args[0].AsClosure(); ok {
			return func(a, b Value) (bool, *verrs.RuntimeError) {
				if !rt.RunClosure(cl, Null(), []Value{a, b}) {
					return false, rt.currentError()
				}
				if rt.result.IsBool() {
					return rt.result.Bool(), nil
				}
				ri := rt.toInt(rt.result)
				if ri.IsError() {
					return false, ri.Err()
				}
				return ri.Value().Int() < 0, nil
			}
		}
	}
	if len(items) > 0 && items[0].isNumeric() {
		return func(a, b Value) (bool, *verrs.RuntimeError) {
			ra := rt.toFloat(a)
			if ra.IsError() {
				return false, ra.Err()
			}
			rb := rt.toFloat(b)
			if rb.IsError() {
				return false, rb.Err()
			}
			return ra.Value().Float() < rb.Value().Float(), nil
		}
	}
	return func(a, b Value) (bool, *verrs.RuntimeError) {
		ra := rt.toString(a)
		if ra.IsError() {
			return false, ra.Err()
		}
		rb := rt.toString(b)
		if rb.IsError() {
			return false, rb.Err()
		}
		as, _ := ra.Value().AsString()
		bs, _ := rb.Value().AsString()
		return as.S < bs.S, nil
	}
}

// quicksort with the last element as pivot; the ordering of equal elements is
// not preserved
func (rt *Runtime) quicksort(items []Value, lo, hi int, less func(a, b Value) (bool, *verrs.RuntimeError)) *verrs.RuntimeError {
	if lo >= hi {
		return nil
	}
	pivot := items[hi]
	i := lo - 1
	for j := lo; j < hi; j++ {
		ok, err := less(items[j], pivot)
		if err != nil {
			return err
		}
		if ok {
			i++
			items[i], items[j] = items[j], items[i]
		}
	}
	items[i+1], items[hi] = items[hi], items[i+1]
	if err := rt.quicksort(items, lo, i, less); err != nil {
		return err
	}
	return rt.quicksort(items, i+2, hi, less)
}

// listSort orders in place and returns the receiver
func listSort(rt *Runtime, recv Value, args []Value) Result {
	l, _ := recv.AsList()
	less := rt.sortComparator(l.Items, args)
	if err := rt.quicksort(l.Items, 0, len(l.Items)-1, less); err != nil {
		return Fail(err)
	}
	return Done(recv)
}

// listSorted orders a copy, leaving the receiver untouched
func listSorted(rt *Runtime, recv Value, args []Value) Result {
	l, _ := recv.AsList()
	items := make([]Value, len(l.Items))
	copy(items, l.Items)
	less := rt.sortComparator(items, args)
	if err := rt.quicksort(items, 0, len(items)-1, less); err != nil {
		return Fail(err)
	}
	return Done(ObjectValue(NewList(items...)))
}
