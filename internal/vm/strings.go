package vm

import (
	"strings"
	"unicode/utf8"

	verrs "vela/internal/errors"
)

func (rt *Runtime) registerStringClass() {
	c := rt.clsString

	bindProperty(c, "length", func(rt *Runtime, recv Value, args []Value) Result {
		s, _ := recv.AsString()
		return Done(NewInt(int64(utf8.RuneCountInString(s.S))))
	}, nil)
	bindProperty(c, "bytes", func(rt *Runtime, recv Value, args []Value) Result {
		s, _ := recv.AsString()
		return Done(NewInt(int64(len(s.S))))
	}, nil)

	c.BindNative(OpAdd, 1, stringConcat)
	c.BindNative(OpSub, 1, stringRemove)
	c.BindNative(OpMul, 1, stringRepeat)
	c.BindNative("repeat", 1, stringRepeat)
	c.BindNative("count", 1, stringCount)
	c.BindNative("upper", 0, func(rt *Runtime, recv Value, args []Value) Result {
		s, _ := recv.AsString()
		return Done(NewString(strings.ToUpper(s.S)))
	})
	c.BindNative("lower", 0, func(rt *Runtime, recv Value, args []Value) Result {
		s, _ := recv.AsString()
		return Done(NewString(strings.ToLower(s.S)))
	})
	c.BindNative("trim", 0, func(rt *Runtime, recv Value, args []Value) Result {
		s, _ := recv.AsString()
		return Done(NewString(strings.TrimSpace(s.S)))
	})
	c.BindNative("contains", 1, stringContains)
	c.BindNative("index", 1, stringIndex)
	c.BindNative("replace", 2, stringReplace)
	c.BindNative("split", 1, stringSplit)
	c.BindNative("number", 0, stringNumber)
	c.BindNative("loop", 1, stringLoop)
	c.BindNative(SelectorLoadAt, 1, stringLoadAt)
	c.BindNative(SelectorIterate, 1, stringIterate)
	c.BindNative(SelectorNext, 1, stringNext)
}

// argString converts an argument through the String protocol
func (rt *Runtime) argString(v Value) (string, *verrs.RuntimeError) {
	res := rt.toString(v)
	if res.IsError() {
		return "", res.Err()
	}
	s, _ := res.Value().AsString()
	return s.S, nil
}

func stringConcat(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "concatenation requires an argument")
	}
	s, _ := recv.AsString()
	other, err := rt.argString(args[0])
	if err != nil {
		return Fail(err)
	}
	return Done(NewString(s.S + other))
}

// stringRemove drops every occurrence of the argument
func stringRemove(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "removal requires an argument")
	}
	s, _ := recv.AsString()
	sub, err := rt.argString(args[0])
	if err != nil {
		return Fail(err)
	}
	return Done(NewString(strings.ReplaceAll(s.S, sub, "")))
}

func stringCount(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Done(NewInt(0))
	}
	s, _ := recv.AsString()
	sub, err := rt.argString(args[0])
	if err != nil {
		return Fail(err)
	}
	return Done(NewInt(int64(strings.Count(s.S, sub))))
}

func stringRepeat(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "repeat requires a count")
	}
	ri := rt.toInt(args[0])
	if ri.IsError() {
		return ri
	}
	n := ri.Value().Int()
	if n < 0 {
		return Failf(verrs.TypeError, "repeat count must not be negative")
	}
	s, _ := recv.AsString()
	return Done(NewString(strings.Repeat(s.S, int(n))))
}

func stringContains(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Done(NewBool(false))
	}
	s, _ := recv.AsString()
	sub, err := rt.argString(args[0])
	if err != nil {
		return Fail(err)
	}
	return Done(NewBool(strings.Contains(s.S, sub)))
}

// stringIndex returns the byte offset of the first occurrence, -1 on a miss
func stringIndex(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Done(NewInt(-1))
	}
	s, _ := recv.AsString()
	sub, err := rt.argString(args[0])
	if err != nil {
		return Fail(err)
	}
	return Done(NewInt(int64(strings.Index(s.S, sub))))
}

func stringReplace(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 2 {
		return Failf(verrs.TypeError, "replace requires a pattern and a replacement")
	}
	s, _ := recv.AsString()
	from, err := rt.argString(args[0])
	if err != nil {
		return Fail(err)
	}
	to, err := rt.argString(args[1])
	if err != nil {
		return Fail(err)
	}
	return Done(NewString(strings.ReplaceAll(s.S, from, to)))
}

func stringSplit(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "split requires a separator")
	}
	s, _ := recv.AsString()
	sep, err := rt.argString(args[0])
	if err != nil {
		return Fail(err)
	}
	parts := strings.Split(s.S, sep)
	items := make([]Value, len(parts))
	for i, p := range parts {
		items[i] = NewString(p)
	}
	return Done(ObjectValue(NewList(items...)))
}

// stringNumber parses the string as a numeric literal
func stringNumber(rt *Runtime, recv Value, args []Value) Result {
	s, _ := recv.AsString()
	n, ok := parseStringNumber(s.S)
	if !ok {
		return Failf(verrs.ConversionError, "unable to convert %q to a number", s.S)
	}
	return Done(n)
}

func stringLoop(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "loop requires a closure")
	}
	cl, ok := args[0].AsClosure()
	if !ok {
		return Failf(verrs.TypeError, "loop requires a closure")
	}
	s, _ := recv.AsString()
	for i := 0; i < len(s.S); i++ {
		if !rt.RunClosure(cl, Null(), []Value{NewString(s.S[i : i+1])}) {
			return rt.propagate()
		}
	}
	return NoValue()
}

// stringLoadAt indexes a single character, negative indexes counting from the
// end; a Range key extracts the inclusive substring.
func stringLoadAt(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "index requires a key")
	}
	s, _ := recv.AsString()
	n := int64(len(s.S))

	if r, ok := args[0].AsRange(); ok {
		from, to := r.From, r.To
		if from < 0 {
			from += n
		}
		if to < 0 {
			to += n
		}
		if from < 0 || from >= n || to < 0 || to >= n || to < from {
			return Failf(verrs.LookupError, "out of bounds substring %d...%d (length %d)", r.From, r.To, n)
		}
		return Done(NewString(s.S[from : to+1]))
	}

	ri := rt.toInt(args[0])
	if ri.IsError() {
		return ri
	}
	idx := ri.Value().Int()
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return Failf(verrs.LookupError, "out of bounds index %d (length %d)", ri.Value().Int(), n)
	}
	return Done(NewString(s.S[idx : idx+1]))
}

// string iteration walks byte offsets: iterate advances, next reads
func stringIterate(rt *Runtime, recv Value, args []Value) Result {
	s, _ := recv.AsString()
	if len(args) < 1 || args[0].IsNullClass() {
		if len(s.S) == 0 {
			return Done(NewBool(false))
		}
		return Done(NewInt(0))
	}
	ri := rt.toInt(args[0])
	if ri.IsError() {
		return ri
	}
	next := ri.Value().Int() + 1
	if next >= int64(len(s.S)) {
		return Done(NewBool(false))
	}
	return Done(NewInt(next))
}

func stringNext(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "next requires an iterator value")
	}
	return stringLoadAt(rt, recv, args)
}
