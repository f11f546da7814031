package vm

import (
	"fmt"
	"strconv"
	"strings"

	verrs "vela/internal/errors"
)

// Class names double as conversion selector names: a user class overrides
// conversion by defining a method named after the target class.
const (
	ClassNameObject   = "Object"
	ClassNameClass    = "Class"
	ClassNameNull     = "Null"
	ClassNameBool     = "Bool"
	ClassNameInt      = "Int"
	ClassNameFloat    = "Float"
	ClassNameString   = "String"
	ClassNameList     = "List"
	ClassNameMap      = "Map"
	ClassNameRange    = "Range"
	ClassNameFunction = "Func"
	ClassNameClosure  = "Closure"
	ClassNameFiber    = "Fiber"
	ClassNameInstance = "Instance"
	ClassNameSystem   = "System"
)

// parseStringNumber implements the literal formats conversions accept: an
// optional sign, then 0x/0X hex, 0o/0O octal, 0b/0B binary, or decimal.
// Unparsable text reads as integer zero.
func parseStringNumber(s string) (Value, bool) {
	body := s
	sign := int64(1)
	if strings.HasPrefix(body, "-") {
		sign = -1
		body = body[1:]
	} else if strings.HasPrefix(body, "+") {
		body = body[1:]
	}
	base := 0
	switch {
	case len(body) > 2 && (body[:2] == "0x" || body[:2] == "0X"):
		base = 16
	case len(body) > 2 && (body[:2] == "0o" || body[:2] == "0O"):
		base = 8
	case len(body) > 2 && (body[:2] == "0b" || body[:2] == "0B"):
		base = 2
	}
	if base != 0 {
		n, err := strconv.ParseInt(body[2:], base, 64)
		if err != nil {
			return NewInt(0), false
		}
		return NewInt(sign * n), true
	}
	if strings.ContainsAny(body, ".eE") {
		f, err := strconv.ParseFloat(body, 64)
		if err != nil {
			return NewInt(0), false
		}
		return NewFloat(float64(sign) * f), true
	}
	n, err := strconv.ParseInt(body, 10, 64)
	if err != nil {
		return NewInt(0), false
	}
	return NewInt(sign * n), true
}

// conversionOverride resolves a user-defined conversion method, refusing the
// built-in dispatcher itself and the closure currently executing (a class
// whose override calls the conversion again must hit the default rules, not
// recurse forever).
func (rt *Runtime) conversionOverride(v Value, name string, id internalID) (*Closure, bool) {
	cl := Resolve(rt.ClassOf(v), name)
	if cl == nil || cl.Fn == nil || cl.Fn.IsSpecial() {
		return nil, false
	}
	if cl.Fn.internal == id {
		return nil, false
	}
	if cl == rt.active {
		return nil, false
	}
	if f := rt.fiber; f != nil && len(f.frames) > 0 && f.frames[len(f.frames)-1].closure == cl {
		return nil, false
	}
	return cl, true
}

// finishCall runs a begun dispatch to completion, executing tail calls.
func (rt *Runtime) finishCall(res Result, recv Value, args []Value) (Value, *verrs.RuntimeError) {
	switch res.kind {
	case rValue:
		return res.value, nil
	case rNoValue, rFiber:
		return Null(), nil
	case rClosure:
		cargs := args
		if res.cargs != nil {
			cargs = res.cargs
		}
		if !rt.RunClosure(res.closure, recv, cargs) {
			return Null(), rt.lastError
		}
		return rt.result, nil
	default:
		return Null(), res.err
	}
}

// toInt converts v to an Int value following the built-in rules, consulting a
// user-defined Int method for instances.
func (rt *Runtime) toInt(v Value) Result {
	switch v.kind {
	case KindInt:
		return Done(v)
	case KindFloat:
		return Done(NewInt(int64(v.f)))
	case KindBool:
		return Done(NewInt(v.n))
	case KindNull:
		return Done(NewInt(0))
	}
	if s, ok := v.AsString(); ok {
		n, _ := parseStringNumber(s.S)
		if n.kind == KindFloat {
			return Done(NewInt(int64(n.f)))
		}
		return Done(n)
	}
	if cl, ok := rt.conversionOverride(v, ClassNameInt, internalConvertInt); ok {
		out, err := rt.finishCall(rt.beginCall(cl, v, nil), v, nil)
		if err != nil {
			return Fail(err)
		}
		return Done(out)
	}
	return Failf(verrs.ConversionError, "unable to convert %s to Int", rt.ClassOf(v).Name)
}

// toFloat converts v to a Float value
func (rt *Runtime) toFloat(v Value) Result {
	switch v.kind {
	case KindFloat:
		return Done(v)
	case KindInt:
		return Done(NewFloat(float64(v.n)))
	case KindBool:
		return Done(NewFloat(float64(v.n)))
	case KindNull:
		return Done(NewFloat(0))
	}
	if s, ok := v.AsString(); ok {
		n, _ := parseStringNumber(s.S)
		if n.kind == KindInt {
			return Done(NewFloat(float64(n.n)))
		}
		return Done(n)
	}
	if cl, ok := rt.conversionOverride(v, ClassNameFloat, internalConvertFloat); ok {
		out, err := rt.finishCall(rt.beginCall(cl, v, nil), v, nil)
		if err != nil {
			return Fail(err)
		}
		return Done(out)
	}
	return Failf(verrs.ConversionError, "unable to convert %s to Float", rt.ClassOf(v).Name)
}

// toBool converts v to a Bool value. Every built-in succeeds: objects without
// an override read as true.
func (rt *Runtime) toBool(v Value) Result {
	switch v.kind {
	case KindBool:
		return Done(v)
	case KindNull:
		return Done(NewBool(false))
	case KindInt:
		return Done(NewBool(v.n != 0))
	case KindFloat:
		return Done(NewBool(v.f != 0))
	}
	if s, ok := v.AsString(); ok {
		return Done(NewBool(len(s.S) > 0 && s.S != "false"))
	}
	if cl, ok := rt.conversionOverride(v, ClassNameBool, internalConvertBool); ok {
		out, err := rt.finishCall(rt.beginCall(cl, v, nil), v, nil)
		if err != nil {
			return Fail(err)
		}
		return Done(out)
	}
	return Done(NewBool(true))
}

// toString converts v to a String value
func (rt *Runtime) toString(v Value) Result {
	switch v.kind {
	case KindNull:
		if v.IsUndefined() {
			return Done(NewString("undefined"))
		}
		return Done(NewString("null"))
	case KindBool:
		if v.n != 0 {
			return Done(NewString("true"))
		}
		return Done(NewString("false"))
	case KindInt:
		return Done(NewString(strconv.FormatInt(v.n, 10)))
	case KindFloat:
		return Done(NewString(formatFloat(v.f)))
	}
	switch o := v.obj.(type) {
	case *String:
		return Done(v)
	case *Class:
		return Done(NewString(o.Name))
	case *Function:
		return Done(NewString(functionLabel(o)))
	case *Closure:
		return Done(NewString(functionLabel(o.Fn)))
	case *Range:
		return Done(NewString(fmt.Sprintf("%d...%d", o.From, o.To)))
	case *Fiber:
		return Done(NewString(fmt.Sprintf("fiber %p", o)))
	case *List:
		return rt.listToString(o)
	case *Map:
		return rt.mapToString(o)
	case *Instance:
		if cl, ok := rt.conversionOverride(v, ClassNameString, internalConvertString); ok {
			out, err := rt.finishCall(rt.beginCall(cl, v, nil), v, nil)
			if err != nil {
				return Fail(err)
			}
			return Done(out)
		}
		if rt.Delegate != nil && rt.Delegate.BridgeString != nil && o.XData != nil {
			if s, ok := rt.Delegate.BridgeString(rt, o.XData); ok {
				return Done(NewString(s))
			}
		}
		return Done(NewString(fmt.Sprintf("instance of %s", o.Class.Name)))
	}
	return Failf(verrs.ConversionError, "unable to convert %s to String", rt.ClassOf(v).Name)
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	// keep whole floats visually distinct from ints
	if !strings.ContainsAny(s, ".eE") && !strings.ContainsAny(s, "nN") {
		s += ".0"
	}
	return s
}

func functionLabel(fn *Function) string {
	if fn == nil || fn.Name == "" {
		return "func"
	}
	return "func " + fn.Name
}

func (rt *Runtime) enterStringify(o Object) bool {
	if rt.stringifying[o] {
		return false
	}
	if rt.stringifying == nil {
		rt.stringifying = map[Object]bool{}
	}
	rt.stringifying[o] = true
	return true
}

func (rt *Runtime) listToString(l *List) Result {
	if !rt.enterStringify(l) {
		return Done(NewString("null"))
	}
	defer delete(rt.stringifying, l)
	var b strings.Builder
	b.WriteByte('[')
	for i, item := range l.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		res := rt.toString(item)
		if res.IsError() {
			return res
		}
		s, _ := res.Value().AsString()
		b.WriteString(s.S)
	}
	b.WriteByte(']')
	return Done(NewString(b.String()))
}

func (rt *Runtime) mapToString(m *Map) Result {
	if !rt.enterStringify(m) {
		return Done(NewString("null"))
	}
	defer delete(rt.stringifying, m)
	var b strings.Builder
	b.WriteByte('[')
	if m.Len() == 0 {
		b.WriteByte(':')
	}
	first := true
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		if !first {
			b.WriteString(", ")
		}
		first = false
		ks := rt.toString(k)
		if ks.IsError() {
			return ks
		}
		vs := rt.toString(v)
		if vs.IsError() {
			return vs
		}
		kstr, _ := ks.Value().AsString()
		vstr, _ := vs.Value().AsString()
		b.WriteString(kstr.S)
		b.WriteString(":")
		b.WriteString(vstr.S)
	}
	b.WriteByte(']')
	return Done(NewString(b.String()))
}

// identical implements === : value equality for value kinds, content equality
// for strings, pointer identity for every other object.
func (rt *Runtime) identical(a, b Value) bool {
	if a.kind != b.kind {
		// int/float never compare identical across kinds
		return false
	}
	switch a.kind {
	case KindNull:
		return a.n == b.n
	case KindBool, KindInt:
		return a.n == b.n
	case KindFloat:
		return a.f == b.f
	}
	if as, ok := a.AsString(); ok {
		if bs, ok := b.AsString(); ok {
			return as.S == bs.S
		}
		return false
	}
	return a.obj == b.obj
}

// compare orders two values for the <=> operator and the sort default:
// numbers numerically (across int/float), everything else by string
// conversion. Null reads as 0; undefined is equal only to undefined.
// Returns -1, 0 or 1.
func (rt *Runtime) compare(a, b Value) (int, *verrs.RuntimeError) {
	if a.IsUndefined() || b.IsUndefined() {
		if a.IsUndefined() && b.IsUndefined() {
			return 0, nil
		}
		if a.IsUndefined() {
			return -1, nil
		}
		return 1, nil
	}
	if a.kind == KindNull {
		a = NewInt(0)
	}
	if b.kind == KindNull {
		b = NewInt(0)
	}
	if a.isNumeric() && b.isNumeric() {
		af, bf := a.numeric(), b.numeric()
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		}
		return 0, nil
	}
	ra := rt.toString(a)
	if ra.IsError() {
		return 0, ra.Err()
	}
	rb := rt.toString(b)
	if rb.IsError() {
		return 0, rb.Err()
	}
	as, _ := ra.Value().AsString()
	bs, _ := rb.Value().AsString()
	return strings.Compare(as.S, bs.S), nil
}
