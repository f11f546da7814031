package vm

import (
	"math"
	"math/rand"

	verrs "vela/internal/errors"
)

// bindProperty installs a computed property backed by native get/set bodies
func bindProperty(c *Class, name string, getter, setter NativeFn) {
	var g, s *Closure
	if getter != nil {
		g = NewClosure(NewNativeFunction("get:"+name, 0, getter))
	}
	if setter != nil {
		s = NewClosure(NewNativeFunction("set:"+name, 1, setter))
	}
	c.Bind(name, NewComputedProperty(name, g, s))
}

func (rt *Runtime) registerIntClass() {
	c := rt.clsInt
	meta := c.meta

	bindProperty(meta, "min", func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewInt(math.MinInt64))
	}, nil)
	bindProperty(meta, "max", func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewInt(math.MaxInt64))
	}, nil)
	meta.BindNative("random", 2, intRandom)

	c.BindNative(OpAdd, 1, intArith(func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b }))
	c.BindNative(OpSub, 1, intArith(func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b }))
	c.BindNative(OpMul, 1, intArith(func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b }))
	c.BindNative(OpDiv, 1, intDiv)
	c.BindNative(OpRem, 1, intRem)
	c.BindNative(OpNeg, 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewInt(-recv.Int()))
	})
	c.BindNative(OpBand, 1, intBitwise(func(a, b int64) int64 { return a & b }))
	c.BindNative(OpBor, 1, intBitwise(func(a, b int64) int64 { return a | b }))
	c.BindNative(OpBxor, 1, intBitwise(func(a, b int64) int64 { return a ^ b }))
	c.BindNative("loop", 1, intLoop)
	c.BindNative("radians", 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewFloat(float64(recv.Int()) * math.Pi / 180))
	})
	c.BindNative("degrees", 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewFloat(float64(recv.Int()) * 180 / math.Pi))
	})
}

// intArith builds a binary arithmetic native that promotes to float when the
// other operand is (or converts to) a Float.
func intArith(iop func(a, b int64) int64, fop func(a, b float64) float64) NativeFn {
	return func(rt *Runtime, recv Value, args []Value) Result {
		if len(args) < 1 {
			return Failf(verrs.TypeError, "arithmetic requires an argument")
		}
		if args[0].IsFloat() {
			return Done(NewFloat(fop(float64(recv.Int()), args[0].Float())))
		}
		ri := rt.toInt(args[0])
		if ri.IsError() {
			return ri
		}
		return Done(NewInt(iop(recv.Int(), ri.Value().Int())))
	}
}

func intBitwise(op func(a, b int64) int64) NativeFn {
	return func(rt *Runtime, recv Value, args []Value) Result {
		if len(args) < 1 {
			return Failf(verrs.TypeError, "bitwise operator requires an argument")
		}
		ri := rt.toInt(args[0])
		if ri.IsError() {
			return ri
		}
		return Done(NewInt(op(recv.Int(), ri.Value().Int())))
	}
}

func intDiv(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "division requires an argument")
	}
	if args[0].IsFloat() {
		if args[0].Float() == 0 {
			return Failf(verrs.TypeError, "division by 0")
		}
		return Done(NewFloat(float64(recv.Int()) / args[0].Float()))
	}
	ri := rt.toInt(args[0])
	if ri.IsError() {
		return ri
	}
	d := ri.Value().Int()
	if d == 0 {
		return Failf(verrs.TypeError, "division by 0")
	}
	return Done(NewInt(recv.Int() / d))
}

func intRem(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "modulo requires an argument")
	}
	ri := rt.toInt(args[0])
	if ri.IsError() {
		return ri
	}
	d := ri.Value().Int()
	if d == 0 {
		return Failf(verrs.TypeError, "modulo by 0")
	}
	return Done(NewInt(recv.Int() % d))
}

func intRandom(rt *Runtime, recv Value, args []Value) Result {
	lo, hi := int64(0), int64(math.MaxInt32)
	if len(args) > 0 {
		r := rt.toInt(args[0])
		if r.IsError() {
			return r
		}
		lo = r.Value().Int()
	}
	if len(args) > 1 {
		r := rt.toInt(args[1])
		if r.IsError() {
			return r
		}
		hi = r.Value().Int()
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return Done(NewInt(lo + rand.Int63n(hi-lo+1)))
}

// intLoop calls the closure n times with the running index
func intLoop(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "loop requires a closure")
	}
	cl, ok := args[0].AsClosure()
	if !ok {
		return Failf(verrs.TypeError, "loop requires a closure")
	}
	n := recv.Int()
	for i := int64(0); i < n; i++ {
		if !rt.RunClosure(cl, Null(), []Value{NewInt(i)}) {
			return rt.propagate()
		}
	}
	return NoValue()
}

func (rt *Runtime) registerFloatClass() {
	c := rt.clsFloat
	meta := c.meta

	bindProperty(meta, "min", func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewFloat(-math.MaxFloat64))
	}, nil)
	bindProperty(meta, "max", func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewFloat(math.MaxFloat64))
	}, nil)

	c.BindNative(OpAdd, 1, floatArith(func(a, b float64) float64 { return a + b }))
	c.BindNative(OpSub, 1, floatArith(func(a, b float64) float64 { return a - b }))
	c.BindNative(OpMul, 1, floatArith(func(a, b float64) float64 { return a * b }))
	c.BindNative(OpDiv, 1, floatDiv)
	c.BindNative(OpRem, 1, floatRem)
	c.BindNative(OpNeg, 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewFloat(-recv.Float()))
	})
	c.BindNative("round", 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewFloat(math.Round(recv.Float())))
	})
	c.BindNative("floor", 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewFloat(math.Floor(recv.Float())))
	})
	c.BindNative("ceil", 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewFloat(math.Ceil(recv.Float())))
	})
	c.BindNative("isClose", 1, floatIsClose)
	c.BindNative("radians", 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewFloat(recv.Float() * math.Pi / 180))
	})
	c.BindNative("degrees", 0, func(rt *Runtime, recv Value, args []Value) Result {
		return Done(NewFloat(recv.Float() * 180 / math.Pi))
	})
}

func floatArith(op func(a, b float64) float64) NativeFn {
	return func(rt *Runtime, recv Value, args []Value) Result {
		if len(args) < 1 {
			return Failf(verrs.TypeError, "arithmetic requires an argument")
		}
		rf := rt.toFloat(args[0])
		if rf.IsError() {
			return rf
		}
		return Done(NewFloat(op(recv.Float(), rf.Value().Float())))
	}
}

func floatDiv(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "division requires an argument")
	}
	rf := rt.toFloat(args[0])
	if rf.IsError() {
		return rf
	}
	d := rf.Value().Float()
	if d == 0 {
		return Failf(verrs.TypeError, "division by 0")
	}
	return Done(NewFloat(recv.Float() / d))
}

func floatRem(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "modulo requires an argument")
	}
	rf := rt.toFloat(args[0])
	if rf.IsError() {
		return rf
	}
	d := rf.Value().Float()
	if d == 0 {
		return Failf(verrs.TypeError, "modulo by 0")
	}
	return Done(NewFloat(math.Mod(recv.Float(), d)))
}

// floatIsClose follows the rel_tol/abs_tol closeness formula with the usual
// 1e-09 relative default
func floatIsClose(rt *Runtime, recv Value, args []Value) Result {
	if len(args) < 1 {
		return Failf(verrs.TypeError, "isClose requires an argument")
	}
	rf := rt.toFloat(args[0])
	if rf.IsError() {
		return rf
	}
	a, b := recv.Float(), rf.Value().Float()
	relTol := 1e-09
	absTol := 0.0
	if len(args) > 1 {
		r2 := rt.toFloat(args[1])
		if r2.IsError() {
			return r2
		}
		relTol = r2.Value().Float()
	}
	diff := math.Abs(a - b)
	limit := math.Max(relTol*math.Max(math.Abs(a), math.Abs(b)), absTol)
	return Done(NewBool(diff <= limit))
}
