package vm

import (
	"vela/internal/bytecode"
	verrs "vela/internal/errors"
)

// FuncKind distinguishes how a function body executes
type FuncKind uint8

const (
	// FuncNative is a Go-implemented built-in
	FuncNative FuncKind = iota
	// FuncBytecode runs a chunk on the frame interpreter
	FuncBytecode
	// FuncSpecial is a computed property: a getter/setter closure pair, or a
	// default accessor whose Index addresses an ivar slot directly
	FuncSpecial
)

// ComputedIndex is the reserved ivar index meaning "not a real slot"
const ComputedIndex = -1

// internalID tags the handful of built-ins whose identity matters at runtime
// (the conversion dispatchers use it to break override recursion)
type internalID uint8

const (
	internalNone internalID = iota
	internalConvertInt
	internalConvertFloat
	internalConvertBool
	internalConvertString
)

// NativeFn is the calling convention for built-ins. recv is the receiver;
// args are the explicit arguments.
type NativeFn func(rt *Runtime, recv Value, args []Value) Result

// Function is a callable body: native, bytecode, or computed-property pair.
type Function struct {
	Name    string
	NParams int // declared parameters, receiver excluded
	Kind    FuncKind

	Native  NativeFn
	Chunk   *bytecode.Chunk
	NLocals int // extra stack slots a bytecode body needs beyond its params

	// FuncSpecial fields
	Index  int // ivar slot for default accessors, ComputedIndex otherwise
	Getter *Closure
	Setter *Closure

	internal internalID
}

func NewNativeFunction(name string, nparams int, fn NativeFn) *Function {
	return &Function{Name: name, NParams: nparams, Kind: FuncNative, Native: fn, Index: ComputedIndex}
}

func NewBytecodeFunction(name string, nparams int, chunk *bytecode.Chunk) *Function {
	return &Function{Name: name, NParams: nparams, Kind: FuncBytecode, Chunk: chunk, Index: ComputedIndex}
}

// NewComputedProperty builds a getter/setter property entry. setter may be nil
// for a read-only property.
func NewComputedProperty(name string, getter, setter *Closure) *Closure {
	fn := &Function{Name: name, Kind: FuncSpecial, Index: ComputedIndex, Getter: getter, Setter: setter}
	return &Closure{Fn: fn}
}

// NewDefaultAccessor builds the thin accessor over a direct ivar slot
func NewDefaultAccessor(name string, slot int) *Closure {
	fn := &Function{Name: name, Kind: FuncSpecial, Index: slot}
	return &Closure{Fn: fn}
}

func (f *Function) IsSpecial() bool         { return f.Kind == FuncSpecial }
func (f *Function) IsDefaultAccessor() bool { return f.Kind == FuncSpecial && f.Index != ComputedIndex }

// Closure is a function plus an optional captured context object. The context
// reference is non-owning: unbind severs it to break the cycle back to the
// bound instance.
type Closure struct {
	Fn      *Function
	Context Object
}

func NewClosure(fn *Function) *Closure { return &Closure{Fn: fn} }

func (c *Closure) objclass(rt *Runtime) *Class  { return rt.clsClosure }
func (f *Function) objclass(rt *Runtime) *Class { return rt.clsFunction }

// resultKind discriminates what a dispatch or native call produced
type resultKind uint8

const (
	rValue resultKind = iota
	rNoValue
	rClosure // tail-call: the caller must execute this closure itself
	rFiber   // control transferred; the current fiber pointer already changed
	rError
)

// Result is the tagged outcome of dispatch and of every native operation. The
// interpreter pattern-matches on it instead of relying on an implicit stack
// convention.
type Result struct {
	kind    resultKind
	value   Value
	closure *Closure
	cargs   []Value // arguments a tail-call must run with; nil keeps the caller's
	err     *verrs.RuntimeError
}

func Done(v Value) Result        { return Result{kind: rValue, value: v} }
func NoValue() Result            { return Result{kind: rNoValue} }
func TailCall(c *Closure) Result { return Result{kind: rClosure, closure: c} }

// TailCallWith pins the argument list the tail-called closure must receive,
// overriding whatever arguments reached the dispatching operation.
func TailCallWith(c *Closure, args ...Value) Result {
	if args == nil {
		args = []Value{}
	}
	return Result{kind: rClosure, closure: c, cargs: args}
}

func FiberSwitched() Result { return Result{kind: rFiber} }

func Fail(err *verrs.RuntimeError) Result { return Result{kind: rError, err: err} }

func Failf(t verrs.ErrorType, format string, args ...interface{}) Result {
	return Result{kind: rError, err: verrs.Newf(t, format, args...)}
}

// IsError reports whether the result carries a runtime error
func (r Result) IsError() bool { return r.kind == rError }

// Err returns the carried error, nil for non-error results
func (r Result) Err() *verrs.RuntimeError { return r.err }

// Value returns the produced value; NoValue and fiber switches read as Null
func (r Result) Value() Value {
	if r.kind == rValue {
		return r.value
	}
	return Null()
}
