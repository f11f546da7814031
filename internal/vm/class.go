package vm

import (
	"strings"

	"github.com/google/uuid"
)

// Class holds an identifier, the ordered ivar slot table, the method/property
// table, an optional superclass and a paired meta-class. Exactly two classes
// (Object and Class) have no superclass; every other ancestor chain terminates
// at Object.
type Class struct {
	Name  string
	Super *Class

	// meta is the class of the class; it holds static members. Meta-classes
	// themselves have meta == nil and resolve their own class to Class.
	meta *Class

	NIVars    int
	ivarNames map[string]int
	ivars     []Value // class-side slot storage (statics)

	methods      map[string]*Closure
	constructors map[int]*Closure

	isInited bool // meta static initializer ran (idempotent guard)
	IsStruct bool // value semantics: clone on store
	XData    interface{}
	anon     bool
}

// NewClass creates a class/meta pair. The meta chain mirrors the superclass
// chain so static members inherit; the runtime roots the chain at Class
// during bootstrap. super may be nil only for the root classes.
func NewClass(name string, super *Class) *Class {
	c := newSingleClass(name, super)
	var metaSuper *Class
	if super != nil {
		metaSuper = super.meta
	}
	meta := newSingleClass("meta:"+name, metaSuper)
	c.meta = meta
	return c
}

func newSingleClass(name string, super *Class) *Class {
	return &Class{
		Name:         name,
		Super:        super,
		ivarNames:    map[string]int{},
		methods:      map[string]*Closure{},
		constructors: map[int]*Closure{},
	}
}

func (c *Class) objclass(rt *Runtime) *Class {
	if c.meta == nil {
		// c is itself a meta-class
		return rt.clsClass
	}
	return c.meta
}

// Meta returns the paired meta-class
func (c *Class) Meta() *Class { return c.meta }

// IsAnon reports whether the class was synthesized by bind
func (c *Class) IsAnon() bool { return c.anon }

// Bind adds (or replaces) a named member
func (c *Class) Bind(name string, entry *Closure) {
	c.methods[name] = entry
}

// BindNative is shorthand for binding a native method
func (c *Class) BindNative(name string, nparams int, fn NativeFn) {
	c.Bind(name, NewClosure(NewNativeFunction(name, nparams, fn)))
}

// BindConstructor registers a constructor for a declared arity
func (c *Class) BindConstructor(nparams int, cl *Closure) {
	c.constructors[nparams] = cl
}

// AddIVar appends a named slot to the instance layout and returns its index
func (c *Class) AddIVar(name string) int {
	idx := c.NIVars
	c.ivarNames[name] = idx
	c.NIVars++
	if name != "" {
		// default accessors give compiled field access its O(1) path
		c.Bind(name, NewDefaultAccessor(name, idx))
	}
	return idx
}

// lookupOwn consults only this class's table
func (c *Class) lookupOwn(name string) *Closure {
	return c.methods[name]
}

// Resolve walks the class's own table then the superclass chain, stopping at
// the first hit. A nil return means the walk reached past Object.
func Resolve(c *Class, name string) *Closure {
	for ; c != nil; c = c.Super {
		if entry, ok := c.methods[name]; ok {
			return entry
		}
	}
	return nil
}

// lookupConstructor resolves a constructor by declared arity. An exact match
// wins; otherwise a sole constructor with a larger arity is accepted (missing
// trailing arguments become Undefined at call time).
func (c *Class) lookupConstructor(nargs int) *Closure {
	for k := c; k != nil; k = k.Super {
		if cl, ok := k.constructors[nargs]; ok {
			return cl
		}
		if len(k.constructors) == 1 {
			for np, cl := range k.constructors {
				if np > nargs {
					return cl
				}
			}
		}
		if len(k.constructors) > 0 {
			return nil
		}
	}
	return nil
}

// NewInstance allocates a zeroed instance: every ivar slot starts as Null.
func (c *Class) NewInstance() *Instance {
	ivars := make([]Value, c.NIVars)
	for i := range ivars {
		ivars[i] = Null()
	}
	return &Instance{Class: c, IVars: ivars}
}

// classIVars returns the class-side slot storage, growing it on demand.
// Static slots are declared on the meta, so the meta's layout sizes it.
func (c *Class) classIVars() []Value {
	n := c.NIVars
	if c.meta != nil && c.meta.NIVars > n {
		n = c.meta.NIVars
	}
	for len(c.ivars) < n {
		c.ivars = append(c.ivars, Null())
	}
	return c.ivars
}

// newAnonClass synthesizes the per-object class bind inserts into an
// instance's ancestor chain.
func newAnonClass(super *Class) *Class {
	name := "anon:" + strings.Split(uuid.NewString(), "-")[0]
	c := NewClass(name, super)
	c.anon = true
	return c
}
