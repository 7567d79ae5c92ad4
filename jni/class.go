package jni

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/chazu/jnibind/sig"
)

// Class is the binding for one runtime class: its reference plus the
// registry of methods, constructors and fields resolved against it.
//
// Registration resolves member ids eagerly, so lookup errors surface when a
// method is declared rather than when it is first called.
type Class struct {
	env  *Env
	ref  *Ref
	name string

	mu            sync.RWMutex
	methods       map[string]*MethodHandle
	staticMethods map[string]*MethodHandle
	ctors         map[int]*MethodHandle
	fields        map[string]*FieldHandle
	staticFields  map[string]*FieldHandle
}

func newClass(e *Env, ref *Ref, name string) *Class {
	return &Class{
		env:           e,
		ref:           ref,
		name:          name,
		methods:       make(map[string]*MethodHandle),
		staticMethods: make(map[string]*MethodHandle),
		ctors:         make(map[int]*MethodHandle),
		fields:        make(map[string]*FieldHandle),
		staticFields:  make(map[string]*FieldHandle),
	}
}

// Name returns the dotted class name.
func (c *Class) Name() string { return c.name }

// Ref returns the class reference.
func (c *Class) Ref() *Ref { return c.ref }

// Env returns the session the class is bound in.
func (c *Class) Env() *Env { return c.env }

// Type returns the tag for instances of the class.
func (c *Class) Type() sig.Type {
	if c.name == sig.StringClass {
		return sig.String
	}
	if strings.HasPrefix(c.name, "[") {
		if t, err := sig.ParseDescriptor(c.name); err == nil {
			return t
		}
	}
	return sig.Class(c.name)
}

func (c *Class) String() string { return "class " + c.name }

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

// Method resolves an instance method and registers it under name. The
// runtime name is derived from name by RuntimeName. Registering the same
// name twice replaces the earlier handle.
func (c *Class) Method(name string, args []sig.Type, ret sig.Type) (*MethodHandle, error) {
	h, err := c.resolveMethod(name, args, ret, false, false)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.methods[name] = h
	c.mu.Unlock()
	return h, nil
}

// StaticMethod resolves a static method and registers it under name.
func (c *Class) StaticMethod(name string, args []sig.Type, ret sig.Type) (*MethodHandle, error) {
	h, err := c.resolveMethod(name, args, ret, true, false)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.staticMethods[name] = h
	c.mu.Unlock()
	return h, nil
}

// Constructor resolves a constructor and registers it under its arity. Only
// one constructor per arity can be registered; a later registration replaces
// the earlier one.
func (c *Class) Constructor(args ...sig.Type) (*MethodHandle, error) {
	h, err := c.resolveMethod("<init>", args, sig.Void, true, true)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if prev, ok := c.ctors[len(args)]; ok && prev.signature != h.signature {
		c.env.log.Warningf("%s: constructor %s replaces %s (arity %d)", c.name, h.signature, prev.signature, len(args))
	}
	c.ctors[len(args)] = h
	c.mu.Unlock()
	return h, nil
}

// Field resolves an instance field and registers it under name.
func (c *Class) Field(name string, t sig.Type) (*FieldHandle, error) {
	f, err := c.resolveField(name, t, false)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.fields[name] = f
	c.mu.Unlock()
	return f, nil
}

// StaticField resolves a static field and registers it under name.
func (c *Class) StaticField(name string, t sig.Type) (*FieldHandle, error) {
	f, err := c.resolveField(name, t, true)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.staticFields[name] = f
	c.mu.Unlock()
	return f, nil
}

func (c *Class) resolveMethod(name string, args []sig.Type, ret sig.Type, static, ctor bool) (*MethodHandle, error) {
	if err := sig.ValidateArgs(args); err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.name, name, err)
	}
	if !ret.IsValid() {
		return nil, fmt.Errorf("%s.%s: %w: invalid return tag", c.name, name, sig.ErrUnknownType)
	}
	if err := c.env.checkOpen(); err != nil {
		return nil, err
	}

	runtime := RuntimeName(name)
	signature := sig.MethodSignature(args, ret)
	var (
		id  *MemberID
		err error
	)
	switch {
	case ctor:
		id, err = c.env.bridge.GetMethodID(c.ref, "<init>", signature)
	case static:
		id, err = c.env.bridge.GetStaticMethodID(c.ref, runtime, signature)
	default:
		id, err = c.env.bridge.GetMethodID(c.ref, runtime, signature)
	}
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, fmt.Errorf("%w: %s.%s%s", ErrNoSuchMethod, c.name, runtime, signature)
	}

	classes, err := c.paramClasses(args)
	if err != nil {
		return nil, err
	}

	h := &MethodHandle{
		class:        c,
		name:         name,
		runtimeName:  runtime,
		signature:    signature,
		id:           id,
		args:         append([]sig.Type(nil), args...),
		ret:          ret,
		static:       static,
		ctor:         ctor,
		paramClasses: classes,
	}
	if ctor {
		h.variant = constructorVariant
		h.ret = c.Type()
	} else if h.variant, err = selectVariant(ret, static); err != nil {
		return nil, err
	}
	c.env.log.Debugf("registered %s as %s%s via %s", h, runtime, signature, h.variant)
	return h, nil
}

func (c *Class) resolveField(name string, t sig.Type, static bool) (*FieldHandle, error) {
	if !t.IsValid() || t.Kind() == sig.KindVoid {
		return nil, fmt.Errorf("%s.%s: %w: invalid field tag", c.name, name, sig.ErrUnknownType)
	}
	if err := c.env.checkOpen(); err != nil {
		return nil, err
	}
	runtime := RuntimeName(name)
	signature := t.Signature()
	var (
		id  *MemberID
		err error
	)
	if static {
		id, err = c.env.bridge.GetStaticFieldID(c.ref, runtime, signature)
	} else {
		id, err = c.env.bridge.GetFieldID(c.ref, runtime, signature)
	}
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, fmt.Errorf("%w: field %s.%s %s", ErrNoSuchMethod, c.name, runtime, signature)
	}
	classes, err := c.paramClasses([]sig.Type{t})
	if err != nil {
		return nil, err
	}
	return &FieldHandle{
		class:       c,
		name:        name,
		runtimeName: runtime,
		typ:         t,
		id:          id,
		static:      static,
		valueClass:  classes[0],
	}, nil
}

// paramClasses resolves the class of every class- or array-typed tag.
func (c *Class) paramClasses(args []sig.Type) ([]*Ref, error) {
	out := make([]*Ref, len(args))
	for i, a := range args {
		switch a.Kind() {
		case sig.KindObject, sig.KindArray:
			pc, err := c.env.ClassFor(a)
			if err != nil {
				return nil, err
			}
			out[i] = pc.ref
		}
	}
	return out, nil
}

// Registrar declares several members of a class with symbolic tags. The
// first failure stops registration; later declarations are ignored.
type Registrar struct {
	class *Class
	err   error
}

// Register runs fn against a Registrar for c and returns the first error.
//
//	err := url.Register(func(r *jni.Registrar) {
//		r.Constructor("string")
//		r.Method("get_host", nil, "string")
//		r.StaticMethod("value_of", []any{"int"}, "string")
//	})
func (c *Class) Register(fn func(r *Registrar)) error {
	r := &Registrar{class: c}
	fn(r)
	return r.err
}

// Err returns the first registration error, if any.
func (r *Registrar) Err() error { return r.err }

// Method declares an instance method.
func (r *Registrar) Method(name string, args []any, ret any) {
	r.method(name, args, ret, false)
}

// StaticMethod declares a static method.
func (r *Registrar) StaticMethod(name string, args []any, ret any) {
	r.method(name, args, ret, true)
}

func (r *Registrar) method(name string, args []any, ret any, static bool) {
	if r.err != nil {
		return
	}
	argTypes, err := sig.ParseList(args)
	if err != nil {
		r.err = fmt.Errorf("%s.%s: %w", r.class.name, name, err)
		return
	}
	retType, err := sig.Parse(ret)
	if err != nil {
		r.err = fmt.Errorf("%s.%s: return type: %w", r.class.name, name, err)
		return
	}
	if static {
		_, r.err = r.class.StaticMethod(name, argTypes, retType)
	} else {
		_, r.err = r.class.Method(name, argTypes, retType)
	}
}

// Constructor declares a constructor.
func (r *Registrar) Constructor(args ...any) {
	if r.err != nil {
		return
	}
	argTypes, err := sig.ParseList(args)
	if err != nil {
		r.err = fmt.Errorf("%s constructor: %w", r.class.name, err)
		return
	}
	_, r.err = r.class.Constructor(argTypes...)
}

// Field declares an instance field.
func (r *Registrar) Field(name string, t any) {
	r.field(name, t, false)
}

// StaticField declares a static field.
func (r *Registrar) StaticField(name string, t any) {
	r.field(name, t, true)
}

func (r *Registrar) field(name string, t any, static bool) {
	if r.err != nil {
		return
	}
	typ, err := sig.Parse(t)
	if err != nil {
		r.err = fmt.Errorf("%s.%s: %w", r.class.name, name, err)
		return
	}
	if static {
		_, r.err = r.class.StaticField(name, typ)
	} else {
		_, r.err = r.class.Field(name, typ)
	}
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

// LookupMethod returns the instance method registered under name.
func (c *Class) LookupMethod(name string) (*MethodHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.methods[name]
	return h, ok
}

// LookupStaticMethod returns the static method registered under name.
func (c *Class) LookupStaticMethod(name string) (*MethodHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.staticMethods[name]
	return h, ok
}

// LookupConstructor returns the constructor registered for arity.
func (c *Class) LookupConstructor(arity int) (*MethodHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.ctors[arity]
	return h, ok
}

// LookupField returns the instance field registered under name.
func (c *Class) LookupField(name string) (*FieldHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.fields[name]
	return f, ok
}

// LookupStaticField returns the static field registered under name.
func (c *Class) LookupStaticField(name string) (*FieldHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.staticFields[name]
	return f, ok
}

// Methods returns every registered method, instance methods first, each
// group sorted by name.
func (c *Class) Methods() []*MethodHandle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append(sortedHandles(c.methods), sortedHandles(c.staticMethods)...)
}

// Constructors returns the registered constructors ordered by arity.
func (c *Class) Constructors() []*MethodHandle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*MethodHandle, 0, len(c.ctors))
	for _, h := range c.ctors {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return len(out[i].args) < len(out[j].args) })
	return out
}

// Fields returns every registered field, instance fields first.
func (c *Class) Fields() []*FieldHandle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*FieldHandle
	for _, m := range []map[string]*FieldHandle{c.fields, c.staticFields} {
		start := len(out)
		for _, f := range m {
			out = append(out, f)
		}
		group := out[start:]
		sort.Slice(group, func(i, j int) bool { return group[i].name < group[j].name })
	}
	return out
}

func sortedHandles(m map[string]*MethodHandle) []*MethodHandle {
	out := make([]*MethodHandle, 0, len(m))
	for _, h := range m {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// New constructs an instance with the constructor registered for
// len(args).
func (c *Class) New(args ...any) (*Object, error) {
	h, ok := c.LookupConstructor(len(args))
	if !ok {
		return nil, fmt.Errorf("%w: %s has no registered constructor of arity %d", ErrNoSuchMethod, c.name, len(args))
	}
	raw, err := h.invoke(c.ref, args)
	if err != nil {
		return nil, err
	}
	return c.adoptInstance(raw)
}

func (c *Class) adoptInstance(raw any) (*Object, error) {
	ref, _ := raw.(*Ref)
	if ref == nil {
		return nil, fmt.Errorf("%w: %s constructor returned null", ErrBridge, c.name)
	}
	c.env.adopt(ref)
	return &Object{env: c.env, ref: ref, declared: c.Type(), class: c}, nil
}

// CallStatic invokes the static method registered under name.
func (c *Class) CallStatic(name string, args ...any) (any, error) {
	h, ok := c.LookupStaticMethod(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no registered static method %q", ErrNoSuchMethod, c.name, name)
	}
	return h.Invoke(nil, args...)
}

// GetStatic reads the static field registered under name.
func (c *Class) GetStatic(name string) (any, error) {
	f, ok := c.LookupStaticField(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no registered static field %q", ErrNoSuchMethod, c.name, name)
	}
	return f.Get(nil)
}

// SetStatic writes the static field registered under name.
func (c *Class) SetStatic(name string, v any) error {
	f, ok := c.LookupStaticField(name)
	if !ok {
		return fmt.Errorf("%w: %s has no registered static field %q", ErrNoSuchMethod, c.name, name)
	}
	return f.Set(nil, v)
}
