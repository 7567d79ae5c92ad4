package jni

import (
	"fmt"
	"strings"

	"github.com/chazu/jnibind/sig"
)

// Object is a host-side handle to a runtime object. It carries the type the
// object was declared with and, once known, its runtime class binding.
type Object struct {
	env      *Env
	ref      *Ref
	declared sig.Type
	class    *Class
}

// Ref returns the object reference.
func (o *Object) Ref() *Ref { return o.ref }

// Declared returns the static type the object was obtained as.
func (o *Object) Declared() sig.Type { return o.declared }

// Released reports whether the object's reference was released.
func (o *Object) Released() bool { return o.ref.released }

// Class returns the binding for the object's runtime class, asking the
// bridge on first use. If the class is already bound in the Env, that
// binding is reused.
func (o *Object) Class() (*Class, error) {
	if o.class != nil {
		return o.class, nil
	}
	if o.ref.released {
		return nil, fmt.Errorf("%w: %s", ErrReleased, o.ref)
	}
	e := o.env
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	ref, err := e.bridge.GetObjectClass(o.ref)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, fmt.Errorf("%w: no class for %s", ErrBridge, o.ref)
	}
	name := classNameFromQualifier(ref.qualifier)
	if name == "" {
		_ = e.deleteRef(ref)
		return nil, fmt.Errorf("%w: runtime class of %s has no name", ErrBridge, o.ref)
	}
	o.class = e.bindClass(ref, name)
	return o.class, nil
}

// IsInstanceOf reports whether the object is assignable to c.
func (o *Object) IsInstanceOf(c *Class) (bool, error) {
	if o.ref.released {
		return false, fmt.Errorf("%w: %s", ErrReleased, o.ref)
	}
	return o.env.bridge.IsInstanceOf(o.ref, c.ref)
}

// Call invokes the instance method registered under name. The declared
// type's binding is searched first, then the runtime class.
func (o *Object) Call(name string, args ...any) (any, error) {
	var h *MethodHandle
	err := o.search(func(c *Class) bool {
		h, _ = c.LookupMethod(name)
		return h != nil
	})
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("%w: no method %q registered for %s", ErrNoSuchMethod, name, o.declared)
	}
	raw, err := h.invoke(o.ref, args)
	if err != nil {
		return nil, err
	}
	return o.env.wrapResult(h.ret, raw)
}

// Get reads the instance field registered under name.
func (o *Object) Get(name string) (any, error) {
	f, err := o.field(name)
	if err != nil {
		return nil, err
	}
	return f.Get(o)
}

// Set writes the instance field registered under name.
func (o *Object) Set(name string, v any) error {
	f, err := o.field(name)
	if err != nil {
		return err
	}
	return f.Set(o, v)
}

func (o *Object) field(name string) (*FieldHandle, error) {
	var f *FieldHandle
	err := o.search(func(c *Class) bool {
		f, _ = c.LookupField(name)
		return f != nil
	})
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%w: no field %q registered for %s", ErrNoSuchMethod, name, o.declared)
	}
	return f, nil
}

// search visits the known class, the declared type's binding and the
// runtime class in that order until found returns true.
func (o *Object) search(found func(*Class) bool) error {
	if o.ref.released {
		return fmt.Errorf("%w: %s", ErrReleased, o.ref)
	}
	if o.class != nil && found(o.class) {
		return nil
	}
	if name := o.declared.ClassName(); name != "" {
		if c := o.env.cachedClass(name); c != nil && c != o.class && found(c) {
			return nil
		}
	}
	if o.class != nil {
		return nil
	}
	c, err := o.Class()
	if err != nil {
		return err
	}
	found(c)
	return nil
}

// Release hands the object's reference back to the bridge. Releasing twice
// is a no-op.
func (o *Object) Release() error {
	return o.env.release(o.ref)
}

// String returns the reference qualifier, followed by the class name when
// the qualifier does not already mention it.
func (o *Object) String() string {
	q := o.ref.qualifier
	name := o.declared.ClassName()
	if name == "" {
		name = o.declared.String()
	}
	if o.class != nil {
		name = o.class.name
	}
	if strings.Contains(q, name) {
		return q
	}
	return fmt.Sprintf("%s (%s)", q, name)
}
