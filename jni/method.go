package jni

import (
	"fmt"
	"strings"

	"github.com/chazu/jnibind/sig"
)

// MethodHandle is a resolved method or constructor: its member id, its
// parameter and return tags, and the bridge entry point frozen at
// registration.
type MethodHandle struct {
	class       *Class
	name        string
	runtimeName string
	signature   string
	id          *MemberID
	args        []sig.Type
	ret         sig.Type
	static      bool
	ctor        bool
	variant     callVariant

	// paramClasses holds the class reference for each class-typed parameter,
	// nil elsewhere.
	paramClasses []*Ref
}

// Name returns the logical name the method was registered under.
func (h *MethodHandle) Name() string { return h.name }

// RuntimeName returns the name looked up in the runtime.
func (h *MethodHandle) RuntimeName() string { return h.runtimeName }

// Signature returns the mangled signature, e.g. "(IZ)Z".
func (h *MethodHandle) Signature() string { return h.signature }

// ID returns the method's member id.
func (h *MethodHandle) ID() *MemberID { return h.id }

// Class returns the class the method was registered on.
func (h *MethodHandle) Class() *Class { return h.class }

// Args returns a copy of the parameter tags.
func (h *MethodHandle) Args() []sig.Type {
	return append([]sig.Type(nil), h.args...)
}

// Returns returns the return tag. Constructors report the class they build.
func (h *MethodHandle) Returns() sig.Type { return h.ret }

// IsStatic reports whether the method is invoked on the class.
func (h *MethodHandle) IsStatic() bool { return h.static }

// IsConstructor reports whether the handle is a constructor.
func (h *MethodHandle) IsConstructor() bool { return h.ctor }

// EntryPoint names the bridge entry point the handle dispatches to, e.g.
// "CallStaticBooleanMethod".
func (h *MethodHandle) EntryPoint() string { return h.variant.name }

func (h *MethodHandle) String() string {
	var b strings.Builder
	if h.static && !h.ctor {
		b.WriteString("static ")
	}
	b.WriteString(h.class.name)
	if !h.ctor {
		b.WriteByte('.')
		b.WriteString(h.name)
	}
	b.WriteByte('(')
	for i, a := range h.args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	if !h.ctor {
		b.WriteByte(' ')
		b.WriteString(h.ret.String())
	}
	return b.String()
}

// Invoke calls the method. recv is the receiver for instance methods and is
// ignored for static methods and constructors. Constructors return *Object.
func (h *MethodHandle) Invoke(recv *Object, args ...any) (any, error) {
	target := h.class.ref
	if !h.static {
		if recv == nil {
			return nil, fmt.Errorf("%w: %s needs a receiver", ErrBridge, h)
		}
		target = recv.ref
	}
	raw, err := h.invoke(target, args)
	if err != nil {
		return nil, err
	}
	if h.ctor {
		return h.class.adoptInstance(raw)
	}
	return h.class.env.wrapResult(h.ret, raw)
}

func (h *MethodHandle) invoke(target *Ref, args []any) (any, error) {
	e := h.class.env
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if target.released {
		return nil, fmt.Errorf("%w: %s", ErrReleased, target)
	}
	vals, err := e.marshalArgs(h.args, h.paramClasses, args)
	if err != nil {
		return nil, err
	}
	return h.variant.call(e.bridge, target, h.id, h.args, vals)
}

// FieldHandle is a resolved instance or static field.
type FieldHandle struct {
	class       *Class
	name        string
	runtimeName string
	typ         sig.Type
	id          *MemberID
	static      bool
	valueClass  *Ref
}

// Name returns the logical name the field was registered under.
func (f *FieldHandle) Name() string { return f.name }

// RuntimeName returns the name looked up in the runtime.
func (f *FieldHandle) RuntimeName() string { return f.runtimeName }

// Type returns the field's type tag.
func (f *FieldHandle) Type() sig.Type { return f.typ }

// ID returns the field's member id.
func (f *FieldHandle) ID() *MemberID { return f.id }

// IsStatic reports whether the field belongs to the class.
func (f *FieldHandle) IsStatic() bool { return f.static }

func (f *FieldHandle) String() string {
	prefix := ""
	if f.static {
		prefix = "static "
	}
	return fmt.Sprintf("%s%s.%s %s", prefix, f.class.name, f.name, f.typ)
}

// Get reads the field. recv is ignored for static fields.
func (f *FieldHandle) Get(recv *Object) (any, error) {
	e := f.class.env
	target, err := f.target(recv)
	if err != nil {
		return nil, err
	}
	var raw any
	if f.static {
		raw, err = e.bridge.GetStaticField(target, f.id, f.typ)
	} else {
		raw, err = e.bridge.GetField(target, f.id, f.typ)
	}
	if err != nil {
		return nil, err
	}
	return e.wrapResult(f.typ, raw)
}

// Set writes the field after validating v as a value of the field's type.
func (f *FieldHandle) Set(recv *Object, v any) error {
	e := f.class.env
	target, err := f.target(recv)
	if err != nil {
		return err
	}
	val, err := e.marshalArg(f.typ, f.valueClass, 1, v)
	if err != nil {
		return err
	}
	if f.static {
		return e.bridge.SetStaticField(target, f.id, f.typ, val)
	}
	return e.bridge.SetField(target, f.id, f.typ, val)
}

func (f *FieldHandle) target(recv *Object) (*Ref, error) {
	if err := f.class.env.checkOpen(); err != nil {
		return nil, err
	}
	target := f.class.ref
	if !f.static {
		if recv == nil {
			return nil, fmt.Errorf("%w: %s needs a receiver", ErrBridge, f)
		}
		target = recv.ref
	}
	if target.released {
		return nil, fmt.Errorf("%w: %s", ErrReleased, target)
	}
	return target, nil
}
