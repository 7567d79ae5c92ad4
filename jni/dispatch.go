package jni

import (
	"fmt"

	"github.com/chazu/jnibind/sig"
)

// callFunc invokes one bridge entry point. target is the receiver for
// instance calls and the class for static calls and constructors.
type callFunc func(b Bridge, target *Ref, id *MemberID, types []sig.Type, args []any) (any, error)

// callVariant is a bridge entry point chosen once per method, at
// registration, from the method's return kind.
type callVariant struct {
	name   string
	static bool
	call   callFunc
}

func (v callVariant) String() string { return v.name }

var instanceVariants = map[sig.Kind]callVariant{
	sig.KindVoid: {"CallVoidMethod", false, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return nil, b.CallVoidMethod(t, id, ty, a...)
	}},
	sig.KindObject: {"CallObjectMethod", false, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallObjectMethod(t, id, ty, a...)
	}},
	sig.KindBoolean: {"CallBooleanMethod", false, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallBooleanMethod(t, id, ty, a...)
	}},
	sig.KindByte: {"CallByteMethod", false, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallByteMethod(t, id, ty, a...)
	}},
	sig.KindChar: {"CallCharMethod", false, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallCharMethod(t, id, ty, a...)
	}},
	sig.KindShort: {"CallShortMethod", false, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallShortMethod(t, id, ty, a...)
	}},
	sig.KindInt: {"CallIntMethod", false, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallIntMethod(t, id, ty, a...)
	}},
	sig.KindLong: {"CallLongMethod", false, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallLongMethod(t, id, ty, a...)
	}},
	sig.KindFloat: {"CallFloatMethod", false, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallFloatMethod(t, id, ty, a...)
	}},
	sig.KindDouble: {"CallDoubleMethod", false, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallDoubleMethod(t, id, ty, a...)
	}},
}

var staticVariants = map[sig.Kind]callVariant{
	sig.KindVoid: {"CallStaticVoidMethod", true, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return nil, b.CallStaticVoidMethod(t, id, ty, a...)
	}},
	sig.KindObject: {"CallStaticObjectMethod", true, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallStaticObjectMethod(t, id, ty, a...)
	}},
	sig.KindBoolean: {"CallStaticBooleanMethod", true, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallStaticBooleanMethod(t, id, ty, a...)
	}},
	sig.KindByte: {"CallStaticByteMethod", true, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallStaticByteMethod(t, id, ty, a...)
	}},
	sig.KindChar: {"CallStaticCharMethod", true, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallStaticCharMethod(t, id, ty, a...)
	}},
	sig.KindShort: {"CallStaticShortMethod", true, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallStaticShortMethod(t, id, ty, a...)
	}},
	sig.KindInt: {"CallStaticIntMethod", true, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallStaticIntMethod(t, id, ty, a...)
	}},
	sig.KindLong: {"CallStaticLongMethod", true, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallStaticLongMethod(t, id, ty, a...)
	}},
	sig.KindFloat: {"CallStaticFloatMethod", true, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallStaticFloatMethod(t, id, ty, a...)
	}},
	sig.KindDouble: {"CallStaticDoubleMethod", true, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
		return b.CallStaticDoubleMethod(t, id, ty, a...)
	}},
}

var constructorVariant = callVariant{"NewObject", true, func(b Bridge, t *Ref, id *MemberID, ty []sig.Type, a []any) (any, error) {
	return b.NewObject(t, id, ty, a...)
}}

// selectVariant picks the entry point for a return type. Strings, class
// instances and arrays all come back through the object entry point.
func selectVariant(ret sig.Type, static bool) (callVariant, error) {
	k := ret.Kind()
	if k.IsReference() {
		k = sig.KindObject
	}
	table := instanceVariants
	if static {
		table = staticVariants
	}
	v, ok := table[k]
	if !ok {
		return callVariant{}, fmt.Errorf("%w: no call variant for return type %s", ErrBridge, ret)
	}
	return v, nil
}

// wrapResult converts a raw bridge result to its host form. Strings are
// read and their reference released at once; class instances and arrays
// become Objects tracked in the current frame.
func (e *Env) wrapResult(ret sig.Type, raw any) (any, error) {
	switch ret.Kind() {
	case sig.KindVoid:
		return nil, nil
	case sig.KindString:
		ref, _ := raw.(*Ref)
		if ref == nil {
			return nil, nil
		}
		s, err := e.bridge.GetStringUTF(ref)
		if derr := e.deleteRef(ref); err == nil {
			err = derr
		}
		if err != nil {
			return nil, err
		}
		return s, nil
	case sig.KindObject, sig.KindArray:
		ref, _ := raw.(*Ref)
		if ref == nil {
			return nil, nil
		}
		e.adopt(ref)
		return &Object{env: e, ref: ref, declared: ret}, nil
	}
	return raw, nil
}
