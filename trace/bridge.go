package trace

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chazu/jnibind/jni"
	"github.com/chazu/jnibind/sig"
)

// maxArgs bounds the rendered argument list of one entry.
const maxArgs = 256

// Bridge is a jni.Bridge that journals every call before returning the
// inner bridge's result unchanged. Journal failures are logged, never
// returned.
type Bridge struct {
	inner   jni.Bridge
	journal *Journal
}

var _ jni.Bridge = (*Bridge)(nil)

// Wrap returns a Bridge recording b's traffic in j.
func Wrap(b jni.Bridge, j *Journal) *Bridge {
	return &Bridge{inner: b, journal: j}
}

// Unwrap returns the inner bridge.
func (b *Bridge) Unwrap() jni.Bridge { return b.inner }

// entry describes the call being journaled.
type entry struct {
	op        string
	qualifier string
	signature string
	args      string
}

func record[T any](b *Bridge, e entry, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	c := Call{
		At:        start,
		Op:        e.op,
		Qualifier: e.qualifier,
		Signature: e.signature,
		Args:      e.args,
		Duration:  time.Since(start),
	}
	if err != nil {
		c.ErrorKind = jni.ErrorKind(err)
		if c.ErrorKind == "" {
			c.ErrorKind = "other"
		}
		c.Outcome = err.Error()
	} else {
		c.Outcome = render(v)
	}
	if rerr := b.journal.Record(c); rerr != nil {
		b.journal.log.Warningf("%s", rerr)
	}
	return v, err
}

func recordVoid(b *Bridge, e entry, fn func() error) error {
	_, err := record(b, e, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// render formats one value for the journal.
func render(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case struct{}:
		return ""
	case *jni.Ref:
		if x == nil {
			return "null"
		}
		return x.Qualifier()
	case *jni.MemberID:
		if x == nil {
			return "null"
		}
		return x.TypeName()
	case string:
		return strconv.Quote(x)
	case uint16:
		return strconv.QuoteRune(rune(x))
	}
	return fmt.Sprint(v)
}

func renderArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = render(a)
	}
	s := strings.Join(parts, ", ")
	if len(s) > maxArgs {
		s = s[:maxArgs] + "..."
	}
	return s
}

func qualifier(r *jni.Ref, m *jni.MemberID) string {
	if m != nil {
		return m.Qualifier()
	}
	if r != nil {
		return r.Qualifier()
	}
	return ""
}

func callEntry(op string, r *jni.Ref, m *jni.MemberID, types []sig.Type, ret sig.Type, args []any) entry {
	return entry{
		op:        op,
		qualifier: qualifier(r, m),
		signature: sig.MethodSignature(types, ret),
		args:      renderArgs(args),
	}
}

// object is the return tag journaled for object-returning calls.
var object = sig.Class("java.lang.Object")

func (b *Bridge) FindClass(name string) (*jni.Ref, error) {
	return record(b, entry{op: "FindClass", qualifier: name}, func() (*jni.Ref, error) {
		return b.inner.FindClass(name)
	})
}

func (b *Bridge) GetObjectClass(obj *jni.Ref) (*jni.Ref, error) {
	return record(b, entry{op: "GetObjectClass", qualifier: qualifier(obj, nil)}, func() (*jni.Ref, error) {
		return b.inner.GetObjectClass(obj)
	})
}

func (b *Bridge) IsInstanceOf(obj, class *jni.Ref) (bool, error) {
	e := entry{op: "IsInstanceOf", qualifier: qualifier(obj, nil), args: render(class)}
	return record(b, e, func() (bool, error) {
		return b.inner.IsInstanceOf(obj, class)
	})
}

func (b *Bridge) memberID(op string, class *jni.Ref, name, signature string, fn func(*jni.Ref, string, string) (*jni.MemberID, error)) (*jni.MemberID, error) {
	e := entry{op: op, qualifier: qualifier(class, nil) + " " + name, signature: signature}
	return record(b, e, func() (*jni.MemberID, error) {
		return fn(class, name, signature)
	})
}

func (b *Bridge) GetMethodID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return b.memberID("GetMethodID", class, name, signature, b.inner.GetMethodID)
}

func (b *Bridge) GetStaticMethodID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return b.memberID("GetStaticMethodID", class, name, signature, b.inner.GetStaticMethodID)
}

func (b *Bridge) GetFieldID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return b.memberID("GetFieldID", class, name, signature, b.inner.GetFieldID)
}

func (b *Bridge) GetStaticFieldID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return b.memberID("GetStaticFieldID", class, name, signature, b.inner.GetStaticFieldID)
}

func (b *Bridge) NewObject(class *jni.Ref, ctor *jni.MemberID, argTypes []sig.Type, args ...any) (*jni.Ref, error) {
	e := callEntry("NewObject", class, ctor, argTypes, sig.Void, args)
	return record(b, e, func() (*jni.Ref, error) {
		return b.inner.NewObject(class, ctor, argTypes, args...)
	})
}

// call journals one typed Call*Method entry point.
func call[T any](b *Bridge, op string, ret sig.Type, f func(*jni.Ref, *jni.MemberID, []sig.Type, ...any) (T, error),
	target *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args []any) (T, error) {
	return record(b, callEntry(op, target, m, argTypes, ret, args), func() (T, error) {
		return f(target, m, argTypes, args...)
	})
}

func (b *Bridge) CallVoidMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) error {
	return recordVoid(b, callEntry("CallVoidMethod", obj, m, argTypes, sig.Void, args), func() error {
		return b.inner.CallVoidMethod(obj, m, argTypes, args...)
	})
}

func (b *Bridge) CallObjectMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (*jni.Ref, error) {
	return call(b, "CallObjectMethod", object, b.inner.CallObjectMethod, obj, m, argTypes, args)
}

func (b *Bridge) CallBooleanMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (bool, error) {
	return call(b, "CallBooleanMethod", sig.Boolean, b.inner.CallBooleanMethod, obj, m, argTypes, args)
}

func (b *Bridge) CallByteMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int8, error) {
	return call(b, "CallByteMethod", sig.Byte, b.inner.CallByteMethod, obj, m, argTypes, args)
}

func (b *Bridge) CallCharMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (uint16, error) {
	return call(b, "CallCharMethod", sig.Char, b.inner.CallCharMethod, obj, m, argTypes, args)
}

func (b *Bridge) CallShortMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int16, error) {
	return call(b, "CallShortMethod", sig.Short, b.inner.CallShortMethod, obj, m, argTypes, args)
}

func (b *Bridge) CallIntMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int32, error) {
	return call(b, "CallIntMethod", sig.Int, b.inner.CallIntMethod, obj, m, argTypes, args)
}

func (b *Bridge) CallLongMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int64, error) {
	return call(b, "CallLongMethod", sig.Long, b.inner.CallLongMethod, obj, m, argTypes, args)
}

func (b *Bridge) CallFloatMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (float32, error) {
	return call(b, "CallFloatMethod", sig.Float, b.inner.CallFloatMethod, obj, m, argTypes, args)
}

func (b *Bridge) CallDoubleMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (float64, error) {
	return call(b, "CallDoubleMethod", sig.Double, b.inner.CallDoubleMethod, obj, m, argTypes, args)
}

func (b *Bridge) CallStaticVoidMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) error {
	return recordVoid(b, callEntry("CallStaticVoidMethod", class, m, argTypes, sig.Void, args), func() error {
		return b.inner.CallStaticVoidMethod(class, m, argTypes, args...)
	})
}

func (b *Bridge) CallStaticObjectMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (*jni.Ref, error) {
	return call(b, "CallStaticObjectMethod", object, b.inner.CallStaticObjectMethod, class, m, argTypes, args)
}

func (b *Bridge) CallStaticBooleanMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (bool, error) {
	return call(b, "CallStaticBooleanMethod", sig.Boolean, b.inner.CallStaticBooleanMethod, class, m, argTypes, args)
}

func (b *Bridge) CallStaticByteMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int8, error) {
	return call(b, "CallStaticByteMethod", sig.Byte, b.inner.CallStaticByteMethod, class, m, argTypes, args)
}

func (b *Bridge) CallStaticCharMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (uint16, error) {
	return call(b, "CallStaticCharMethod", sig.Char, b.inner.CallStaticCharMethod, class, m, argTypes, args)
}

func (b *Bridge) CallStaticShortMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int16, error) {
	return call(b, "CallStaticShortMethod", sig.Short, b.inner.CallStaticShortMethod, class, m, argTypes, args)
}

func (b *Bridge) CallStaticIntMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int32, error) {
	return call(b, "CallStaticIntMethod", sig.Int, b.inner.CallStaticIntMethod, class, m, argTypes, args)
}

func (b *Bridge) CallStaticLongMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int64, error) {
	return call(b, "CallStaticLongMethod", sig.Long, b.inner.CallStaticLongMethod, class, m, argTypes, args)
}

func (b *Bridge) CallStaticFloatMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (float32, error) {
	return call(b, "CallStaticFloatMethod", sig.Float, b.inner.CallStaticFloatMethod, class, m, argTypes, args)
}

func (b *Bridge) CallStaticDoubleMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (float64, error) {
	return call(b, "CallStaticDoubleMethod", sig.Double, b.inner.CallStaticDoubleMethod, class, m, argTypes, args)
}

func fieldEntry(op string, r *jni.Ref, f *jni.MemberID, t sig.Type) entry {
	return entry{op: op, qualifier: qualifier(r, f), signature: sig.Signature(t)}
}

func (b *Bridge) GetField(obj *jni.Ref, f *jni.MemberID, t sig.Type) (any, error) {
	return record(b, fieldEntry("GetField", obj, f, t), func() (any, error) {
		return b.inner.GetField(obj, f, t)
	})
}

func (b *Bridge) SetField(obj *jni.Ref, f *jni.MemberID, t sig.Type, value any) error {
	e := fieldEntry("SetField", obj, f, t)
	e.args = render(value)
	return recordVoid(b, e, func() error {
		return b.inner.SetField(obj, f, t, value)
	})
}

func (b *Bridge) GetStaticField(class *jni.Ref, f *jni.MemberID, t sig.Type) (any, error) {
	return record(b, fieldEntry("GetStaticField", class, f, t), func() (any, error) {
		return b.inner.GetStaticField(class, f, t)
	})
}

func (b *Bridge) SetStaticField(class *jni.Ref, f *jni.MemberID, t sig.Type, value any) error {
	e := fieldEntry("SetStaticField", class, f, t)
	e.args = render(value)
	return recordVoid(b, e, func() error {
		return b.inner.SetStaticField(class, f, t, value)
	})
}

func (b *Bridge) GetStringUTF(str *jni.Ref) (string, error) {
	return record(b, entry{op: "GetStringUTF", qualifier: qualifier(str, nil)}, func() (string, error) {
		return b.inner.GetStringUTF(str)
	})
}

func (b *Bridge) DeleteRef(ref *jni.Ref) error {
	return recordVoid(b, entry{op: "DeleteRef", qualifier: qualifier(ref, nil)}, func() error {
		return b.inner.DeleteRef(ref)
	})
}
