package jni

import "github.com/chazu/jnibind/sig"

// Bridge is the native invocation layer the binding core calls into.
//
// Class names passed to FindClass are slash-separated ("java/lang/String");
// array classes use their descriptor ("[I"). Signatures use the mangled
// "(<args>)<return>" format produced by package sig.
//
// Call arguments arrive validated and normalized by the dispatcher, one per
// declared type:
//
//	boolean bool      byte int8      char uint16     short int16
//	int     int32     long int64     float float32   double float64
//	string  string, or nil for null
//	class and array types  *Ref, or nil for null
//
// Object-returning entry points return a *Ref (nil for null). A throwable
// raised by the runtime must be reported through TranslateThrowable.
type Bridge interface {
	FindClass(name string) (*Ref, error)
	GetObjectClass(obj *Ref) (*Ref, error)
	IsInstanceOf(obj, class *Ref) (bool, error)

	GetMethodID(class *Ref, name, signature string) (*MemberID, error)
	GetStaticMethodID(class *Ref, name, signature string) (*MemberID, error)
	GetFieldID(class *Ref, name, signature string) (*MemberID, error)
	GetStaticFieldID(class *Ref, name, signature string) (*MemberID, error)

	NewObject(class *Ref, ctor *MemberID, argTypes []sig.Type, args ...any) (*Ref, error)

	CallVoidMethod(obj *Ref, method *MemberID, argTypes []sig.Type, args ...any) error
	CallObjectMethod(obj *Ref, method *MemberID, argTypes []sig.Type, args ...any) (*Ref, error)
	CallBooleanMethod(obj *Ref, method *MemberID, argTypes []sig.Type, args ...any) (bool, error)
	CallByteMethod(obj *Ref, method *MemberID, argTypes []sig.Type, args ...any) (int8, error)
	CallCharMethod(obj *Ref, method *MemberID, argTypes []sig.Type, args ...any) (uint16, error)
	CallShortMethod(obj *Ref, method *MemberID, argTypes []sig.Type, args ...any) (int16, error)
	CallIntMethod(obj *Ref, method *MemberID, argTypes []sig.Type, args ...any) (int32, error)
	CallLongMethod(obj *Ref, method *MemberID, argTypes []sig.Type, args ...any) (int64, error)
	CallFloatMethod(obj *Ref, method *MemberID, argTypes []sig.Type, args ...any) (float32, error)
	CallDoubleMethod(obj *Ref, method *MemberID, argTypes []sig.Type, args ...any) (float64, error)

	CallStaticVoidMethod(class *Ref, method *MemberID, argTypes []sig.Type, args ...any) error
	CallStaticObjectMethod(class *Ref, method *MemberID, argTypes []sig.Type, args ...any) (*Ref, error)
	CallStaticBooleanMethod(class *Ref, method *MemberID, argTypes []sig.Type, args ...any) (bool, error)
	CallStaticByteMethod(class *Ref, method *MemberID, argTypes []sig.Type, args ...any) (int8, error)
	CallStaticCharMethod(class *Ref, method *MemberID, argTypes []sig.Type, args ...any) (uint16, error)
	CallStaticShortMethod(class *Ref, method *MemberID, argTypes []sig.Type, args ...any) (int16, error)
	CallStaticIntMethod(class *Ref, method *MemberID, argTypes []sig.Type, args ...any) (int32, error)
	CallStaticLongMethod(class *Ref, method *MemberID, argTypes []sig.Type, args ...any) (int64, error)
	CallStaticFloatMethod(class *Ref, method *MemberID, argTypes []sig.Type, args ...any) (float32, error)
	CallStaticDoubleMethod(class *Ref, method *MemberID, argTypes []sig.Type, args ...any) (float64, error)

	// Field values follow the same conventions as call arguments and
	// results; string fields are read as *Ref.
	GetField(obj *Ref, field *MemberID, t sig.Type) (any, error)
	SetField(obj *Ref, field *MemberID, t sig.Type, value any) error
	GetStaticField(class *Ref, field *MemberID, t sig.Type) (any, error)
	SetStaticField(class *Ref, field *MemberID, t sig.Type, value any) error

	// GetStringUTF reads the contents of a java.lang.String reference.
	GetStringUTF(str *Ref) (string, error)

	// DeleteRef releases the runtime reference behind ref.
	DeleteRef(ref *Ref) error
}
