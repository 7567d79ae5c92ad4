//go:build jni

package jnicgo

/*
#cgo LDFLAGS: -ljvm
#include <stdlib.h>
#include <jni.h>

static jint jnibind_create_vm(JavaVM **vm, JNIEnv **env, JavaVMOption *opts, int n) {
	JavaVMInitArgs args;
	args.version = JNI_VERSION_1_8;
	args.nOptions = n;
	args.options = opts;
	args.ignoreUnrecognized = JNI_FALSE;
	return JNI_CreateJavaVM(vm, (void **)env, &args);
}

static jint jnibind_destroy_vm(JavaVM *vm) { return (*vm)->DestroyJavaVM(vm); }

static jint jnibind_attach(JavaVM *vm, JNIEnv **env) {
	jint rc = (*vm)->GetEnv(vm, (void **)env, JNI_VERSION_1_8);
	if (rc == JNI_EDETACHED) {
		rc = (*vm)->AttachCurrentThreadAsDaemon(vm, (void **)env, NULL);
	}
	return rc;
}

static jint push_frame(JNIEnv *e, jint n) { return (*e)->PushLocalFrame(e, n); }
static void pop_frame(JNIEnv *e) { (*e)->PopLocalFrame(e, NULL); }

static jclass find_class(JNIEnv *e, const char *name) { return (*e)->FindClass(e, name); }
static jclass get_object_class(JNIEnv *e, jobject o) { return (*e)->GetObjectClass(e, o); }
static jboolean is_instance_of(JNIEnv *e, jobject o, jclass c) { return (*e)->IsInstanceOf(e, o, c); }

static jmethodID get_method_id(JNIEnv *e, jclass c, const char *n, const char *s) { return (*e)->GetMethodID(e, c, n, s); }
static jmethodID get_static_method_id(JNIEnv *e, jclass c, const char *n, const char *s) { return (*e)->GetStaticMethodID(e, c, n, s); }
static jfieldID get_field_id(JNIEnv *e, jclass c, const char *n, const char *s) { return (*e)->GetFieldID(e, c, n, s); }
static jfieldID get_static_field_id(JNIEnv *e, jclass c, const char *n, const char *s) { return (*e)->GetStaticFieldID(e, c, n, s); }

static jobject new_object(JNIEnv *e, jclass c, jmethodID m, const jvalue *a) { return (*e)->NewObjectA(e, c, m, a); }
static void call_Void(JNIEnv *e, jobject o, jmethodID m, const jvalue *a) { (*e)->CallVoidMethodA(e, o, m, a); }
static void call_static_Void(JNIEnv *e, jclass c, jmethodID m, const jvalue *a) { (*e)->CallStaticVoidMethodA(e, c, m, a); }

#define JNIBIND_TYPE(T, N) \
static T call_##N(JNIEnv *e, jobject o, jmethodID m, const jvalue *a) { return (*e)->Call##N##MethodA(e, o, m, a); } \
static T call_static_##N(JNIEnv *e, jclass c, jmethodID m, const jvalue *a) { return (*e)->CallStatic##N##MethodA(e, c, m, a); } \
static T get_##N(JNIEnv *e, jobject o, jfieldID f) { return (*e)->Get##N##Field(e, o, f); } \
static T get_static_##N(JNIEnv *e, jclass c, jfieldID f) { return (*e)->GetStatic##N##Field(e, c, f); } \
static void set_##N(JNIEnv *e, jobject o, jfieldID f, T v) { (*e)->Set##N##Field(e, o, f, v); } \
static void set_static_##N(JNIEnv *e, jclass c, jfieldID f, T v) { (*e)->SetStatic##N##Field(e, c, f, v); }

JNIBIND_TYPE(jobject, Object)
JNIBIND_TYPE(jboolean, Boolean)
JNIBIND_TYPE(jbyte, Byte)
JNIBIND_TYPE(jchar, Char)
JNIBIND_TYPE(jshort, Short)
JNIBIND_TYPE(jint, Int)
JNIBIND_TYPE(jlong, Long)
JNIBIND_TYPE(jfloat, Float)
JNIBIND_TYPE(jdouble, Double)

static jstring new_string(JNIEnv *e, const char *s) { return (*e)->NewStringUTF(e, s); }
static const char *string_chars(JNIEnv *e, jstring s) { return (*e)->GetStringUTFChars(e, s, NULL); }
static void release_chars(JNIEnv *e, jstring s, const char *c) { (*e)->ReleaseStringUTFChars(e, s, c); }

static jobject new_global(JNIEnv *e, jobject o) { return (*e)->NewGlobalRef(e, o); }
static void delete_global(JNIEnv *e, jobject o) { (*e)->DeleteGlobalRef(e, o); }

static jthrowable exception_occurred(JNIEnv *e) { return (*e)->ExceptionOccurred(e); }
static void exception_clear(JNIEnv *e) { (*e)->ExceptionClear(e); }
*/
import "C"

import (
	"fmt"
	"runtime"
	"strings"
	"unsafe"

	"github.com/tliron/commonlog"

	"github.com/chazu/jnibind/jni"
	"github.com/chazu/jnibind/sig"
)

// VM is a Java virtual machine running in this process. It implements
// jni.Bridge and is safe for use from any goroutine.
type VM struct {
	jvm *C.JavaVM
	log commonlog.Logger

	classGetName        C.jmethodID
	throwableGetMessage C.jmethodID
	objectToString      C.jmethodID
}

var _ jni.Bridge = (*VM)(nil)

// Create starts a VM with the given options, such as
// "-Djava.class.path=app.jar" or "-Xmx256m". A process can host only one VM.
func Create(options ...string) (*VM, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	opts := make([]C.JavaVMOption, len(options))
	for i, o := range options {
		cs := C.CString(o)
		defer C.free(unsafe.Pointer(cs))
		opts[i].optionString = cs
	}
	var first *C.JavaVMOption
	if len(opts) > 0 {
		first = &opts[0]
	}

	var jvm *C.JavaVM
	var p *C.JNIEnv
	if rc := C.jnibind_create_vm(&jvm, &p, first, C.int(len(opts))); rc != C.JNI_OK {
		return nil, fmt.Errorf("%w: JNI_CreateJavaVM: error %d", jni.ErrBridge, int(rc))
	}
	vm := &VM{jvm: jvm, log: commonlog.GetLogger("jnibind.jnicgo")}

	lookups := []struct {
		id                  *C.jmethodID
		class, name, method string
	}{
		{&vm.classGetName, "java/lang/Class", "getName", "()Ljava/lang/String;"},
		{&vm.throwableGetMessage, "java/lang/Throwable", "getMessage", "()Ljava/lang/String;"},
		{&vm.objectToString, "java/lang/Object", "toString", "()Ljava/lang/String;"},
	}
	_, err := do(vm, func(e env) (struct{}, error) {
		for _, l := range lookups {
			cls, err := e.findClass(l.class)
			if err != nil {
				return struct{}{}, err
			}
			id, err := e.methodID(cls, l.name, l.method, false)
			if err != nil {
				return struct{}{}, err
			}
			*l.id = id
		}
		return struct{}{}, nil
	})
	if err != nil {
		C.jnibind_destroy_vm(jvm)
		return nil, err
	}
	vm.log.Infof("java VM started with %d options", len(options))
	return vm, nil
}

// Destroy unloads the VM. Outstanding references become invalid.
func (vm *VM) Destroy() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if rc := C.jnibind_destroy_vm(vm.jvm); rc != C.JNI_OK {
		return fmt.Errorf("%w: DestroyJavaVM: error %d", jni.ErrBridge, int(rc))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

func (e env) findClass(name string) (C.jclass, error) {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	cls := C.find_class(e.p, cs)
	if err := e.check(); err != nil {
		return nil, err
	}
	return cls, nil
}

func (e env) methodID(cls C.jclass, name, signature string, static bool) (C.jmethodID, error) {
	cn, cs := C.CString(name), C.CString(signature)
	defer C.free(unsafe.Pointer(cn))
	defer C.free(unsafe.Pointer(cs))
	var id C.jmethodID
	if static {
		id = C.get_static_method_id(e.p, cls, cn, cs)
	} else {
		id = C.get_method_id(e.p, cls, cn, cs)
	}
	if err := e.check(); err != nil {
		return nil, err
	}
	return id, nil
}

func (e env) fieldID(cls C.jclass, name, signature string, static bool) (C.jfieldID, error) {
	cn, cs := C.CString(name), C.CString(signature)
	defer C.free(unsafe.Pointer(cn))
	defer C.free(unsafe.Pointer(cs))
	var id C.jfieldID
	if static {
		id = C.get_static_field_id(e.p, cls, cn, cs)
	} else {
		id = C.get_field_id(e.p, cls, cn, cs)
	}
	if err := e.check(); err != nil {
		return nil, err
	}
	return id, nil
}

func (vm *VM) FindClass(name string) (*jni.Ref, error) {
	return do(vm, func(e env) (*jni.Ref, error) {
		cls, err := e.findClass(name)
		if err != nil {
			return nil, err
		}
		return e.global(C.jobject(cls), "jclass", "class "+dottedName(name)), nil
	})
}

func (vm *VM) GetObjectClass(obj *jni.Ref) (*jni.Ref, error) {
	return do(vm, func(e env) (*jni.Ref, error) {
		o, err := object(obj)
		if err != nil {
			return nil, err
		}
		if o == nil {
			return nil, fmt.Errorf("%w: GetObjectClass on null", jni.ErrBridge)
		}
		cls := C.jobject(C.get_object_class(e.p, o))
		name := e.str(C.call_Object(e.p, cls, vm.classGetName, nil))
		if err := e.check(); err != nil {
			return nil, err
		}
		return e.global(cls, "jclass", "class "+name), nil
	})
}

func (vm *VM) IsInstanceOf(obj, class *jni.Ref) (bool, error) {
	return do(vm, func(e env) (bool, error) {
		o, err := object(obj)
		if err != nil {
			return false, err
		}
		c, err := object(class)
		if err != nil {
			return false, err
		}
		return C.is_instance_of(e.p, o, C.jclass(c)) != C.JNI_FALSE, nil
	})
}

func (vm *VM) member(class *jni.Ref, name, signature string, field, static bool) (*jni.MemberID, error) {
	return do(vm, func(e env) (*jni.MemberID, error) {
		c, err := object(class)
		if err != nil {
			return nil, err
		}
		qualifier := fmt.Sprintf("%s %s%s", dottedClass(class), name, signature)
		if static {
			qualifier = fmt.Sprintf("%s static %s%s", dottedClass(class), name, signature)
		}
		if field {
			id, err := e.fieldID(C.jclass(c), name, signature, static)
			if err != nil {
				return nil, err
			}
			return jni.NewMemberID(id, "jfieldID", qualifier), nil
		}
		id, err := e.methodID(C.jclass(c), name, signature, static)
		if err != nil {
			return nil, err
		}
		return jni.NewMemberID(id, "jmethodID", qualifier), nil
	})
}

func dottedClass(class *jni.Ref) string {
	return strings.TrimPrefix(class.Qualifier(), "class ")
}

func (vm *VM) GetMethodID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return vm.member(class, name, signature, false, false)
}

func (vm *VM) GetStaticMethodID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return vm.member(class, name, signature, false, true)
}

func (vm *VM) GetFieldID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return vm.member(class, name, signature, true, false)
}

func (vm *VM) GetStaticFieldID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return vm.member(class, name, signature, true, true)
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// invoke resolves the target, method and arguments, then runs call and
// checks for a pending exception.
func invoke[T any](vm *VM, target *jni.Ref, m *jni.MemberID, types []sig.Type, args []any,
	call func(e env, o C.jobject, id C.jmethodID, a *C.jvalue) T) (T, error) {
	return do(vm, func(e env) (T, error) {
		var zero T
		o, err := object(target)
		if err != nil {
			return zero, err
		}
		id, err := methodID(m)
		if err != nil {
			return zero, err
		}
		a, err := e.jvalues(types, args)
		if err != nil {
			return zero, err
		}
		v := call(e, o, id, a)
		if err := e.check(); err != nil {
			return zero, err
		}
		return v, nil
	})
}

// objectResult promotes an object call result to a Ref.
func objectResult(vm *VM, target *jni.Ref, m *jni.MemberID, types []sig.Type, args []any,
	call func(e env, o C.jobject, id C.jmethodID, a *C.jvalue) C.jobject) (*jni.Ref, error) {
	return invoke(vm, target, m, types, args, func(e env, o C.jobject, id C.jmethodID, a *C.jvalue) *jni.Ref {
		local := call(e, o, id, a)
		if local == nil || C.exception_occurred(e.p) != nil {
			return nil
		}
		return e.global(local, "jobject", e.describe(local))
	})
}

func (vm *VM) NewObject(class *jni.Ref, ctor *jni.MemberID, argTypes []sig.Type, args ...any) (*jni.Ref, error) {
	return objectResult(vm, class, ctor, argTypes, args, func(e env, c C.jobject, id C.jmethodID, a *C.jvalue) C.jobject {
		return C.new_object(e.p, C.jclass(c), id, a)
	})
}

func (vm *VM) CallVoidMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) error {
	_, err := invoke(vm, obj, m, argTypes, args, func(e env, o C.jobject, id C.jmethodID, a *C.jvalue) struct{} {
		C.call_Void(e.p, o, id, a)
		return struct{}{}
	})
	return err
}

func (vm *VM) CallObjectMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (*jni.Ref, error) {
	return objectResult(vm, obj, m, argTypes, args, func(e env, o C.jobject, id C.jmethodID, a *C.jvalue) C.jobject {
		return C.call_Object(e.p, o, id, a)
	})
}

func (vm *VM) CallBooleanMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (bool, error) {
	return invoke(vm, obj, m, argTypes, args, func(e env, o C.jobject, id C.jmethodID, a *C.jvalue) bool {
		return C.call_Boolean(e.p, o, id, a) != C.JNI_FALSE
	})
}

func (vm *VM) CallByteMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int8, error) {
	return invoke(vm, obj, m, argTypes, args, func(e env, o C.jobject, id C.jmethodID, a *C.jvalue) int8 {
		return int8(C.call_Byte(e.p, o, id, a))
	})
}

func (vm *VM) CallCharMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (uint16, error) {
	return invoke(vm, obj, m, argTypes, args, func(e env, o C.jobject, id C.jmethodID, a *C.jvalue) uint16 {
		return uint16(C.call_Char(e.p, o, id, a))
	})
}

func (vm *VM) CallShortMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int16, error) {
	return invoke(vm, obj, m, argTypes, args, func(e env, o C.jobject, id C.jmethodID, a *C.jvalue) int16 {
		return int16(C.call_Short(e.p, o, id, a))
	})
}

func (vm *VM) CallIntMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int32, error) {
	return invoke(vm, obj, m, argTypes, args, func(e env, o C.jobject, id C.jmethodID, a *C.jvalue) int32 {
		return int32(C.call_Int(e.p, o, id, a))
	})
}

func (vm *VM) CallLongMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int64, error) {
	return invoke(vm, obj, m, argTypes, args, func(e env, o C.jobject, id C.jmethodID, a *C.jvalue) int64 {
		return int64(C.call_Long(e.p, o, id, a))
	})
}

func (vm *VM) CallFloatMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (float32, error) {
	return invoke(vm, obj, m, argTypes, args, func(e env, o C.jobject, id C.jmethodID, a *C.jvalue) float32 {
		return float32(C.call_Float(e.p, o, id, a))
	})
}

func (vm *VM) CallDoubleMethod(obj *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (float64, error) {
	return invoke(vm, obj, m, argTypes, args, func(e env, o C.jobject, id C.jmethodID, a *C.jvalue) float64 {
		return float64(C.call_Double(e.p, o, id, a))
	})
}

func (vm *VM) CallStaticVoidMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) error {
	_, err := invoke(vm, class, m, argTypes, args, func(e env, c C.jobject, id C.jmethodID, a *C.jvalue) struct{} {
		C.call_static_Void(e.p, C.jclass(c), id, a)
		return struct{}{}
	})
	return err
}

func (vm *VM) CallStaticObjectMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (*jni.Ref, error) {
	return objectResult(vm, class, m, argTypes, args, func(e env, c C.jobject, id C.jmethodID, a *C.jvalue) C.jobject {
		return C.call_static_Object(e.p, C.jclass(c), id, a)
	})
}

func (vm *VM) CallStaticBooleanMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (bool, error) {
	return invoke(vm, class, m, argTypes, args, func(e env, c C.jobject, id C.jmethodID, a *C.jvalue) bool {
		return C.call_static_Boolean(e.p, C.jclass(c), id, a) != C.JNI_FALSE
	})
}

func (vm *VM) CallStaticByteMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int8, error) {
	return invoke(vm, class, m, argTypes, args, func(e env, c C.jobject, id C.jmethodID, a *C.jvalue) int8 {
		return int8(C.call_static_Byte(e.p, C.jclass(c), id, a))
	})
}

func (vm *VM) CallStaticCharMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (uint16, error) {
	return invoke(vm, class, m, argTypes, args, func(e env, c C.jobject, id C.jmethodID, a *C.jvalue) uint16 {
		return uint16(C.call_static_Char(e.p, C.jclass(c), id, a))
	})
}

func (vm *VM) CallStaticShortMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int16, error) {
	return invoke(vm, class, m, argTypes, args, func(e env, c C.jobject, id C.jmethodID, a *C.jvalue) int16 {
		return int16(C.call_static_Short(e.p, C.jclass(c), id, a))
	})
}

func (vm *VM) CallStaticIntMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int32, error) {
	return invoke(vm, class, m, argTypes, args, func(e env, c C.jobject, id C.jmethodID, a *C.jvalue) int32 {
		return int32(C.call_static_Int(e.p, C.jclass(c), id, a))
	})
}

func (vm *VM) CallStaticLongMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (int64, error) {
	return invoke(vm, class, m, argTypes, args, func(e env, c C.jobject, id C.jmethodID, a *C.jvalue) int64 {
		return int64(C.call_static_Long(e.p, C.jclass(c), id, a))
	})
}

func (vm *VM) CallStaticFloatMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (float32, error) {
	return invoke(vm, class, m, argTypes, args, func(e env, c C.jobject, id C.jmethodID, a *C.jvalue) float32 {
		return float32(C.call_static_Float(e.p, C.jclass(c), id, a))
	})
}

func (vm *VM) CallStaticDoubleMethod(class *jni.Ref, m *jni.MemberID, argTypes []sig.Type, args ...any) (float64, error) {
	return invoke(vm, class, m, argTypes, args, func(e env, c C.jobject, id C.jmethodID, a *C.jvalue) float64 {
		return float64(C.call_static_Double(e.p, C.jclass(c), id, a))
	})
}

// ---------------------------------------------------------------------------
// Fields
// ---------------------------------------------------------------------------

func (vm *VM) getField(target *jni.Ref, field *jni.MemberID, t sig.Type, static bool) (any, error) {
	return do(vm, func(e env) (any, error) {
		o, err := object(target)
		if err != nil {
			return nil, err
		}
		id, err := fieldID(field)
		if err != nil {
			return nil, err
		}
		c := C.jclass(o)
		var v any
		switch t.Kind() {
		case sig.KindBoolean:
			if static {
				v = C.get_static_Boolean(e.p, c, id) != C.JNI_FALSE
			} else {
				v = C.get_Boolean(e.p, o, id) != C.JNI_FALSE
			}
		case sig.KindByte:
			if static {
				v = int8(C.get_static_Byte(e.p, c, id))
			} else {
				v = int8(C.get_Byte(e.p, o, id))
			}
		case sig.KindChar:
			if static {
				v = uint16(C.get_static_Char(e.p, c, id))
			} else {
				v = uint16(C.get_Char(e.p, o, id))
			}
		case sig.KindShort:
			if static {
				v = int16(C.get_static_Short(e.p, c, id))
			} else {
				v = int16(C.get_Short(e.p, o, id))
			}
		case sig.KindInt:
			if static {
				v = int32(C.get_static_Int(e.p, c, id))
			} else {
				v = int32(C.get_Int(e.p, o, id))
			}
		case sig.KindLong:
			if static {
				v = int64(C.get_static_Long(e.p, c, id))
			} else {
				v = int64(C.get_Long(e.p, o, id))
			}
		case sig.KindFloat:
			if static {
				v = float32(C.get_static_Float(e.p, c, id))
			} else {
				v = float32(C.get_Float(e.p, o, id))
			}
		case sig.KindDouble:
			if static {
				v = float64(C.get_static_Double(e.p, c, id))
			} else {
				v = float64(C.get_Double(e.p, o, id))
			}
		case sig.KindString, sig.KindObject, sig.KindArray:
			var local C.jobject
			if static {
				local = C.get_static_Object(e.p, c, id)
			} else {
				local = C.get_Object(e.p, o, id)
			}
			if err := e.check(); err != nil {
				return nil, err
			}
			if local == nil {
				return (*jni.Ref)(nil), nil
			}
			return e.global(local, "jobject", e.describe(local)), nil
		default:
			return nil, fmt.Errorf("%w: field of type %s", jni.ErrBridge, t)
		}
		if err := e.check(); err != nil {
			return nil, err
		}
		return v, nil
	})
}

func (vm *VM) setField(target *jni.Ref, field *jni.MemberID, t sig.Type, value any, static bool) error {
	_, err := do(vm, func(e env) (struct{}, error) {
		o, err := object(target)
		if err != nil {
			return struct{}{}, err
		}
		id, err := fieldID(field)
		if err != nil {
			return struct{}{}, err
		}
		var slot C.jvalue
		p := unsafe.Pointer(&slot)
		if err := e.store(p, t, value); err != nil {
			return struct{}{}, err
		}
		c := C.jclass(o)
		switch t.Kind() {
		case sig.KindBoolean:
			if static {
				C.set_static_Boolean(e.p, c, id, *(*C.jboolean)(p))
			} else {
				C.set_Boolean(e.p, o, id, *(*C.jboolean)(p))
			}
		case sig.KindByte:
			if static {
				C.set_static_Byte(e.p, c, id, *(*C.jbyte)(p))
			} else {
				C.set_Byte(e.p, o, id, *(*C.jbyte)(p))
			}
		case sig.KindChar:
			if static {
				C.set_static_Char(e.p, c, id, *(*C.jchar)(p))
			} else {
				C.set_Char(e.p, o, id, *(*C.jchar)(p))
			}
		case sig.KindShort:
			if static {
				C.set_static_Short(e.p, c, id, *(*C.jshort)(p))
			} else {
				C.set_Short(e.p, o, id, *(*C.jshort)(p))
			}
		case sig.KindInt:
			if static {
				C.set_static_Int(e.p, c, id, *(*C.jint)(p))
			} else {
				C.set_Int(e.p, o, id, *(*C.jint)(p))
			}
		case sig.KindLong:
			if static {
				C.set_static_Long(e.p, c, id, *(*C.jlong)(p))
			} else {
				C.set_Long(e.p, o, id, *(*C.jlong)(p))
			}
		case sig.KindFloat:
			if static {
				C.set_static_Float(e.p, c, id, *(*C.jfloat)(p))
			} else {
				C.set_Float(e.p, o, id, *(*C.jfloat)(p))
			}
		case sig.KindDouble:
			if static {
				C.set_static_Double(e.p, c, id, *(*C.jdouble)(p))
			} else {
				C.set_Double(e.p, o, id, *(*C.jdouble)(p))
			}
		default:
			if static {
				C.set_static_Object(e.p, c, id, *(*C.jobject)(p))
			} else {
				C.set_Object(e.p, o, id, *(*C.jobject)(p))
			}
		}
		return struct{}{}, e.check()
	})
	return err
}

func (vm *VM) GetField(obj *jni.Ref, field *jni.MemberID, t sig.Type) (any, error) {
	return vm.getField(obj, field, t, false)
}

func (vm *VM) SetField(obj *jni.Ref, field *jni.MemberID, t sig.Type, value any) error {
	return vm.setField(obj, field, t, value, false)
}

func (vm *VM) GetStaticField(class *jni.Ref, field *jni.MemberID, t sig.Type) (any, error) {
	return vm.getField(class, field, t, true)
}

func (vm *VM) SetStaticField(class *jni.Ref, field *jni.MemberID, t sig.Type, value any) error {
	return vm.setField(class, field, t, value, true)
}

// ---------------------------------------------------------------------------
// Strings and references
// ---------------------------------------------------------------------------

func (vm *VM) GetStringUTF(str *jni.Ref) (string, error) {
	return do(vm, func(e env) (string, error) {
		o, err := object(str)
		if err != nil {
			return "", err
		}
		if o == nil {
			return "", fmt.Errorf("%w: GetStringUTF on null", jni.ErrBridge)
		}
		return e.str(o), nil
	})
}

func (vm *VM) DeleteRef(ref *jni.Ref) error {
	_, err := do(vm, func(e env) (struct{}, error) {
		o, err := object(ref)
		if err != nil || o == nil {
			return struct{}{}, err
		}
		C.delete_global(e.p, o)
		return struct{}{}, nil
	})
	return err
}

// ---------------------------------------------------------------------------
// Per-call environment
// ---------------------------------------------------------------------------

// localFrame is the local reference capacity reserved per bridge call.
const localFrame = 32

// maxQualifier bounds the toString text kept as a reference's qualifier.
const maxQualifier = 80

// env is a thread's JNI environment for the duration of one bridge call.
type env struct {
	vm *VM
	p  *C.JNIEnv
}

// do runs fn on an attached, locked OS thread inside a fresh local frame.
func do[T any](vm *VM, fn func(e env) (T, error)) (T, error) {
	var zero T
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var p *C.JNIEnv
	if rc := C.jnibind_attach(vm.jvm, &p); rc != C.JNI_OK {
		return zero, fmt.Errorf("%w: attaching thread: error %d", jni.ErrBridge, int(rc))
	}
	if C.push_frame(p, localFrame) != 0 {
		C.exception_clear(p)
		return zero, fmt.Errorf("%w: out of local references", jni.ErrBridge)
	}
	defer C.pop_frame(p)
	return fn(env{vm: vm, p: p})
}

// check turns a pending exception into an error and clears it.
func (e env) check() error {
	exc := C.exception_occurred(e.p)
	if exc == nil {
		return nil
	}
	C.exception_clear(e.p)
	obj := C.jobject(exc)
	cls := C.get_object_class(e.p, obj)
	name := e.str(C.call_Object(e.p, C.jobject(cls), e.vm.classGetName, nil))
	msg := e.str(C.call_Object(e.p, obj, e.vm.throwableGetMessage, nil))
	C.exception_clear(e.p)
	return jni.TranslateThrowable(name, msg)
}

// str reads a java.lang.String; null reads as "".
func (e env) str(s C.jobject) string {
	if s == nil {
		return ""
	}
	chars := C.string_chars(e.p, C.jstring(s))
	if chars == nil {
		C.exception_clear(e.p)
		return ""
	}
	defer C.release_chars(e.p, C.jstring(s), chars)
	return C.GoString(chars)
}

func (e env) newString(s string) (C.jobject, error) {
	cs := C.CString(s)
	defer C.free(unsafe.Pointer(cs))
	js := C.new_string(e.p, cs)
	if err := e.check(); err != nil {
		return nil, err
	}
	return C.jobject(js), nil
}

// describe returns the receiver's toString, shortened.
func (e env) describe(o C.jobject) string {
	s := e.str(C.call_Object(e.p, o, e.vm.objectToString, nil))
	C.exception_clear(e.p)
	if len(s) > maxQualifier {
		s = s[:maxQualifier] + "..."
	}
	return s
}

// global promotes a local reference to a Ref. Null stays nil.
func (e env) global(local C.jobject, typeName, qualifier string) *jni.Ref {
	if local == nil {
		return nil
	}
	return jni.NewRef(C.new_global(e.p, local), typeName, qualifier)
}

// object returns the native reference behind r. A nil Ref is null.
func object(r *jni.Ref) (C.jobject, error) {
	if r == nil {
		return nil, nil
	}
	o, ok := r.Token().(C.jobject)
	if !ok {
		return nil, fmt.Errorf("%w: %s was not created by this VM", jni.ErrBridge, r)
	}
	return o, nil
}

func methodID(m *jni.MemberID) (C.jmethodID, error) {
	id, ok := m.Token().(C.jmethodID)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a method id", jni.ErrBridge, m)
	}
	return id, nil
}

func fieldID(m *jni.MemberID) (C.jfieldID, error) {
	id, ok := m.Token().(C.jfieldID)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a field id", jni.ErrBridge, m)
	}
	return id, nil
}

// jvalues converts dispatcher-normalized arguments to a jvalue array.
// The returned pointer is nil for an empty list.
func (e env) jvalues(types []sig.Type, args []any) (*C.jvalue, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if len(types) != len(args) {
		return nil, fmt.Errorf("%w: %d types for %d arguments", jni.ErrBridge, len(types), len(args))
	}
	vals := make([]C.jvalue, len(args))
	for i, v := range args {
		if err := e.store(unsafe.Pointer(&vals[i]), types[i], v); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
	}
	return &vals[0], nil
}

// store writes v, of type t, to the jvalue or field slot at p.
func (e env) store(p unsafe.Pointer, t sig.Type, v any) error {
	var ok bool
	switch t.Kind() {
	case sig.KindBoolean:
		var b bool
		if b, ok = v.(bool); ok {
			*(*C.jboolean)(p) = jboolean(b)
		}
	case sig.KindByte:
		var x int8
		if x, ok = v.(int8); ok {
			*(*C.jbyte)(p) = C.jbyte(x)
		}
	case sig.KindChar:
		var x uint16
		if x, ok = v.(uint16); ok {
			*(*C.jchar)(p) = C.jchar(x)
		}
	case sig.KindShort:
		var x int16
		if x, ok = v.(int16); ok {
			*(*C.jshort)(p) = C.jshort(x)
		}
	case sig.KindInt:
		var x int32
		if x, ok = v.(int32); ok {
			*(*C.jint)(p) = C.jint(x)
		}
	case sig.KindLong:
		var x int64
		if x, ok = v.(int64); ok {
			*(*C.jlong)(p) = C.jlong(x)
		}
	case sig.KindFloat:
		var x float32
		if x, ok = v.(float32); ok {
			*(*C.jfloat)(p) = C.jfloat(x)
		}
	case sig.KindDouble:
		var x float64
		if x, ok = v.(float64); ok {
			*(*C.jdouble)(p) = C.jdouble(x)
		}
	case sig.KindString:
		switch s := v.(type) {
		case nil:
			*(*C.jobject)(p), ok = nil, true
		case string:
			js, err := e.newString(s)
			if err != nil {
				return err
			}
			*(*C.jobject)(p), ok = js, true
		case *jni.Ref:
			o, err := object(s)
			if err != nil {
				return err
			}
			*(*C.jobject)(p), ok = o, true
		}
	case sig.KindObject, sig.KindArray:
		var r *jni.Ref
		if v == nil {
			ok = true
		} else {
			r, ok = v.(*jni.Ref)
		}
		if ok {
			o, err := object(r)
			if err != nil {
				return err
			}
			*(*C.jobject)(p) = o
		}
	}
	if !ok {
		return fmt.Errorf("%w: %T for %s", jni.ErrBridge, v, t)
	}
	return nil
}

func jboolean(b bool) C.jboolean {
	if b {
		return C.JNI_TRUE
	}
	return C.JNI_FALSE
}

func dottedName(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}
