package simjvm

import (
	"fmt"
	"strings"

	"github.com/chazu/jnibind/jni"
	"github.com/chazu/jnibind/sig"
)

var _ jni.Bridge = (*Runtime)(nil)

func (rt *Runtime) FindClass(name string) (*jni.Ref, error) {
	if strings.HasPrefix(name, "[") {
		if _, err := sig.ParseDescriptor(name); err != nil {
			return nil, Throw("java.lang.NoClassDefFoundError", name)
		}
		c := rt.arrayClass(name)
		return rt.mint(c, "jclass", "class "+c.Name), nil
	}
	dotted := strings.ReplaceAll(name, "/", ".")
	c, ok := rt.Lookup(dotted)
	if !ok {
		return nil, Throw("java.lang.NoClassDefFoundError", name)
	}
	return rt.mint(c, "jclass", "class "+c.Name), nil
}

func (rt *Runtime) GetObjectClass(obj *jni.Ref) (*jni.Ref, error) {
	inst, err := rt.instance(obj)
	if err != nil {
		return nil, err
	}
	return rt.mint(inst.Class, "jclass", "class "+inst.Class.Name), nil
}

func (rt *Runtime) IsInstanceOf(obj, class *jni.Ref) (bool, error) {
	inst, err := rt.instance(obj)
	if err != nil {
		return false, err
	}
	c, err := rt.class(class)
	if err != nil {
		return false, err
	}
	return inst.Class.IsSubclassOf(c), nil
}

func (rt *Runtime) GetMethodID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	c, err := rt.class(class)
	if err != nil {
		return nil, err
	}
	var m *Method
	if name == "<init>" {
		m = c.ctors[signature]
	} else if found := c.findMethod(name, signature); found != nil && !found.Static {
		m = found
	}
	if m == nil {
		return nil, Throw("java.lang.NoSuchMethodError", name)
	}
	return jni.NewMemberID(m, "jmethodID", fmt.Sprintf("%s %s%s", c.Name, name, signature)), nil
}

func (rt *Runtime) GetStaticMethodID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	c, err := rt.class(class)
	if err != nil {
		return nil, err
	}
	m := c.findMethod(name, signature)
	if m == nil || !m.Static {
		return nil, Throw("java.lang.NoSuchMethodError", name)
	}
	return jni.NewMemberID(m, "jmethodID", fmt.Sprintf("%s static %s%s", c.Name, name, signature)), nil
}

func (rt *Runtime) GetFieldID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return rt.fieldID(class, name, signature, false)
}

func (rt *Runtime) GetStaticFieldID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return rt.fieldID(class, name, signature, true)
}

func (rt *Runtime) fieldID(class *jni.Ref, name, signature string, static bool) (*jni.MemberID, error) {
	c, err := rt.class(class)
	if err != nil {
		return nil, err
	}
	f := c.findField(name)
	if f == nil || f.Signature != signature || f.Static != static {
		return nil, Throw("java.lang.NoSuchFieldError", name)
	}
	return jni.NewMemberID(f, "jfieldID", fmt.Sprintf("%s %s %s", c.Name, name, signature)), nil
}

func (rt *Runtime) NewObject(class *jni.Ref, ctor *jni.MemberID, _ []sig.Type, args ...any) (*jni.Ref, error) {
	c, err := rt.class(class)
	if err != nil {
		return nil, err
	}
	m, ok := ctor.Token().(*Method)
	if !ok || m.Name != "<init>" {
		return nil, fmt.Errorf("%w: %s is not a constructor", jni.ErrBridge, ctor)
	}
	in, err := rt.inbound(args)
	if err != nil {
		return nil, err
	}
	inst := rt.NewInstance(c, nil)
	if _, err := m.Impl(&Call{Runtime: rt, This: inst, Class: c, Args: in}); err != nil {
		return nil, err
	}
	return rt.Ref(inst), nil
}

// invoke runs an instance method with virtual dispatch on the receiver's
// class, or a static method on the class.
func (rt *Runtime) invoke(target *jni.Ref, id *jni.MemberID, args []any, static bool) (any, *Method, error) {
	m, ok := id.Token().(*Method)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s is not a method id", jni.ErrBridge, id)
	}
	in, err := rt.inbound(args)
	if err != nil {
		return nil, m, err
	}
	call := &Call{Runtime: rt, Args: in}
	if static {
		if call.Class, err = rt.class(target); err != nil {
			return nil, m, err
		}
	} else {
		if call.This, err = rt.instance(target); err != nil {
			return nil, m, err
		}
		call.Class = call.This.Class
		if override := call.Class.findMethod(m.Name, m.Signature); override != nil {
			m = override
		}
	}
	v, err := m.Impl(call)
	return v, m, err
}

func result[T any](v any, m *Method, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s%s returned %T", jni.ErrBridge, m.Name, m.Signature, v)
	}
	return t, nil
}

func (rt *Runtime) objectResult(v any, _ *Method, err error) (*jni.Ref, error) {
	if err != nil {
		return nil, err
	}
	return rt.outbound(v), nil
}

func (rt *Runtime) CallVoidMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) error {
	_, _, err := rt.invoke(obj, id, args, false)
	return err
}

func (rt *Runtime) CallObjectMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (*jni.Ref, error) {
	return rt.objectResult(rt.invoke(obj, id, args, false))
}

func (rt *Runtime) CallBooleanMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (bool, error) {
	return result[bool](rt.invoke(obj, id, args, false))
}

func (rt *Runtime) CallByteMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (int8, error) {
	return result[int8](rt.invoke(obj, id, args, false))
}

func (rt *Runtime) CallCharMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (uint16, error) {
	return result[uint16](rt.invoke(obj, id, args, false))
}

func (rt *Runtime) CallShortMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (int16, error) {
	return result[int16](rt.invoke(obj, id, args, false))
}

func (rt *Runtime) CallIntMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (int32, error) {
	return result[int32](rt.invoke(obj, id, args, false))
}

func (rt *Runtime) CallLongMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (int64, error) {
	return result[int64](rt.invoke(obj, id, args, false))
}

func (rt *Runtime) CallFloatMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (float32, error) {
	return result[float32](rt.invoke(obj, id, args, false))
}

func (rt *Runtime) CallDoubleMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (float64, error) {
	return result[float64](rt.invoke(obj, id, args, false))
}

func (rt *Runtime) CallStaticVoidMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) error {
	_, _, err := rt.invoke(class, id, args, true)
	return err
}

func (rt *Runtime) CallStaticObjectMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (*jni.Ref, error) {
	return rt.objectResult(rt.invoke(class, id, args, true))
}

func (rt *Runtime) CallStaticBooleanMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (bool, error) {
	return result[bool](rt.invoke(class, id, args, true))
}

func (rt *Runtime) CallStaticByteMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (int8, error) {
	return result[int8](rt.invoke(class, id, args, true))
}

func (rt *Runtime) CallStaticCharMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (uint16, error) {
	return result[uint16](rt.invoke(class, id, args, true))
}

func (rt *Runtime) CallStaticShortMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (int16, error) {
	return result[int16](rt.invoke(class, id, args, true))
}

func (rt *Runtime) CallStaticIntMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (int32, error) {
	return result[int32](rt.invoke(class, id, args, true))
}

func (rt *Runtime) CallStaticLongMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (int64, error) {
	return result[int64](rt.invoke(class, id, args, true))
}

func (rt *Runtime) CallStaticFloatMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (float32, error) {
	return result[float32](rt.invoke(class, id, args, true))
}

func (rt *Runtime) CallStaticDoubleMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (float64, error) {
	return result[float64](rt.invoke(class, id, args, true))
}

func (rt *Runtime) GetField(obj *jni.Ref, field *jni.MemberID, t sig.Type) (any, error) {
	inst, err := rt.instance(obj)
	if err != nil {
		return nil, err
	}
	f, err := fieldOf(field)
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	v, ok := inst.Fields[f.Name]
	rt.mu.Unlock()
	if !ok {
		v = zeroOf(t)
	}
	if t.IsReference() {
		return rt.outbound(v), nil
	}
	return v, nil
}

func (rt *Runtime) SetField(obj *jni.Ref, field *jni.MemberID, _ sig.Type, value any) error {
	inst, err := rt.instance(obj)
	if err != nil {
		return err
	}
	f, err := fieldOf(field)
	if err != nil {
		return err
	}
	in, err := rt.inbound([]any{value})
	if err != nil {
		return err
	}
	rt.mu.Lock()
	inst.Fields[f.Name] = in[0]
	rt.mu.Unlock()
	return nil
}

func (rt *Runtime) GetStaticField(class *jni.Ref, field *jni.MemberID, t sig.Type) (any, error) {
	if _, err := rt.class(class); err != nil {
		return nil, err
	}
	f, err := fieldOf(field)
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	v := f.Value
	rt.mu.Unlock()
	if v == nil && t.IsPrimitive() {
		v = zeroOf(t)
	}
	if t.IsReference() {
		return rt.outbound(v), nil
	}
	return v, nil
}

func (rt *Runtime) SetStaticField(class *jni.Ref, field *jni.MemberID, _ sig.Type, value any) error {
	if _, err := rt.class(class); err != nil {
		return err
	}
	f, err := fieldOf(field)
	if err != nil {
		return err
	}
	in, err := rt.inbound([]any{value})
	if err != nil {
		return err
	}
	rt.mu.Lock()
	f.Value = in[0]
	rt.mu.Unlock()
	return nil
}

func (rt *Runtime) GetStringUTF(str *jni.Ref) (string, error) {
	inst, err := rt.instance(str)
	if err != nil {
		return "", err
	}
	s, ok := inst.Value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", jni.ErrBridge, str)
	}
	return s, nil
}

func (rt *Runtime) DeleteRef(ref *jni.Ref) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, ok := rt.live[ref]; !ok {
		return fmt.Errorf("%w: delete of stale reference %s", jni.ErrBridge, ref)
	}
	delete(rt.live, ref)
	return nil
}

// ---------------------------------------------------------------------------
// conversions
// ---------------------------------------------------------------------------

func (rt *Runtime) class(r *jni.Ref) (*Class, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: null class reference", jni.ErrBridge)
	}
	if !rt.isLive(r) {
		return nil, fmt.Errorf("%w: %s", jni.ErrReleased, r)
	}
	c, ok := r.Token().(*Class)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a class", jni.ErrBridge, r)
	}
	return c, nil
}

func (rt *Runtime) instance(r *jni.Ref) (*Instance, error) {
	if r == nil {
		return nil, Throw("java.lang.NullPointerException", "")
	}
	if !rt.isLive(r) {
		return nil, fmt.Errorf("%w: %s", jni.ErrReleased, r)
	}
	inst, ok := r.Token().(*Instance)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an object", jni.ErrBridge, r)
	}
	return inst, nil
}

// inbound resolves reference arguments to instances.
func (rt *Runtime) inbound(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		if r, ok := a.(*jni.Ref); ok {
			if r == nil {
				continue
			}
			inst, err := rt.instance(r)
			if err != nil {
				return nil, err
			}
			out[i] = inst
			continue
		}
		out[i] = a
	}
	return out, nil
}

// outbound mints a reference for a value returned to the host.
func (rt *Runtime) outbound(v any) *jni.Ref {
	switch x := v.(type) {
	case *Instance:
		if x == nil {
			return nil
		}
		return rt.Ref(x)
	case string:
		return rt.Ref(rt.NewString(x))
	}
	return nil
}

func fieldOf(id *jni.MemberID) (*Field, error) {
	f, ok := id.Token().(*Field)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a field id", jni.ErrBridge, id)
	}
	return f, nil
}

func zeroOf(t sig.Type) any {
	switch t.Kind() {
	case sig.KindBoolean:
		return false
	case sig.KindByte:
		return int8(0)
	case sig.KindChar:
		return uint16(0)
	case sig.KindShort:
		return int16(0)
	case sig.KindInt:
		return int32(0)
	case sig.KindLong:
		return int64(0)
	case sig.KindFloat:
		return float32(0)
	case sig.KindDouble:
		return float64(0)
	}
	return nil
}
