// Package jnitest provides an in-memory jni.Bridge that records every call,
// for tests of code built on package jni.
package jnitest

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/chazu/jnibind/jni"
	"github.com/chazu/jnibind/sig"
)

// Call is one recorded bridge invocation.
type Call struct {
	Op        string
	Class     string // dotted class of the target
	Name      string
	Signature string
	Args      []any
}

func (c Call) String() string {
	return fmt.Sprintf("%s %s.%s%s %v", c.Op, c.Class, c.Name, c.Signature, c.Args)
}

// Instance, returned from a stubbed method, makes the mock mint a fresh
// object of Class holding Value.
type Instance struct {
	Class string
	Value any
}

type object struct {
	class string // slash form
	value any
	id    int
}

type member struct {
	class     string
	name      string
	signature string
	static    bool
	field     bool
}

type stubKey struct {
	name      string
	signature string
}

// Bridge is a scriptable jni.Bridge. Classes must be declared with Define
// before FindClass succeeds; every member of a declared class resolves unless
// marked Missing. Stubbed results are keyed by runtime name and signature.
type Bridge struct {
	mu      sync.Mutex
	classes map[string][]string // slash name -> supertypes
	results map[stubKey]any
	errs    map[stubKey]error
	missing map[stubKey]bool
	fields  map[string]any
	calls   []Call
	live    map[*jni.Ref]bool
	deleted int
	nextID  int
}

// New returns a mock that knows java.lang.Object, java.lang.String and the
// given classes (dotted or slash names).
func New(classes ...string) *Bridge {
	b := &Bridge{
		classes: make(map[string][]string),
		results: make(map[stubKey]any),
		errs:    make(map[stubKey]error),
		missing: make(map[stubKey]bool),
		fields:  make(map[string]any),
		live:    make(map[*jni.Ref]bool),
	}
	b.Define("java.lang.Object")
	b.Define("java.lang.String")
	for _, c := range classes {
		b.Define(c)
	}
	return b
}

// Define declares a class and the supertypes its instances are assignable to.
func (b *Bridge) Define(name string, supers ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := make([]string, len(supers))
	for i, x := range supers {
		s[i] = slash(x)
	}
	b.classes[slash(name)] = s
}

// Returns stubs the result of every call to name with signature.
func (b *Bridge) Returns(name, signature string, v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[stubKey{name, signature}] = v
}

// Fails makes every call to name with signature return err.
func (b *Bridge) Fails(name, signature string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs[stubKey{name, signature}] = err
}

// Missing makes member-id lookups for name with signature fail as the
// runtime would.
func (b *Bridge) Missing(name, signature string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.missing[stubKey{name, signature}] = true
}

// NewInstance mints a live object reference of class holding value.
func (b *Bridge) NewInstance(class string, value any) *jni.Ref {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mintObject(slash(class), value)
}

// Value returns the value held by an object minted by the mock.
func (b *Bridge) Value(r *jni.Ref) any {
	if o, ok := r.Token().(*object); ok {
		return o.value
	}
	return nil
}

// Calls returns every recorded call.
func (b *Bridge) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallsTo returns the recorded calls with the given op.
func (b *Bridge) CallsTo(op string) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, c := range b.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Last returns the most recent call.
func (b *Bridge) Last() Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.calls) == 0 {
		return Call{}
	}
	return b.calls[len(b.calls)-1]
}

// Reset forgets recorded calls.
func (b *Bridge) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

// LiveRefs returns the number of references minted and not yet deleted.
func (b *Bridge) LiveRefs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

// Deleted returns the number of DeleteRef calls that succeeded.
func (b *Bridge) Deleted() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deleted
}

// ---------------------------------------------------------------------------
// jni.Bridge
// ---------------------------------------------------------------------------

func (b *Bridge) FindClass(name string) (*jni.Ref, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: "FindClass", Class: dotted(name)})
	if _, ok := b.classes[name]; !ok && !strings.HasPrefix(name, "[") {
		return nil, jni.TranslateThrowable("java.lang.NoClassDefFoundError", name)
	}
	return b.mintClass(name), nil
}

func (b *Bridge) GetObjectClass(obj *jni.Ref) (*jni.Ref, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, err := b.object(obj)
	if err != nil {
		return nil, err
	}
	b.record(Call{Op: "GetObjectClass", Class: dotted(o.class)})
	return b.mintClass(o.class), nil
}

func (b *Bridge) IsInstanceOf(obj, class *jni.Ref) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, err := b.object(obj)
	if err != nil {
		return false, err
	}
	target, _ := class.Token().(string)
	b.record(Call{Op: "IsInstanceOf", Class: dotted(o.class), Name: dotted(target)})
	return b.assignable(o.class, target), nil
}

func (b *Bridge) assignable(from, to string) bool {
	if from == to || to == "java/lang/Object" {
		return true
	}
	for _, s := range b.classes[from] {
		if b.assignable(s, to) {
			return true
		}
	}
	return false
}

func (b *Bridge) GetMethodID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return b.memberID("GetMethodID", class, name, signature, false, false)
}

func (b *Bridge) GetStaticMethodID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return b.memberID("GetStaticMethodID", class, name, signature, true, false)
}

func (b *Bridge) GetFieldID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return b.memberID("GetFieldID", class, name, signature, false, true)
}

func (b *Bridge) GetStaticFieldID(class *jni.Ref, name, signature string) (*jni.MemberID, error) {
	return b.memberID("GetStaticFieldID", class, name, signature, true, true)
}

func (b *Bridge) memberID(op string, class *jni.Ref, name, signature string, static, field bool) (*jni.MemberID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cname, _ := class.Token().(string)
	b.record(Call{Op: op, Class: dotted(cname), Name: name, Signature: signature})
	if class.Released() {
		return nil, fmt.Errorf("%w: %s", jni.ErrReleased, class)
	}
	if b.missing[stubKey{name, signature}] {
		thrown := "java.lang.NoSuchMethodError"
		if field {
			thrown = "java.lang.NoSuchFieldError"
		}
		return nil, jni.TranslateThrowable(thrown, name)
	}
	typ := "jmethodID"
	if field {
		typ = "jfieldID"
	}
	m := &member{class: cname, name: name, signature: signature, static: static, field: field}
	return jni.NewMemberID(m, typ, fmt.Sprintf("%s %s%s", dotted(cname), name, signature)), nil
}

func (b *Bridge) NewObject(class *jni.Ref, ctor *jni.MemberID, argTypes []sig.Type, args ...any) (*jni.Ref, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := ctor.Token().(*member)
	b.record(Call{Op: "NewObject", Class: dotted(m.class), Name: m.name, Signature: m.signature, Args: args})
	if err := b.errs[stubKey{m.name, m.signature}]; err != nil {
		return nil, err
	}
	return b.mintObject(m.class, append([]any(nil), args...)), nil
}

func (b *Bridge) call(op string, target *jni.Ref, id *jni.MemberID, args []any) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := id.Token().(*member)
	b.record(Call{Op: op, Class: dotted(m.class), Name: m.name, Signature: m.signature, Args: args})
	if target.Released() {
		return nil, fmt.Errorf("%w: %s", jni.ErrReleased, target)
	}
	key := stubKey{m.name, m.signature}
	if err := b.errs[key]; err != nil {
		return nil, err
	}
	return b.results[key], nil
}

func (b *Bridge) callObject(op string, target *jni.Ref, id *jni.MemberID, args []any) (*jni.Ref, error) {
	v, err := b.call(op, target, id, args)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.toRef(v), nil
}

func (b *Bridge) toRef(v any) *jni.Ref {
	switch x := v.(type) {
	case nil:
		return nil
	case *jni.Ref:
		return x
	case string:
		return b.mintObject("java/lang/String", x)
	case Instance:
		return b.mintObject(slash(x.Class), x.Value)
	}
	panic(fmt.Sprintf("jnitest: cannot return %T as an object", v))
}

func (b *Bridge) CallVoidMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) error {
	_, err := b.call("CallVoidMethod", obj, id, args)
	return err
}

func (b *Bridge) CallObjectMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (*jni.Ref, error) {
	return b.callObject("CallObjectMethod", obj, id, args)
}

func (b *Bridge) CallBooleanMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (bool, error) {
	v, err := b.call("CallBooleanMethod", obj, id, args)
	r, _ := v.(bool)
	return r, err
}

func (b *Bridge) CallByteMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (int8, error) {
	v, err := b.call("CallByteMethod", obj, id, args)
	return int8(asInt(v)), err
}

func (b *Bridge) CallCharMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (uint16, error) {
	v, err := b.call("CallCharMethod", obj, id, args)
	return uint16(asInt(v)), err
}

func (b *Bridge) CallShortMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (int16, error) {
	v, err := b.call("CallShortMethod", obj, id, args)
	return int16(asInt(v)), err
}

func (b *Bridge) CallIntMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (int32, error) {
	v, err := b.call("CallIntMethod", obj, id, args)
	return int32(asInt(v)), err
}

func (b *Bridge) CallLongMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (int64, error) {
	v, err := b.call("CallLongMethod", obj, id, args)
	return asInt(v), err
}

func (b *Bridge) CallFloatMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (float32, error) {
	v, err := b.call("CallFloatMethod", obj, id, args)
	return float32(asFloat(v)), err
}

func (b *Bridge) CallDoubleMethod(obj *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (float64, error) {
	v, err := b.call("CallDoubleMethod", obj, id, args)
	return asFloat(v), err
}

func (b *Bridge) CallStaticVoidMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) error {
	_, err := b.call("CallStaticVoidMethod", class, id, args)
	return err
}

func (b *Bridge) CallStaticObjectMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (*jni.Ref, error) {
	return b.callObject("CallStaticObjectMethod", class, id, args)
}

func (b *Bridge) CallStaticBooleanMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (bool, error) {
	v, err := b.call("CallStaticBooleanMethod", class, id, args)
	r, _ := v.(bool)
	return r, err
}

func (b *Bridge) CallStaticByteMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (int8, error) {
	v, err := b.call("CallStaticByteMethod", class, id, args)
	return int8(asInt(v)), err
}

func (b *Bridge) CallStaticCharMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (uint16, error) {
	v, err := b.call("CallStaticCharMethod", class, id, args)
	return uint16(asInt(v)), err
}

func (b *Bridge) CallStaticShortMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (int16, error) {
	v, err := b.call("CallStaticShortMethod", class, id, args)
	return int16(asInt(v)), err
}

func (b *Bridge) CallStaticIntMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (int32, error) {
	v, err := b.call("CallStaticIntMethod", class, id, args)
	return int32(asInt(v)), err
}

func (b *Bridge) CallStaticLongMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (int64, error) {
	v, err := b.call("CallStaticLongMethod", class, id, args)
	return asInt(v), err
}

func (b *Bridge) CallStaticFloatMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (float32, error) {
	v, err := b.call("CallStaticFloatMethod", class, id, args)
	return float32(asFloat(v)), err
}

func (b *Bridge) CallStaticDoubleMethod(class *jni.Ref, id *jni.MemberID, _ []sig.Type, args ...any) (float64, error) {
	v, err := b.call("CallStaticDoubleMethod", class, id, args)
	return asFloat(v), err
}

func (b *Bridge) GetField(obj *jni.Ref, field *jni.MemberID, t sig.Type) (any, error) {
	return b.getField("GetField", obj, field, t)
}

func (b *Bridge) GetStaticField(class *jni.Ref, field *jni.MemberID, t sig.Type) (any, error) {
	return b.getField("GetStaticField", class, field, t)
}

func (b *Bridge) SetField(obj *jni.Ref, field *jni.MemberID, t sig.Type, value any) error {
	return b.setField("SetField", obj, field, value)
}

func (b *Bridge) SetStaticField(class *jni.Ref, field *jni.MemberID, t sig.Type, value any) error {
	return b.setField("SetStaticField", class, field, value)
}

func (b *Bridge) getField(op string, target *jni.Ref, field *jni.MemberID, t sig.Type) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := field.Token().(*member)
	b.record(Call{Op: op, Class: dotted(m.class), Name: m.name, Signature: m.signature})
	if target.Released() {
		return nil, fmt.Errorf("%w: %s", jni.ErrReleased, target)
	}
	v, ok := b.fields[fieldKey(target, m)]
	if !ok {
		v = b.results[stubKey{m.name, m.signature}]
	}
	if t.IsReference() {
		return b.toRef(v), nil
	}
	if v == nil {
		return zero(t), nil
	}
	return v, nil
}

func (b *Bridge) setField(op string, target *jni.Ref, field *jni.MemberID, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := field.Token().(*member)
	b.record(Call{Op: op, Class: dotted(m.class), Name: m.name, Signature: m.signature, Args: []any{value}})
	if target.Released() {
		return fmt.Errorf("%w: %s", jni.ErrReleased, target)
	}
	b.fields[fieldKey(target, m)] = value
	return nil
}

func fieldKey(target *jni.Ref, m *member) string {
	if m.static {
		return m.class + "." + m.name
	}
	if o, ok := target.Token().(*object); ok {
		return fmt.Sprintf("%d.%s", o.id, m.name)
	}
	return m.name
}

func (b *Bridge) GetStringUTF(str *jni.Ref) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, err := b.object(str)
	if err != nil {
		return "", err
	}
	b.record(Call{Op: "GetStringUTF", Class: dotted(o.class)})
	s, ok := o.value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", jni.ErrBridge, str)
	}
	return s, nil
}

func (b *Bridge) DeleteRef(ref *jni.Ref) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: "DeleteRef", Name: ref.Qualifier()})
	if !b.live[ref] {
		return fmt.Errorf("%w: DeleteRef of unknown or deleted ref %s", jni.ErrBridge, ref)
	}
	delete(b.live, ref)
	b.deleted++
	return nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func (b *Bridge) record(c Call) {
	b.calls = append(b.calls, c)
}

func (b *Bridge) mintClass(name string) *jni.Ref {
	r := jni.NewRef(name, "jclass", "class "+dotted(name))
	b.live[r] = true
	return r
}

func (b *Bridge) mintObject(class string, value any) *jni.Ref {
	b.nextID++
	o := &object{class: class, value: value, id: b.nextID}
	q := fmt.Sprintf("%s@%d", dotted(class), o.id)
	if s, ok := value.(string); ok && class == "java/lang/String" {
		q = s
	}
	r := jni.NewRef(o, "jobject", q)
	b.live[r] = true
	return r
}

func (b *Bridge) object(r *jni.Ref) (*object, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: null reference", jni.ErrBridge)
	}
	if r.Released() || !b.live[r] {
		return nil, fmt.Errorf("%w: %s", jni.ErrReleased, r)
	}
	o, ok := r.Token().(*object)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an object", jni.ErrBridge, r)
	}
	return o, nil
}

func slash(name string) string  { return strings.ReplaceAll(name, ".", "/") }
func dotted(name string) string { return strings.ReplaceAll(name, "/", ".") }

func asInt(v any) int64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	}
	return 0
}

func asFloat(v any) float64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	}
	return 0
}

func zero(t sig.Type) any {
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

var _ jni.Bridge = (*Bridge)(nil)
