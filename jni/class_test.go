package jni_test

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/chazu/jnibind/jni"
	"github.com/chazu/jnibind/jni/jnitest"
	"github.com/chazu/jnibind/sig"
)

func newEnv(t *testing.T, classes ...string) (*jni.Env, *jnitest.Bridge) {
	t.Helper()
	b := jnitest.New(classes...)
	env := jni.NewEnv(b)
	t.Cleanup(func() { env.Close() })
	return env, b
}

func mustClass(t *testing.T, env *jni.Env, name string) *jni.Class {
	t.Helper()
	c, err := env.Class(name)
	if err != nil {
		t.Fatalf("Class(%q): %v", name, err)
	}
	return c
}

// ---- Registration ----

func TestConstructorLooksUpInit(t *testing.T) {
	env, b := newEnv(t, "my.package.MyClass")
	c := mustClass(t, env, "my.package.MyClass")

	if err := c.Register(func(r *jni.Registrar) { r.Constructor() }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got := b.Last()
	if got.Op != "GetMethodID" || got.Name != "<init>" || got.Signature != "()V" {
		t.Errorf("last call = %v, want GetMethodID <init> ()V", got)
	}
}

func TestStaticMethodUsesRuntimeName(t *testing.T) {
	env, b := newEnv(t, "my.package.MyClass")
	c := mustClass(t, env, "my.package.MyClass")

	h, err := c.StaticMethod("my_method", []sig.Type{sig.Int, sig.Boolean}, sig.Boolean)
	if err != nil {
		t.Fatalf("StaticMethod: %v", err)
	}
	got := b.Last()
	if got.Op != "GetStaticMethodID" || got.Name != "myMethod" || got.Signature != "(IZ)Z" {
		t.Errorf("last call = %v, want GetStaticMethodID myMethod (IZ)Z", got)
	}
	if h.Name() != "my_method" || h.RuntimeName() != "myMethod" {
		t.Errorf("names = %q/%q", h.Name(), h.RuntimeName())
	}
	if h.EntryPoint() != "CallStaticBooleanMethod" {
		t.Errorf("entry point = %q", h.EntryPoint())
	}
}

func TestEntryPointByReturnType(t *testing.T) {
	env, _ := newEnv(t, "demo.Types", "java.net.URL")
	c := mustClass(t, env, "demo.Types")

	tests := []struct {
		ret          any
		instance     string
		staticMethod string
	}{
		{"void", "CallVoidMethod", "CallStaticVoidMethod"},
		{"boolean", "CallBooleanMethod", "CallStaticBooleanMethod"},
		{"byte", "CallByteMethod", "CallStaticByteMethod"},
		{"char", "CallCharMethod", "CallStaticCharMethod"},
		{"short", "CallShortMethod", "CallStaticShortMethod"},
		{"int", "CallIntMethod", "CallStaticIntMethod"},
		{"long", "CallLongMethod", "CallStaticLongMethod"},
		{"float", "CallFloatMethod", "CallStaticFloatMethod"},
		{"double", "CallDoubleMethod", "CallStaticDoubleMethod"},
		{"string", "CallObjectMethod", "CallStaticObjectMethod"},
		{"java.net.URL", "CallObjectMethod", "CallStaticObjectMethod"},
		{[]any{"int"}, "CallObjectMethod", "CallStaticObjectMethod"},
	}
	for _, tt := range tests {
		ret := sig.MustParse(tt.ret)
		t.Run(ret.String(), func(t *testing.T) {
			h, err := c.Method("m", nil, ret)
			if err != nil {
				t.Fatalf("Method: %v", err)
			}
			if h.EntryPoint() != tt.instance {
				t.Errorf("instance entry point = %q, want %q", h.EntryPoint(), tt.instance)
			}
			h, err = c.StaticMethod("m", nil, ret)
			if err != nil {
				t.Fatalf("StaticMethod: %v", err)
			}
			if h.EntryPoint() != tt.staticMethod {
				t.Errorf("static entry point = %q, want %q", h.EntryPoint(), tt.staticMethod)
			}
		})
	}
}

func TestRegisterUnknownTag(t *testing.T) {
	env, b := newEnv(t, "demo.Types")
	c := mustClass(t, env, "demo.Types")
	b.Reset()

	err := c.Register(func(r *jni.Registrar) {
		r.Method("bad", []any{"int", "not a type"}, "void")
		r.Method("never", nil, "void")
	})
	if !errors.Is(err, sig.ErrUnknownType) {
		t.Fatalf("Register error = %v, want ErrUnknownType", err)
	}
	if n := len(b.Calls()); n != 0 {
		t.Errorf("expected no bridge calls, got %d", n)
	}
	if _, ok := c.LookupMethod("never"); ok {
		t.Error("registration continued after the first error")
	}
}

func TestMissingMethod(t *testing.T) {
	env, b := newEnv(t, "demo.Types")
	c := mustClass(t, env, "demo.Types")
	b.Missing("nope", "()V")

	_, err := c.Method("nope", nil, sig.Void)
	if !errors.Is(err, jni.ErrNoSuchMethod) || !errors.Is(err, jni.ErrBridge) {
		t.Errorf("err = %v, want ErrNoSuchMethod", err)
	}
	if _, err := c.CallStatic("nope"); !errors.Is(err, jni.ErrNoSuchMethod) {
		t.Errorf("CallStatic of unregistered method: %v", err)
	}
	if _, err := c.New(1, 2); !errors.Is(err, jni.ErrNoSuchMethod) {
		t.Errorf("New with unregistered arity: %v", err)
	}
}

func TestNewPicksConstructorByArity(t *testing.T) {
	env, b := newEnv(t, "my.package.MyClass")
	c := mustClass(t, env, "my.package.MyClass")
	if _, err := c.Constructor(); err != nil {
		t.Fatalf("Constructor: %v", err)
	}

	obj, err := c.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cls, err := obj.Class()
	if err != nil {
		t.Fatalf("Class: %v", err)
	}
	if cls.Name() != "my.package.MyClass" {
		t.Errorf("class name = %q, want my.package.MyClass", cls.Name())
	}

	before := len(b.CallsTo("NewObject"))
	if _, err := c.New("x"); !errors.Is(err, jni.ErrNoSuchMethod) {
		t.Errorf("New(x) with only arity 0 registered: %v", err)
	}
	if n := len(b.CallsTo("NewObject")); n != before {
		t.Error("New(x) reached the bridge")
	}
}

func TestClassNotFound(t *testing.T) {
	env, _ := newEnv(t)
	_, err := env.Class("com.example.Missing")
	if !errors.Is(err, jni.ErrClassNotFound) || !errors.Is(err, jni.ErrBridge) {
		t.Errorf("err = %v, want ErrClassNotFound", err)
	}
}

func TestClassBindingIsMemoized(t *testing.T) {
	env, b := newEnv(t, "java.net.URL")
	a := mustClass(t, env, "java.net.URL")
	c := mustClass(t, env, "java/net/URL")
	if a != c {
		t.Error("dotted and slash lookups returned different bindings")
	}
	if n := len(b.CallsTo("FindClass")); n != 1 {
		t.Errorf("FindClass called %d times, want 1", n)
	}
}

func TestArrayClassSpellingsShareABinding(t *testing.T) {
	env, b := newEnv(t)
	a := mustClass(t, env, "[Ljava/lang/String;")
	d := mustClass(t, env, "[Ljava.lang.String;")
	f, err := env.ClassFor(sig.ArrayOf(sig.String))
	if err != nil {
		t.Fatalf("ClassFor: %v", err)
	}
	if a != d || a != f {
		t.Error("array class spellings returned different bindings")
	}
	if n := len(b.CallsTo("FindClass")); n != 1 {
		t.Errorf("FindClass called %d times, want 1", n)
	}
	if got := a.Type().Signature(); got != "[Ljava/lang/String;" {
		t.Errorf("array class type = %s", got)
	}
}

func TestConstructorArityReplaces(t *testing.T) {
	env, _ := newEnv(t, "java.net.URL")
	url := mustClass(t, env, "java.net.URL")
	if _, err := url.Constructor(sig.String); err != nil {
		t.Fatal(err)
	}
	h, err := url.Constructor(sig.Class("java.net.URL"))
	if err != nil {
		t.Fatal(err)
	}
	got, _ := url.LookupConstructor(1)
	if got != h {
		t.Error("later constructor of the same arity did not replace the earlier one")
	}
	if n := len(url.Constructors()); n != 1 {
		t.Errorf("%d constructors registered, want 1", n)
	}
}

// ---- Calls ----

func TestCallStaticBoolean(t *testing.T) {
	env, b := newEnv(t, "java.lang.Boolean")
	c := mustClass(t, env, "java.lang.Boolean")
	if err := c.Register(func(r *jni.Registrar) {
		r.StaticMethod("parse_boolean", []any{"string"}, "boolean")
	}); err != nil {
		t.Fatal(err)
	}
	b.Returns("parseBoolean", "(Ljava/lang/String;)Z", true)

	got, err := c.CallStatic("parse_boolean", "true")
	if err != nil {
		t.Fatalf("CallStatic: %v", err)
	}
	if got != true {
		t.Errorf("got %v, want true", got)
	}
	last := b.Last()
	if last.Op != "CallStaticBooleanMethod" || !reflect.DeepEqual(last.Args, []any{"true"}) {
		t.Errorf("last call = %v", last)
	}
}

func TestStringReturnReleasesRef(t *testing.T) {
	env, b := newEnv(t)
	str := mustClass(t, env, "java.lang.String")
	if _, err := str.StaticMethod("value_of", []sig.Type{sig.Int}, sig.String); err != nil {
		t.Fatal(err)
	}
	b.Returns("valueOf", "(I)Ljava/lang/String;", "42")
	before := b.LiveRefs()

	got, err := str.CallStatic("value_of", 42)
	if err != nil {
		t.Fatalf("CallStatic: %v", err)
	}
	if got != "42" {
		t.Errorf("got %#v, want \"42\"", got)
	}
	if b.LiveRefs() != before {
		t.Errorf("live refs = %d, want %d", b.LiveRefs(), before)
	}

	b.Returns("valueOf", "(I)Ljava/lang/String;", nil)
	got, err = str.CallStatic("value_of", 0)
	if err != nil || got != nil {
		t.Errorf("null string: got %#v, %v", got, err)
	}
}

func TestObjectLifecycle(t *testing.T) {
	env, b := newEnv(t, "java.net.URL")
	url := mustClass(t, env, "java.net.URL")
	err := url.Register(func(r *jni.Registrar) {
		r.Constructor("string")
		r.Method("get_host", nil, "string")
		r.StaticMethod("of", nil, "java.net.URL")
	})
	if err != nil {
		t.Fatal(err)
	}
	b.Returns("getHost", "()Ljava/lang/String;", "example.com")

	u, err := url.New("http://example.com/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := b.Last(); got.Op != "NewObject" || !reflect.DeepEqual(got.Args, []any{"http://example.com/"}) {
		t.Errorf("last call = %v", got)
	}
	host, err := u.Call("get_host")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if host != "example.com" {
		t.Errorf("host = %v", host)
	}
	cls, err := u.Class()
	if err != nil || cls != url {
		t.Errorf("Class() = %v, %v; want the URL binding", cls, err)
	}

	b.Returns("of", "()Ljava/net/URL;", jnitest.Instance{Class: "java.net.URL"})
	v, err := url.CallStatic("of")
	if err != nil {
		t.Fatal(err)
	}
	obj, ok := v.(*jni.Object)
	if !ok {
		t.Fatalf("got %T, want *jni.Object", v)
	}
	if obj.Declared().ClassName() != "java.net.URL" {
		t.Errorf("declared = %v", obj.Declared())
	}
	if host, err := obj.Call("get_host"); err != nil || host != "example.com" {
		t.Errorf("call on returned object: %v, %v", host, err)
	}

	b.Returns("of", "()Ljava/net/URL;", nil)
	if v, err := url.CallStatic("of"); err != nil || v != nil {
		t.Errorf("null object: got %#v, %v", v, err)
	}
}

func TestRuntimeClassBindingReused(t *testing.T) {
	env, b := newEnv(t, "java.lang.Integer")
	integer := mustClass(t, env, "java.lang.Integer")
	if _, err := integer.Method("int_value", nil, sig.Int); err != nil {
		t.Fatal(err)
	}
	b.Returns("intValue", "()I", 7)

	obj, err := env.Wrap(b.NewInstance("java.lang.Integer", 7), sig.Class("java.lang.Object"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := obj.Call("int_value")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != int32(7) {
		t.Errorf("got %#v, want int32(7)", got)
	}
	cls, _ := obj.Class()
	if cls != integer {
		t.Error("runtime class lookup did not reuse the existing binding")
	}
}

func TestJavaExceptionPropagates(t *testing.T) {
	env, b := newEnv(t, "java.lang.Integer")
	c := mustClass(t, env, "java.lang.Integer")
	if _, err := c.StaticMethod("parse_int", []sig.Type{sig.String}, sig.Int); err != nil {
		t.Fatal(err)
	}
	b.Fails("parseInt", "(Ljava/lang/String;)I",
		jni.TranslateThrowable("java.lang.NumberFormatException", `For input string: "x"`))

	_, err := c.CallStatic("parse_int", "x")
	var je *jni.JavaException
	if !errors.As(err, &je) {
		t.Fatalf("err = %v, want *JavaException", err)
	}
	if je.ClassName != "java.lang.NumberFormatException" {
		t.Errorf("class = %q", je.ClassName)
	}
	if !errors.Is(err, jni.ErrBridge) {
		t.Error("java exception is not a bridge error")
	}
}

// ---- Argument validation ----

func mixClass(t *testing.T) (*jni.Class, *jnitest.Bridge) {
	t.Helper()
	env, b := newEnv(t, "demo.Mix")
	c := mustClass(t, env, "demo.Mix")
	err := c.Register(func(r *jni.Registrar) {
		r.StaticMethod("mix",
			[]any{"byte", "short", "int", "long", "char", "float", "double", "boolean", "string"},
			"void")
	})
	if err != nil {
		t.Fatal(err)
	}
	b.Reset()
	return c, b
}

func validMix() []any {
	return []any{1, 2, 3, 4, "x", 1.5, 2.5, true, nil}
}

func TestArgumentsNormalized(t *testing.T) {
	c, b := mixClass(t)
	if _, err := c.CallStatic("mix", validMix()...); err != nil {
		t.Fatalf("CallStatic: %v", err)
	}
	want := []any{int8(1), int16(2), int32(3), int64(4), uint16('x'), float32(1.5), 2.5, true, nil}
	if got := b.Last().Args; !reflect.DeepEqual(got, want) {
		t.Errorf("args = %#v, want %#v", got, want)
	}
}

func TestArgumentsRejected(t *testing.T) {
	tests := []struct {
		name  string
		index int
		value any
	}{
		{"byte overflow", 1, 128},
		{"byte underflow", 1, -129},
		{"short overflow", 2, 40000},
		{"int overflow", 3, int64(math.MaxInt32) + 1},
		{"float for long", 4, 1.0},
		{"two chars", 5, "xy"},
		{"empty char", 5, ""},
		{"int for char", 5, 120},
		{"invalid utf-8 char", 5, "\xff"},
		{"supplementary char", 5, "\U0001F600"},
		{"infinite float", 6, math.Inf(1)},
		{"float overflow", 6, math.MaxFloat64},
		{"NaN double", 7, math.NaN()},
		{"int for boolean", 8, 1},
		{"nil byte", 1, nil},
		{"nil short", 2, nil},
		{"nil int", 3, nil},
		{"nil long", 4, nil},
		{"nil char", 5, nil},
		{"nil float", 6, nil},
		{"nil double", 7, nil},
		{"nil boolean", 8, nil},
		{"int for string", 9, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, b := mixClass(t)
			args := validMix()
			args[tt.index-1] = tt.value

			_, err := c.CallStatic("mix", args...)
			var ae *jni.ArgumentError
			if !errors.As(err, &ae) {
				t.Fatalf("err = %v, want *ArgumentError", err)
			}
			if ae.Index != tt.index {
				t.Errorf("index = %d, want %d", ae.Index, tt.index)
			}
			if !errors.Is(err, jni.ErrWrongArgumentType) || !errors.Is(err, jni.ErrBridge) {
				t.Errorf("err %v is not a wrong-argument-type bridge error", err)
			}
			if n := len(b.CallsTo("CallStaticVoidMethod")); n != 0 {
				t.Errorf("bridge was called %d times after a rejected argument", n)
			}
		})
	}
}

func TestReplacementCharIsAChar(t *testing.T) {
	c, b := mixClass(t)
	args := validMix()
	args[4] = "\uFFFD"
	if _, err := c.CallStatic("mix", args...); err != nil {
		t.Fatalf("CallStatic: %v", err)
	}
	if got := b.Last().Args[4]; got != uint16(0xFFFD) {
		t.Errorf("char = %#v, want uint16(0xFFFD)", got)
	}
}

func TestArgumentCount(t *testing.T) {
	c, _ := mixClass(t)
	_, err := c.CallStatic("mix", 1, 2)
	var ae *jni.ArgumentError
	if !errors.As(err, &ae) || ae.Index != 0 {
		t.Errorf("err = %v, want argument count error", err)
	}
}

func TestObjectArgumentAssignability(t *testing.T) {
	env, b := newEnv(t, "demo.Sink", "java.lang.Number")
	b.Define("java.lang.Integer", "java.lang.Number")
	sink := mustClass(t, env, "demo.Sink")
	if _, err := sink.StaticMethod("take", []sig.Type{sig.Class("java.lang.Number")}, sig.Void); err != nil {
		t.Fatal(err)
	}

	n, _ := env.Wrap(b.NewInstance("java.lang.Integer", 1), sig.Class("java.lang.Integer"))
	if _, err := sink.CallStatic("take", n); err != nil {
		t.Errorf("subclass argument rejected: %v", err)
	}
	if _, err := sink.CallStatic("take", nil); err != nil {
		t.Errorf("nil object argument rejected: %v", err)
	}

	s, _ := env.Wrap(b.NewInstance("java.lang.String", "x"), sig.String)
	_, err := sink.CallStatic("take", s)
	var ae *jni.ArgumentError
	if !errors.As(err, &ae) || ae.Index != 1 {
		t.Errorf("err = %v, want argument 1 rejected", err)
	}
	if _, err := sink.CallStatic("take", "plain string"); !errors.Is(err, jni.ErrWrongArgumentType) {
		t.Errorf("Go string for object parameter: %v", err)
	}
}

// ---- Fields ----

func TestFields(t *testing.T) {
	env, b := newEnv(t, "demo.Point")
	p := mustClass(t, env, "demo.Point")
	err := p.Register(func(r *jni.Registrar) {
		r.Constructor()
		r.Field("x", "int")
		r.StaticField("origin_name", "string")
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := b.CallsTo("GetStaticFieldID"); len(got) != 1 || got[0].Name != "originName" || got[0].Signature != "Ljava/lang/String;" {
		t.Errorf("static field lookup = %v", got)
	}

	obj, err := p.New()
	if err != nil {
		t.Fatal(err)
	}
	if v, err := obj.Get("x"); err != nil || v != int32(0) {
		t.Errorf("initial x = %#v, %v", v, err)
	}
	if err := obj.Set("x", 12); err != nil {
		t.Fatal(err)
	}
	if v, _ := obj.Get("x"); v != int32(12) {
		t.Errorf("x = %#v, want int32(12)", v)
	}
	if err := obj.Set("x", 1.5); !errors.Is(err, jni.ErrWrongArgumentType) {
		t.Errorf("float into int field: %v", err)
	}

	if err := p.SetStatic("origin_name", "zero"); err != nil {
		t.Fatal(err)
	}
	if v, err := p.GetStatic("origin_name"); err != nil || v != "zero" {
		t.Errorf("origin_name = %#v, %v", v, err)
	}
	if _, err := obj.Get("missing"); !errors.Is(err, jni.ErrNoSuchMethod) {
		t.Errorf("unregistered field: %v", err)
	}
}
