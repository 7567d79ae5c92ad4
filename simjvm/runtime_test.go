package simjvm_test

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/jnibind/jni"
	"github.com/chazu/jnibind/sig"
	"github.com/chazu/jnibind/simjvm"
)

func setup(t *testing.T) (*jni.Env, *simjvm.Runtime) {
	t.Helper()
	rt := simjvm.New()
	env := jni.NewEnv(rt)
	t.Cleanup(func() {
		if err := env.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
		if n := rt.LiveRefs(); n != 0 {
			t.Errorf("%d references leaked", n)
		}
	})
	return env, rt
}

func bind(t *testing.T, env *jni.Env, name string, fn func(r *jni.Registrar)) *jni.Class {
	t.Helper()
	c, err := env.Class(name)
	if err != nil {
		t.Fatalf("Class(%q): %v", name, err)
	}
	if err := c.Register(fn); err != nil {
		t.Fatalf("Register(%s): %v", name, err)
	}
	return c
}

// ---- Statics ----

func TestParseBoolean(t *testing.T) {
	env, _ := setup(t)
	b := bind(t, env, "java.lang.Boolean", func(r *jni.Registrar) {
		r.StaticMethod("parse_boolean", []any{"string"}, "boolean")
	})

	tests := []struct {
		in   any
		want bool
	}{
		{"true", true},
		{"TRUE", true},
		{"false", false},
		{"yes", false},
		{nil, false},
	}
	for _, tt := range tests {
		got, err := b.CallStatic("parse_boolean", tt.in)
		if err != nil {
			t.Fatalf("parse_boolean(%v): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("parse_boolean(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPrimitiveReturns(t *testing.T) {
	env, _ := setup(t)
	bind(t, env, "java.lang.Integer", func(r *jni.Registrar) {
		r.StaticMethod("sum", []any{"int", "int"}, "int")
		r.StaticField("MAX_VALUE", "int")
	})
	bind(t, env, "java.lang.Long", func(r *jni.Registrar) {
		r.StaticMethod("parse_long", []any{"string"}, "long")
	})
	bind(t, env, "java.lang.Byte", func(r *jni.Registrar) {
		r.StaticMethod("parse_byte", []any{"string"}, "byte")
	})
	bind(t, env, "java.lang.Short", func(r *jni.Registrar) {
		r.StaticMethod("parse_short", []any{"string"}, "short")
	})
	bind(t, env, "java.lang.Float", func(r *jni.Registrar) {
		r.StaticMethod("parse_float", []any{"string"}, "float")
	})
	bind(t, env, "java.lang.Character", func(r *jni.Registrar) {
		r.StaticMethod("to_upper_case", []any{"char"}, "char")
	})
	bind(t, env, "java.lang.Math", func(r *jni.Registrar) {
		r.StaticMethod("sqrt", []any{"double"}, "double")
		r.StaticField("PI", "double")
	})

	tests := []struct {
		class, method string
		args          []any
		want          any
	}{
		{"java.lang.Integer", "sum", []any{2, 40}, int32(42)},
		{"java.lang.Long", "parse_long", []any{"9007199254740993"}, int64(9007199254740993)},
		{"java.lang.Byte", "parse_byte", []any{"-7"}, int8(-7)},
		{"java.lang.Short", "parse_short", []any{"300"}, int16(300)},
		{"java.lang.Float", "parse_float", []any{"1.5"}, float32(1.5)},
		{"java.lang.Character", "to_upper_case", []any{"q"}, uint16('Q')},
		{"java.lang.Math", "sqrt", []any{16}, 4.0},
	}
	for _, tt := range tests {
		t.Run(tt.class+"."+tt.method, func(t *testing.T) {
			c, _ := env.Class(tt.class)
			got, err := c.CallStatic(tt.method, tt.args...)
			if err != nil {
				t.Fatalf("CallStatic: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}

	integer, _ := env.Class("java.lang.Integer")
	if v, err := integer.GetStatic("MAX_VALUE"); err != nil || v != int32(math.MaxInt32) {
		t.Errorf("MAX_VALUE = %#v, %v", v, err)
	}
	m, _ := env.Class("java.lang.Math")
	if v, err := m.GetStatic("PI"); err != nil || v != math.Pi {
		t.Errorf("PI = %#v, %v", v, err)
	}
}

func TestStaticStringField(t *testing.T) {
	env, _ := setup(t)
	file := bind(t, env, "java.io.File", func(r *jni.Registrar) {
		r.StaticField("separator", "string")
	})
	v, err := file.GetStatic("separator")
	if err != nil || v != "/" {
		t.Errorf("separator = %#v, %v", v, err)
	}
	if err := file.SetStatic("separator", "\\"); err != nil {
		t.Fatal(err)
	}
	if v, _ := file.GetStatic("separator"); v != "\\" {
		t.Errorf("separator after set = %#v", v)
	}
}

// ---- Exceptions ----

func TestNumberFormatException(t *testing.T) {
	env, _ := setup(t)
	integer := bind(t, env, "java.lang.Integer", func(r *jni.Registrar) {
		r.StaticMethod("parse_int", []any{"string"}, "int")
	})

	got, err := integer.CallStatic("parse_int", "123")
	if err != nil || got != int32(123) {
		t.Fatalf("parse_int(123) = %v, %v", got, err)
	}

	_, err = integer.CallStatic("parse_int", "x")
	var je *jni.JavaException
	if !errors.As(err, &je) {
		t.Fatalf("err = %v, want *JavaException", err)
	}
	if je.ClassName != "java.lang.NumberFormatException" || je.Message != `For input string: "x"` {
		t.Errorf("exception = %+v", je)
	}
}

func TestLookupFailures(t *testing.T) {
	env, _ := setup(t)
	if _, err := env.Class("com.example.Nope"); !errors.Is(err, jni.ErrClassNotFound) {
		t.Errorf("missing class: %v", err)
	}
	str, _ := env.Class("java.lang.String")
	if _, err := str.Method("frobnicate", nil, sig.Void); !errors.Is(err, jni.ErrNoSuchMethod) {
		t.Errorf("missing method: %v", err)
	}
	if _, err := str.StaticMethod("length", nil, sig.Int); !errors.Is(err, jni.ErrNoSuchMethod) {
		t.Errorf("instance method looked up as static: %v", err)
	}
	if _, err := str.Field("value", sig.ArrayOf(sig.Byte)); !errors.Is(err, jni.ErrNoSuchMethod) {
		t.Errorf("missing field: %v", err)
	}
	if _, err := str.Constructor(sig.Int, sig.Int); !errors.Is(err, jni.ErrNoSuchMethod) {
		t.Errorf("missing constructor: %v", err)
	}
}

// ---- Objects ----

func TestURL(t *testing.T) {
	env, _ := setup(t)
	url := bind(t, env, "java.net.URL", func(r *jni.Registrar) {
		r.Constructor("string")
		r.Method("get_host", nil, "string")
		r.Method("get_port", nil, "int")
		r.Method("get_default_port", nil, "int")
		r.Method("get_query", nil, "string")
		r.Method("get_ref", nil, "string")
		r.Method("to_string", nil, "string")
	})

	u, err := url.New("https://example.com:8443/a/b?x=1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	checks := []struct {
		method string
		want   any
	}{
		{"get_host", "example.com"},
		{"get_port", int32(8443)},
		{"get_default_port", int32(443)},
		{"get_query", "x=1"},
		{"get_ref", nil},
		{"to_string", "https://example.com:8443/a/b?x=1"},
	}
	for _, c := range checks {
		got, err := u.Call(c.method)
		if err != nil {
			t.Fatalf("%s: %v", c.method, err)
		}
		if got != c.want {
			t.Errorf("%s = %#v, want %#v", c.method, got, c.want)
		}
	}
	if s := u.String(); s != "https://example.com:8443/a/b?x=1 (java.net.URL)" {
		t.Errorf("String() = %q", s)
	}

	for _, spec := range []string{"example.com", "gopher2://x"} {
		_, err := url.New(spec)
		var je *jni.JavaException
		if !errors.As(err, &je) || je.ClassName != "java.net.MalformedURLException" {
			t.Errorf("New(%q): %v", spec, err)
		}
	}
}

func TestStringBuilderChaining(t *testing.T) {
	env, _ := setup(t)
	sb := bind(t, env, "java.lang.StringBuilder", func(r *jni.Registrar) {
		r.Constructor()
		r.Method("append", []any{"string"}, "java.lang.StringBuilder")
		r.Method("reverse", nil, "java.lang.StringBuilder")
		r.Method("length", nil, "int")
		r.Method("to_string", nil, "string")
	})

	b, err := sb.New()
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []any{"ab", "cd", nil} {
		v, err := b.Call("append", s)
		if err != nil {
			t.Fatalf("append(%v): %v", s, err)
		}
		if _, ok := v.(*jni.Object); !ok {
			t.Fatalf("append returned %T", v)
		}
	}
	if s, _ := b.Call("to_string"); s != "abcdnull" {
		t.Errorf("to_string = %#v", s)
	}
	r, err := b.Call("reverse")
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := r.(*jni.Object).Call("to_string"); s != "llundcba" {
		t.Errorf("reversed = %#v", s)
	}
	if n, _ := b.Call("length"); n != int32(8) {
		t.Errorf("length = %#v", n)
	}
}

func TestRuntimeClassOfReturnedObject(t *testing.T) {
	env, _ := setup(t)
	thread := bind(t, env, "java.lang.Thread", func(r *jni.Registrar) {
		r.StaticMethod("current_thread", nil, "java.lang.Thread")
		r.Method("get_name", nil, "string")
	})
	v, err := thread.CallStatic("current_thread")
	if err != nil {
		t.Fatal(err)
	}
	obj, err := env.Wrap(v.(*jni.Object).Ref(), sig.Class("java.lang.Object"))
	if err != nil {
		t.Fatal(err)
	}
	if obj.Declared().ClassName() != "java.lang.Object" {
		t.Errorf("declared = %v", obj.Declared())
	}
	name, err := obj.Call("get_name")
	if err != nil || name != "main" {
		t.Errorf("get_name = %#v, %v", name, err)
	}
	c, err := obj.Class()
	if err != nil {
		t.Fatal(err)
	}
	if c != thread || c.Name() != "java.lang.Thread" {
		t.Errorf("runtime class = %v", c)
	}
}

func TestObjectParameters(t *testing.T) {
	env, rt := setup(t)
	sb := bind(t, env, "java.lang.StringBuilder", func(r *jni.Registrar) {
		r.Constructor()
		r.Method("to_string", nil, "string")
	})
	appendObj, err := sb.Method("append", []sig.Type{sig.Class("java.lang.Object")}, sig.Class("java.lang.StringBuilder"))
	if err != nil {
		t.Fatal(err)
	}
	integer := bind(t, env, "java.lang.Integer", func(r *jni.Registrar) {
		r.Constructor("int")
	})

	b, _ := sb.New()
	n, _ := integer.New(42)
	if _, err := appendObj.Invoke(b, n); err != nil {
		t.Fatalf("append(Integer): %v", err)
	}
	if _, err := appendObj.Invoke(b, nil); err != nil {
		t.Fatalf("append(null): %v", err)
	}
	if s, _ := b.Call("to_string"); s != "42null" {
		t.Errorf("to_string = %#v", s)
	}

	host, err := env.Wrap(rt.Ref(rt.NewString("hosted")), sig.String)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := appendObj.Invoke(b, host); err != nil {
		t.Errorf("append(String): %v", err)
	}
}

func TestArrays(t *testing.T) {
	env, _ := setup(t)
	str := bind(t, env, "java.lang.String", func(r *jni.Registrar) {
		r.Constructor("string")
		r.Method("split", []any{"string"}, []any{"string"})
	})
	arrays := bind(t, env, "java.util.Arrays", func(r *jni.Registrar) {
		r.StaticMethod("to_string", []any{[]any{"java.lang.Object"}}, "string")
	})

	s, err := str.New("a,b,,c,,")
	if err != nil {
		t.Fatal(err)
	}
	parts, err := s.Call("split", ",")
	if err != nil {
		t.Fatal(err)
	}
	got, err := arrays.CallStatic("to_string", parts)
	if err != nil {
		t.Fatalf("to_string: %v", err)
	}
	if got != "[a, b, , c]" {
		t.Errorf("got %#v", got)
	}
}

// ---- Lifetime ----

func TestFramesReleaseRuntimeRefs(t *testing.T) {
	env, rt := setup(t)
	url := bind(t, env, "java.net.URL", func(r *jni.Registrar) {
		r.Constructor("string")
	})
	base := rt.LiveRefs()

	f := env.PushFrame()
	var keep *jni.Object
	for i := 0; i < 3; i++ {
		u, err := url.New("http://example.com/")
		if err != nil {
			t.Fatal(err)
		}
		keep = u
	}
	if rt.LiveRefs() != base+3 {
		t.Fatalf("live = %d, want %d", rt.LiveRefs(), base+3)
	}
	if err := f.Pop(keep); err != nil {
		t.Fatal(err)
	}
	if rt.LiveRefs() != base+1 {
		t.Errorf("live after pop = %d, want %d", rt.LiveRefs(), base+1)
	}
}

func TestDefineCustomClass(t *testing.T) {
	env, rt := setup(t)
	err := rt.Define(simjvm.ClassDef{
		Name: "demo.Counter",
		Constructors: []simjvm.Method{{
			Signature: "(I)V",
			Impl: func(c *simjvm.Call) (any, error) {
				c.This.Value = c.Int(0)
				return nil, nil
			},
		}},
		Methods: []simjvm.Method{{
			Name:      "incrementBy",
			Signature: "(I)I",
			Impl: func(c *simjvm.Call) (any, error) {
				n := c.This.Value.(int32) + c.Int(0)
				c.This.Value = n
				return n, nil
			},
		}},
		Fields: []simjvm.Field{{Name: "label", Signature: "Ljava/lang/String;"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	counter := bind(t, env, "demo.Counter", func(r *jni.Registrar) {
		r.Constructor("int")
		r.Method("increment_by", []any{"int"}, "int")
		r.Field("label", "string")
	})
	c, err := counter.New(10)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := c.Call("increment_by", 5); v != int32(15) {
		t.Errorf("increment_by = %#v", v)
	}
	if v, err := c.Get("label"); err != nil || v != nil {
		t.Errorf("unset label = %#v, %v", v, err)
	}
	if err := c.Set("label", "ctr"); err != nil {
		t.Fatal(err)
	}
	if v, _ := c.Get("label"); v != "ctr" {
		t.Errorf("label = %#v", v)
	}

	if err := rt.Define(simjvm.ClassDef{Name: "demo.Counter"}); err == nil {
		t.Error("redefinition succeeded")
	}
	if err := rt.Define(simjvm.ClassDef{Name: "demo.Orphan", Super: "demo.Missing"}); err == nil {
		t.Error("missing superclass accepted")
	}
}
