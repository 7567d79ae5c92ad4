//go:build jni

package jnicgo

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/chazu/jnibind/jni"
)

var testVM *VM

func TestMain(m *testing.M) {
	vm, err := Create("-Xrs")
	if err != nil {
		fmt.Fprintln(os.Stderr, "starting VM:", err)
		os.Exit(1)
	}
	testVM = vm
	os.Exit(m.Run())
}

func TestParseBoolean(t *testing.T) {
	env := jni.NewEnv(testVM)
	defer env.Close()

	boolean, err := env.Class("java.lang.Boolean")
	if err != nil {
		t.Fatalf("Class: %v", err)
	}
	if err := boolean.Register(func(r *jni.Registrar) {
		r.StaticMethod("parse_boolean", []any{"string"}, "boolean")
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, err := boolean.CallStatic("parse_boolean", "true")
	if err != nil || got != true {
		t.Errorf("parse_boolean = %v, %v", got, err)
	}
}

func TestExceptions(t *testing.T) {
	env := jni.NewEnv(testVM)
	defer env.Close()

	if _, err := env.Class("com.example.Missing"); !errors.Is(err, jni.ErrClassNotFound) {
		t.Errorf("missing class: %v", err)
	}

	integer, err := env.Class("java.lang.Integer")
	if err != nil {
		t.Fatal(err)
	}
	err = integer.Register(func(r *jni.Registrar) {
		r.StaticMethod("no_such_thing", nil, "int")
	})
	if !errors.Is(err, jni.ErrNoSuchMethod) {
		t.Errorf("missing method: %v", err)
	}

	if err := integer.Register(func(r *jni.Registrar) {
		r.StaticMethod("parse_int", []any{"string"}, "int")
		r.StaticField("MAX_VALUE", "int")
	}); err != nil {
		t.Fatal(err)
	}
	_, err = integer.CallStatic("parse_int", "x")
	var je *jni.JavaException
	if !errors.As(err, &je) || je.ClassName != "java.lang.NumberFormatException" {
		t.Errorf("parse_int(x) = %v", err)
	}
	if v, err := integer.GetStatic("MAX_VALUE"); err != nil || v != int32(2147483647) {
		t.Errorf("MAX_VALUE = %v, %v", v, err)
	}
}

func TestObjects(t *testing.T) {
	env := jni.NewEnv(testVM)
	defer env.Close()

	sb, err := env.Class("java.lang.StringBuilder")
	if err != nil {
		t.Fatal(err)
	}
	if err := sb.Register(func(r *jni.Registrar) {
		r.Constructor()
		r.Method("append", []any{"string"}, "java.lang.StringBuilder")
		r.Method("length", nil, "int")
		r.Method("to_string", nil, "string")
	}); err != nil {
		t.Fatal(err)
	}
	b, err := sb.New()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Call("append", "héllo"); err != nil {
		t.Fatal(err)
	}
	if n, err := b.Call("length"); err != nil || n != int32(5) {
		t.Errorf("length = %v, %v", n, err)
	}
	if s, err := b.Call("to_string"); err != nil || s != "héllo" {
		t.Errorf("to_string = %v, %v", s, err)
	}
	cls, err := b.Class()
	if err != nil || cls.Name() != "java.lang.StringBuilder" {
		t.Errorf("Class = %v, %v", cls, err)
	}
}

func TestConcurrentCalls(t *testing.T) {
	done := make(chan error)
	for i := range 8 {
		go func() {
			env := jni.NewEnv(testVM)
			defer env.Close()
			math, err := env.Class("java.lang.Math")
			if err == nil {
				err = math.Register(func(r *jni.Registrar) {
					r.StaticMethod("max", []any{"int", "int"}, "int")
				})
			}
			if err == nil {
				var v any
				v, err = math.CallStatic("max", int32(i), int32(4))
				if err == nil && v != max(int32(i), 4) {
					err = fmt.Errorf("max(%d, 4) = %v", i, v)
				}
			}
			done <- err
		}()
	}
	for range 8 {
		if err := <-done; err != nil {
			t.Error(err)
		}
	}
}
