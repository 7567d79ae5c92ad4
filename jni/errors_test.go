package jni_test

import (
	"errors"
	"testing"

	"github.com/chazu/jnibind/jni"
)

func TestTranslateThrowable(t *testing.T) {
	tests := []struct {
		class string
		want  error
	}{
		{"java.lang.ClassNotFoundException", jni.ErrClassNotFound},
		{"java.lang.NoClassDefFoundError", jni.ErrClassNotFound},
		{"java.lang.NoSuchMethodError", jni.ErrNoSuchMethod},
		{"java.lang.NoSuchFieldError", jni.ErrNoSuchMethod},
		{"java.lang.NumberFormatException", jni.ErrJavaException},
		{"java.net.MalformedURLException", jni.ErrJavaException},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			err := jni.TranslateThrowable(tt.class, "boom")
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
			if !errors.Is(err, jni.ErrBridge) {
				t.Errorf("%v is not a bridge error", err)
			}
		})
	}
}

func TestErrorKindRoundTrip(t *testing.T) {
	errs := []error{
		jni.TranslateThrowable("java.lang.ClassNotFoundException", "a"),
		jni.TranslateThrowable("java.lang.NoSuchMethodError", "b"),
		&jni.ArgumentError{Index: 2, Reason: "c"},
		&jni.JavaException{ClassName: "java.lang.IllegalStateException", Message: "d"},
		jni.ErrReleased,
		jni.ErrBridge,
	}
	for _, err := range errs {
		kind := jni.ErrorKind(err)
		var className string
		var je *jni.JavaException
		if errors.As(err, &je) {
			className = je.ClassName
		}
		back := jni.ErrorOfKind(kind, err.Error(), className)
		if jni.ErrorKind(back) != kind {
			t.Errorf("%v: kind %q came back as %q", err, kind, jni.ErrorKind(back))
		}
	}
	if jni.ErrorKind(errors.New("plain")) != "" {
		t.Error("plain error has a kind")
	}
}
