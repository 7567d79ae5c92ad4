package jni

import (
	"errors"
	"fmt"

	"github.com/chazu/jnibind/sig"
)

// ErrBridge is the base kind of every error surfaced by the binding layer.
// All other kinds satisfy errors.Is(err, ErrBridge).
var ErrBridge = errors.New("jni")

var (
	// ErrClassNotFound reports a class lookup for a name the runtime does not
	// know.
	ErrClassNotFound = fmt.Errorf("%w: class not found", ErrBridge)

	// ErrNoSuchMethod reports a missing method, constructor or field.
	ErrNoSuchMethod = fmt.Errorf("%w: no such method", ErrBridge)

	// ErrWrongArgumentType reports an argument rejected before the call.
	ErrWrongArgumentType = fmt.Errorf("%w: wrong argument type", ErrBridge)

	// ErrJavaException reports a throwable raised by the managed runtime.
	ErrJavaException = fmt.Errorf("%w: java exception", ErrBridge)

	// ErrReleased reports use of a reference after it was released.
	ErrReleased = fmt.Errorf("%w: reference released", ErrBridge)
)

// ArgumentError describes an argument that failed local validation.
// Index is 1-based; 0 means the argument count itself was wrong.
type ArgumentError struct {
	Index  int
	Type   sig.Type
	Value  any
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Index == 0 {
		return fmt.Sprintf("%v: %s", ErrWrongArgumentType, e.Reason)
	}
	return fmt.Sprintf("%v: argument %d: %s", ErrWrongArgumentType, e.Index, e.Reason)
}

func (e *ArgumentError) Unwrap() error { return ErrWrongArgumentType }

// JavaException is a throwable raised on the far side of the bridge. The
// binding layer never interprets it.
type JavaException struct {
	ClassName string
	Message   string
}

func (e *JavaException) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v: %s", ErrJavaException, e.ClassName)
	}
	return fmt.Sprintf("%v: %s (%s)", ErrJavaException, e.Message, e.ClassName)
}

func (e *JavaException) Unwrap() error { return ErrJavaException }

// TranslateThrowable maps a throwable reported by the runtime to the error
// taxonomy. Lookup failures become ErrClassNotFound or ErrNoSuchMethod; every
// other throwable becomes a *JavaException.
func TranslateThrowable(className, message string) error {
	switch className {
	case "java.lang.ClassNotFoundException", "java.lang.NoClassDefFoundError":
		return fmt.Errorf("%w: %s", ErrClassNotFound, message)
	case "java.lang.NoSuchMethodError", "java.lang.NoSuchFieldError":
		return fmt.Errorf("%w: %s", ErrNoSuchMethod, message)
	}
	return &JavaException{ClassName: className, Message: message}
}

// ErrorKind names the taxonomy kind of err: "class_not_found",
// "no_such_method", "wrong_argument_type", "java_exception", "released",
// "bridge", or "" when err is not a binding error.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrClassNotFound):
		return "class_not_found"
	case errors.Is(err, ErrNoSuchMethod):
		return "no_such_method"
	case errors.Is(err, ErrWrongArgumentType):
		return "wrong_argument_type"
	case errors.Is(err, ErrJavaException):
		return "java_exception"
	case errors.Is(err, ErrReleased):
		return "released"
	case errors.Is(err, ErrBridge):
		return "bridge"
	}
	return ""
}

// ErrorOfKind rebuilds an error from a kind name produced by ErrorKind. It is
// used by transports that carry errors across process boundaries.
func ErrorOfKind(kind, message, className string) error {
	switch kind {
	case "class_not_found":
		return fmt.Errorf("%w: %s", ErrClassNotFound, message)
	case "no_such_method":
		return fmt.Errorf("%w: %s", ErrNoSuchMethod, message)
	case "wrong_argument_type":
		return fmt.Errorf("%w: %s", ErrWrongArgumentType, message)
	case "java_exception":
		return &JavaException{ClassName: className, Message: message}
	case "released":
		return fmt.Errorf("%w: %s", ErrReleased, message)
	}
	return fmt.Errorf("%w: %s", ErrBridge, message)
}
