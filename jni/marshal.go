package jni

import (
	"fmt"
	"math"
	"reflect"
	"unicode/utf8"

	"github.com/chazu/jnibind/sig"
)

// marshalArgs validates args against a method's parameter list and converts
// each to the form the Bridge expects. Nothing crosses the bridge until every
// argument has passed.
func (e *Env) marshalArgs(types []sig.Type, classes []*Ref, args []any) ([]any, error) {
	if len(args) != len(types) {
		return nil, &ArgumentError{
			Reason: fmt.Sprintf("expected %d arguments, got %d", len(types), len(args)),
		}
	}
	out := make([]any, len(args))
	for i, a := range args {
		v, err := e.marshalArg(types[i], classes[i], i+1, a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *Env) marshalArg(t sig.Type, class *Ref, index int, v any) (any, error) {
	wrong := func(format string, args ...any) error {
		return &ArgumentError{Index: index, Type: t, Value: v, Reason: fmt.Sprintf(format, args...)}
	}

	switch t.Kind() {
	case sig.KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, wrong("expected boolean, got %T", v)
		}
		return b, nil

	case sig.KindByte:
		n, err := integerIn(v, math.MinInt8, math.MaxInt8)
		if err != nil {
			return nil, wrong("byte %s", err)
		}
		return int8(n), nil

	case sig.KindShort:
		n, err := integerIn(v, math.MinInt16, math.MaxInt16)
		if err != nil {
			return nil, wrong("short %s", err)
		}
		return int16(n), nil

	case sig.KindInt:
		n, err := integerIn(v, math.MinInt32, math.MaxInt32)
		if err != nil {
			return nil, wrong("int %s", err)
		}
		return int32(n), nil

	case sig.KindLong:
		n, err := integerIn(v, math.MinInt64, math.MaxInt64)
		if err != nil {
			return nil, wrong("long %s", err)
		}
		return n, nil

	case sig.KindChar:
		s, ok := v.(string)
		if !ok {
			return nil, wrong("expected a one-character string, got %T", v)
		}
		r, size := utf8.DecodeRuneInString(s)
		if size == 0 || size != len(s) || (r == utf8.RuneError && size == 1) || r > 0xFFFF {
			return nil, wrong("expected a single UTF-16 character, got %q", s)
		}
		return uint16(r), nil

	case sig.KindFloat:
		f, err := floating(v)
		if err != nil {
			return nil, wrong("float %s", err)
		}
		if math.Abs(f) > math.MaxFloat32 {
			return nil, wrong("float %v out of range", f)
		}
		return float32(f), nil

	case sig.KindDouble:
		f, err := floating(v)
		if err != nil {
			return nil, wrong("double %s", err)
		}
		return f, nil

	case sig.KindString:
		switch s := v.(type) {
		case nil:
			return nil, nil
		case string:
			return s, nil
		}
		return nil, wrong("expected string or nil, got %T", v)

	case sig.KindObject, sig.KindArray:
		var ref *Ref
		switch o := v.(type) {
		case nil:
			return nil, nil
		case *Object:
			if o == nil {
				return nil, nil
			}
			ref = o.ref
		case *Ref:
			if o == nil {
				return nil, nil
			}
			ref = o
		default:
			return nil, wrong("expected %s or nil, got %T", t, v)
		}
		if ref.released {
			return nil, fmt.Errorf("argument %d: %w: %s", index, ErrReleased, ref)
		}
		if class != nil {
			ok, err := e.bridge.IsInstanceOf(ref, class)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, wrong("%s is not an instance of %s", ref.qualifier, t)
			}
		}
		return ref, nil
	}
	return nil, wrong("unsupported parameter type %s", t)
}

// integerIn accepts Go integers of any width, including named types, that
// fit in [lo, hi]. Floating point values are rejected even when integral.
func integerIn(v any, lo, hi int64) (int64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < lo || n > hi {
			return 0, fmt.Errorf("%d out of range [%d, %d]", n, lo, hi)
		}
		return n, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n := rv.Uint()
		if n > uint64(hi) {
			return 0, fmt.Errorf("%d out of range [%d, %d]", n, lo, hi)
		}
		return int64(n), nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

// floating accepts Go floats and integers. NaN and infinities are rejected.
func floating(v any) (float64, error) {
	rv := reflect.ValueOf(v)
	var f float64
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		f = rv.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f = float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		f = float64(rv.Uint())
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not finite", f)
	}
	return f, nil
}
