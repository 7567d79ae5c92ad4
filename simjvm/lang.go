package simjvm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf16"
)

const (
	sigString = "Ljava/lang/String;"
	sigObject = "Ljava/lang/Object;"
)

func method(name, signature string, impl func(*Call) (any, error)) Method {
	return Method{Name: name, Signature: signature, Impl: impl}
}

func static(name, signature string, impl func(*Call) (any, error)) Method {
	return Method{Name: name, Signature: signature, Static: true, Impl: impl}
}

func ctor(signature string, impl func(*Call) (any, error)) Method {
	return Method{Name: "<init>", Signature: signature, Impl: impl}
}

func constant(name, signature string, v any) Field {
	return Field{Name: name, Signature: signature, Static: true, Value: v}
}

// builtinClasses lists the standard class table in definition order;
// superclasses come first.
func builtinClasses() []ClassDef {
	defs := []ClassDef{objectClass(), stringClass(), booleanClass(), characterClass()}
	defs = append(defs, ClassDef{Name: "java.lang.Number"})
	defs = append(defs, numberClasses()...)
	defs = append(defs, mathClass(), stringBuilderClass(), threadClass())
	defs = append(defs, throwableClasses()...)
	defs = append(defs, urlClass(), fileClass(), arraysClass())
	return defs
}

func objectClass() ClassDef {
	return ClassDef{
		Name: "java.lang.Object",
		Constructors: []Method{
			ctor("()V", func(c *Call) (any, error) { return nil, nil }),
		},
		Methods: []Method{
			method("toString", "()"+sigString, func(c *Call) (any, error) {
				return fmt.Sprintf("%s@%x", c.This.Class.Name, c.This.id), nil
			}),
			method("hashCode", "()I", func(c *Call) (any, error) {
				return int32(c.This.id), nil
			}),
			method("equals", "("+sigObject+")Z", func(c *Call) (any, error) {
				return c.Object(0) == c.This, nil
			}),
		},
	}
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

func javaHash(s string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(u)
	}
	return h
}

func stringClass() ClassDef {
	str := func(f func(s string) any) func(*Call) (any, error) {
		return func(c *Call) (any, error) { return f(c.Str()), nil }
	}
	arg := func(c *Call, i int) (string, error) {
		s, ok := c.String(i)
		if !ok {
			return "", Throw("java.lang.NullPointerException", fmt.Sprintf("argument %d is null", i+1))
		}
		return s, nil
	}
	return ClassDef{
		Name: "java.lang.String",
		Constructors: []Method{
			ctor("()V", func(c *Call) (any, error) {
				c.This.Value = ""
				return nil, nil
			}),
			ctor("("+sigString+")V", func(c *Call) (any, error) {
				s, err := arg(c, 0)
				c.This.Value = s
				return nil, err
			}),
		},
		Methods: []Method{
			method("length", "()I", str(func(s string) any { return int32(utf16Len(s)) })),
			method("isEmpty", "()Z", str(func(s string) any { return s == "" })),
			method("toUpperCase", "()"+sigString, str(func(s string) any { return strings.ToUpper(s) })),
			method("toLowerCase", "()"+sigString, str(func(s string) any { return strings.ToLower(s) })),
			method("trim", "()"+sigString, str(func(s string) any { return strings.Trim(s, " \t\n\r\f\v") })),
			method("toString", "()"+sigString, str(func(s string) any { return s })),
			method("hashCode", "()I", str(func(s string) any { return javaHash(s) })),
			method("charAt", "(I)C", func(c *Call) (any, error) {
				units := utf16.Encode([]rune(c.Str()))
				i := c.Int(0)
				if i < 0 || int(i) >= len(units) {
					return nil, Throw("java.lang.StringIndexOutOfBoundsException",
						fmt.Sprintf("index %d, length %d", i, len(units)))
				}
				return units[i], nil
			}),
			method("concat", "("+sigString+")"+sigString, func(c *Call) (any, error) {
				s, err := arg(c, 0)
				return c.Str() + s, err
			}),
			method("startsWith", "("+sigString+")Z", func(c *Call) (any, error) {
				s, err := arg(c, 0)
				return strings.HasPrefix(c.Str(), s), err
			}),
			method("indexOf", "("+sigString+")I", func(c *Call) (any, error) {
				s, err := arg(c, 0)
				i := strings.Index(c.Str(), s)
				if i > 0 {
					i = utf16Len(c.Str()[:i])
				}
				return int32(i), err
			}),
			method("equals", "("+sigObject+")Z", func(c *Call) (any, error) {
				o := c.Object(0)
				if o == nil || o.Class != c.This.Class {
					return false, nil
				}
				return o.Value == c.This.Value, nil
			}),
			method("split", "("+sigString+")[Ljava/lang/String;", func(c *Call) (any, error) {
				sep, err := arg(c, 0)
				if err != nil {
					return nil, err
				}
				parts := strings.Split(c.Str(), sep)
				for len(parts) > 1 && parts[len(parts)-1] == "" {
					parts = parts[:len(parts)-1]
				}
				elems := make([]any, len(parts))
				for i, p := range parts {
					elems[i] = c.Runtime.NewString(p)
				}
				return c.Runtime.NewInstance(c.Runtime.arrayClass("[Ljava/lang/String;"), elems), nil
			}),
			static("valueOf", "(I)"+sigString, func(c *Call) (any, error) {
				return strconv.FormatInt(int64(c.Int(0)), 10), nil
			}),
			static("valueOf", "(J)"+sigString, func(c *Call) (any, error) {
				return strconv.FormatInt(c.Long(0), 10), nil
			}),
			static("valueOf", "(Z)"+sigString, func(c *Call) (any, error) {
				return strconv.FormatBool(c.Bool(0)), nil
			}),
			static("valueOf", "(C)"+sigString, func(c *Call) (any, error) {
				return string(utf16.Decode([]uint16{c.Char(0)})), nil
			}),
			static("valueOf", "(D)"+sigString, func(c *Call) (any, error) {
				return formatDouble(c.Double(0)), nil
			}),
		},
	}
}

// formatDouble approximates Double.toString: integral values keep a
// trailing ".0" and large or small magnitudes use E notation.
func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-3 || abs >= 1e7) {
		s := strconv.FormatFloat(f, 'E', -1, 64)
		mant, exp, _ := strings.Cut(s, "E")
		if !strings.Contains(mant, ".") {
			mant += ".0"
		}
		return mant + "E" + strings.TrimPrefix(exp, "+")
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func booleanClass() ClassDef {
	return ClassDef{
		Name: "java.lang.Boolean",
		Constructors: []Method{
			ctor("(Z)V", func(c *Call) (any, error) {
				c.This.Value = c.Bool(0)
				return nil, nil
			}),
		},
		Methods: []Method{
			static("parseBoolean", "("+sigString+")Z", func(c *Call) (any, error) {
				s, _ := c.String(0)
				return strings.EqualFold(s, "true"), nil
			}),
			static("valueOf", "(Z)Ljava/lang/Boolean;", func(c *Call) (any, error) {
				return c.Runtime.NewInstance(c.Class, c.Bool(0)), nil
			}),
			static("toString", "(Z)"+sigString, func(c *Call) (any, error) {
				return strconv.FormatBool(c.Bool(0)), nil
			}),
			method("booleanValue", "()Z", func(c *Call) (any, error) {
				v, _ := c.This.Value.(bool)
				return v, nil
			}),
			method("toString", "()"+sigString, func(c *Call) (any, error) {
				return fmt.Sprint(c.This.Value), nil
			}),
		},
	}
}

func characterClass() ClassDef {
	return ClassDef{
		Name: "java.lang.Character",
		Methods: []Method{
			static("isDigit", "(C)Z", func(c *Call) (any, error) {
				return unicode.IsDigit(rune(c.Char(0))), nil
			}),
			static("isLetter", "(C)Z", func(c *Call) (any, error) {
				return unicode.IsLetter(rune(c.Char(0))), nil
			}),
			static("toUpperCase", "(C)C", func(c *Call) (any, error) {
				return uint16(unicode.ToUpper(rune(c.Char(0)))), nil
			}),
			static("getNumericValue", "(C)I", func(c *Call) (any, error) {
				r := rune(c.Char(0))
				switch {
				case r >= '0' && r <= '9':
					return int32(r - '0'), nil
				case unicode.IsLetter(r) && r < 128:
					return int32(unicode.ToLower(r)-'a') + 10, nil
				}
				return int32(-1), nil
			}),
		},
	}
}

// parse wraps a strconv parse in NumberFormatException semantics.
func parse[T any](c *Call, f func(string) (T, error)) (T, error) {
	var zero T
	s, ok := c.String(0)
	if !ok {
		return zero, Throw("java.lang.NumberFormatException", "Cannot parse null string: null")
	}
	v, err := f(s)
	if err != nil {
		return zero, Throw("java.lang.NumberFormatException", fmt.Sprintf("For input string: %q", s))
	}
	return v, nil
}

func parseInt(bits int) func(string) (int64, error) {
	return func(s string) (int64, error) { return strconv.ParseInt(s, 10, bits) }
}

func numberClasses() []ClassDef {
	value := func(c *Call) int64 {
		switch v := c.This.Value.(type) {
		case int32:
			return int64(v)
		case int64:
			return v
		}
		return 0
	}
	numberMethods := []Method{
		method("intValue", "()I", func(c *Call) (any, error) { return int32(value(c)), nil }),
		method("longValue", "()J", func(c *Call) (any, error) { return value(c), nil }),
		method("doubleValue", "()D", func(c *Call) (any, error) { return float64(value(c)), nil }),
		method("toString", "()"+sigString, func(c *Call) (any, error) {
			return strconv.FormatInt(value(c), 10), nil
		}),
		method("hashCode", "()I", func(c *Call) (any, error) {
			v := value(c)
			return int32(v ^ (v >> 32)), nil
		}),
	}

	integer := ClassDef{
		Name:  "java.lang.Integer",
		Super: "java.lang.Number",
		Constructors: []Method{
			ctor("(I)V", func(c *Call) (any, error) {
				c.This.Value = c.Int(0)
				return nil, nil
			}),
		},
		Methods: append([]Method{
			static("parseInt", "("+sigString+")I", func(c *Call) (any, error) {
				v, err := parse(c, parseInt(32))
				return int32(v), err
			}),
			static("parseInt", "("+sigString+"I)I", func(c *Call) (any, error) {
				radix := int(c.Int(1))
				if radix < 2 || radix > 36 {
					return nil, Throw("java.lang.NumberFormatException", fmt.Sprintf("radix %d out of range", radix))
				}
				v, err := parse(c, func(s string) (int64, error) { return strconv.ParseInt(s, radix, 32) })
				return int32(v), err
			}),
			static("valueOf", "(I)Ljava/lang/Integer;", func(c *Call) (any, error) {
				return c.Runtime.NewInstance(c.Class, c.Int(0)), nil
			}),
			static("toString", "(I)"+sigString, func(c *Call) (any, error) {
				return strconv.FormatInt(int64(c.Int(0)), 10), nil
			}),
			static("toHexString", "(I)"+sigString, func(c *Call) (any, error) {
				return strconv.FormatUint(uint64(uint32(c.Int(0))), 16), nil
			}),
			static("sum", "(II)I", func(c *Call) (any, error) { return c.Int(0) + c.Int(1), nil }),
		}, numberMethods...),
		Fields: []Field{
			constant("MAX_VALUE", "I", int32(math.MaxInt32)),
			constant("MIN_VALUE", "I", int32(math.MinInt32)),
		},
	}

	long := ClassDef{
		Name:  "java.lang.Long",
		Super: "java.lang.Number",
		Constructors: []Method{
			ctor("(J)V", func(c *Call) (any, error) {
				c.This.Value = c.Long(0)
				return nil, nil
			}),
		},
		Methods: append([]Method{
			static("parseLong", "("+sigString+")J", func(c *Call) (any, error) {
				return parse(c, parseInt(64))
			}),
			static("valueOf", "(J)Ljava/lang/Long;", func(c *Call) (any, error) {
				return c.Runtime.NewInstance(c.Class, c.Long(0)), nil
			}),
		}, numberMethods...),
		Fields: []Field{
			constant("MAX_VALUE", "J", int64(math.MaxInt64)),
			constant("MIN_VALUE", "J", int64(math.MinInt64)),
		},
	}

	byteClass := ClassDef{
		Name:  "java.lang.Byte",
		Super: "java.lang.Number",
		Methods: []Method{
			static("parseByte", "("+sigString+")B", func(c *Call) (any, error) {
				v, err := parse(c, parseInt(8))
				return int8(v), err
			}),
		},
		Fields: []Field{
			constant("MAX_VALUE", "B", int8(math.MaxInt8)),
			constant("MIN_VALUE", "B", int8(math.MinInt8)),
		},
	}

	short := ClassDef{
		Name:  "java.lang.Short",
		Super: "java.lang.Number",
		Methods: []Method{
			static("parseShort", "("+sigString+")S", func(c *Call) (any, error) {
				v, err := parse(c, parseInt(16))
				return int16(v), err
			}),
		},
		Fields: []Field{
			constant("MAX_VALUE", "S", int16(math.MaxInt16)),
		},
	}

	float := ClassDef{
		Name:  "java.lang.Float",
		Super: "java.lang.Number",
		Methods: []Method{
			static("parseFloat", "("+sigString+")F", func(c *Call) (any, error) {
				v, err := parse(c, func(s string) (float64, error) {
					return strconv.ParseFloat(strings.TrimSpace(s), 32)
				})
				return float32(v), err
			}),
		},
		Fields: []Field{
			constant("MAX_VALUE", "F", float32(math.MaxFloat32)),
		},
	}

	double := ClassDef{
		Name:  "java.lang.Double",
		Super: "java.lang.Number",
		Methods: []Method{
			static("parseDouble", "("+sigString+")D", func(c *Call) (any, error) {
				return parse(c, func(s string) (float64, error) {
					return strconv.ParseFloat(strings.TrimSpace(s), 64)
				})
			}),
			static("isNaN", "(D)Z", func(c *Call) (any, error) { return math.IsNaN(c.Double(0)), nil }),
			static("toString", "(D)"+sigString, func(c *Call) (any, error) {
				return formatDouble(c.Double(0)), nil
			}),
		},
		Fields: []Field{
			constant("MAX_VALUE", "D", math.MaxFloat64),
		},
	}

	return []ClassDef{integer, long, byteClass, short, float, double}
}

func mathClass() ClassDef {
	return ClassDef{
		Name: "java.lang.Math",
		Methods: []Method{
			static("abs", "(I)I", func(c *Call) (any, error) {
				v := c.Int(0)
				if v < 0 {
					v = -v
				}
				return v, nil
			}),
			static("abs", "(J)J", func(c *Call) (any, error) {
				v := c.Long(0)
				if v < 0 {
					v = -v
				}
				return v, nil
			}),
			static("abs", "(F)F", func(c *Call) (any, error) {
				return float32(math.Abs(float64(c.Float(0)))), nil
			}),
			static("abs", "(D)D", func(c *Call) (any, error) { return math.Abs(c.Double(0)), nil }),
			static("max", "(II)I", func(c *Call) (any, error) { return max(c.Int(0), c.Int(1)), nil }),
			static("max", "(JJ)J", func(c *Call) (any, error) { return max(c.Long(0), c.Long(1)), nil }),
			static("max", "(DD)D", func(c *Call) (any, error) { return math.Max(c.Double(0), c.Double(1)), nil }),
			static("min", "(II)I", func(c *Call) (any, error) { return min(c.Int(0), c.Int(1)), nil }),
			static("sqrt", "(D)D", func(c *Call) (any, error) { return math.Sqrt(c.Double(0)), nil }),
			static("pow", "(DD)D", func(c *Call) (any, error) { return math.Pow(c.Double(0), c.Double(1)), nil }),
			static("floorMod", "(II)I", func(c *Call) (any, error) {
				x, y := c.Int(0), c.Int(1)
				if y == 0 {
					return nil, Throw("java.lang.ArithmeticException", "/ by zero")
				}
				m := x % y
				if m != 0 && (m < 0) != (y < 0) {
					m += y
				}
				return m, nil
			}),
			static("addExact", "(II)I", func(c *Call) (any, error) {
				s := int64(c.Int(0)) + int64(c.Int(1))
				if s > math.MaxInt32 || s < math.MinInt32 {
					return nil, Throw("java.lang.ArithmeticException", "integer overflow")
				}
				return int32(s), nil
			}),
		},
		Fields: []Field{
			constant("PI", "D", math.Pi),
			constant("E", "D", math.E),
		},
	}
}

func stringBuilderClass() ClassDef {
	const self = "Ljava/lang/StringBuilder;"
	appendWith := func(format func(c *Call) string) func(*Call) (any, error) {
		return func(c *Call) (any, error) {
			s, _ := c.This.Value.(string)
			c.This.Value = s + format(c)
			return c.This, nil
		}
	}
	return ClassDef{
		Name: "java.lang.StringBuilder",
		Constructors: []Method{
			ctor("()V", func(c *Call) (any, error) {
				c.This.Value = ""
				return nil, nil
			}),
			ctor("("+sigString+")V", func(c *Call) (any, error) {
				s, ok := c.String(0)
				if !ok {
					return nil, Throw("java.lang.NullPointerException", "")
				}
				c.This.Value = s
				return nil, nil
			}),
		},
		Methods: []Method{
			method("append", "("+sigString+")"+self, appendWith(func(c *Call) string {
				if s, ok := c.String(0); ok {
					return s
				}
				return "null"
			})),
			method("append", "(I)"+self, appendWith(func(c *Call) string {
				return strconv.FormatInt(int64(c.Int(0)), 10)
			})),
			method("append", "(J)"+self, appendWith(func(c *Call) string {
				return strconv.FormatInt(c.Long(0), 10)
			})),
			method("append", "(C)"+self, appendWith(func(c *Call) string {
				return string(utf16.Decode([]uint16{c.Char(0)}))
			})),
			method("append", "(Z)"+self, appendWith(func(c *Call) string {
				return strconv.FormatBool(c.Bool(0))
			})),
			method("append", "(D)"+self, appendWith(func(c *Call) string {
				return formatDouble(c.Double(0))
			})),
			method("append", "("+sigObject+")"+self, appendWith(func(c *Call) string {
				o := c.Object(0)
				if o == nil {
					return "null"
				}
				return c.Runtime.describe(o)
			})),
			method("length", "()I", func(c *Call) (any, error) {
				return int32(utf16Len(c.Str())), nil
			}),
			method("reverse", "()"+self, func(c *Call) (any, error) {
				r := []rune(c.Str())
				for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
					r[i], r[j] = r[j], r[i]
				}
				c.This.Value = string(r)
				return c.This, nil
			}),
			method("setLength", "(I)V", func(c *Call) (any, error) {
				n := int(c.Int(0))
				units := utf16.Encode([]rune(c.Str()))
				if n < 0 {
					return nil, Throw("java.lang.StringIndexOutOfBoundsException", fmt.Sprintf("length %d", n))
				}
				for len(units) < n {
					units = append(units, 0)
				}
				c.This.Value = string(utf16.Decode(units[:n]))
				return nil, nil
			}),
			method("toString", "()"+sigString, func(c *Call) (any, error) {
				return c.Str(), nil
			}),
		},
	}
}

type thread struct {
	id   int64
	name string
}

func threadClass() ClassDef {
	var main *Instance
	current := func(c *Call) *Instance {
		c.Runtime.mu.Lock()
		defer c.Runtime.mu.Unlock()
		if main == nil {
			c.Runtime.nextID++
			main = &Instance{Class: c.Class, Value: &thread{id: 1, name: "main"}, Fields: map[string]any{}, id: c.Runtime.nextID}
		}
		return main
	}
	state := func(c *Call) *thread {
		t, _ := c.This.Value.(*thread)
		if t == nil {
			t = &thread{}
			c.This.Value = t
		}
		return t
	}
	return ClassDef{
		Name: "java.lang.Thread",
		Constructors: []Method{
			ctor("("+sigString+")V", func(c *Call) (any, error) {
				name, _ := c.String(0)
				c.This.Value = &thread{id: int64(c.This.id), name: name}
				return nil, nil
			}),
		},
		Methods: []Method{
			static("currentThread", "()Ljava/lang/Thread;", func(c *Call) (any, error) {
				return current(c), nil
			}),
			static("sleep", "(J)V", func(c *Call) (any, error) {
				ms := c.Long(0)
				if ms < 0 {
					return nil, Throw("java.lang.IllegalArgumentException", "timeout value is negative")
				}
				time.Sleep(time.Duration(ms) * time.Millisecond)
				return nil, nil
			}),
			method("getName", "()"+sigString, func(c *Call) (any, error) { return state(c).name, nil }),
			method("setName", "("+sigString+")V", func(c *Call) (any, error) {
				name, ok := c.String(0)
				if !ok {
					return nil, Throw("java.lang.NullPointerException", "name cannot be null")
				}
				state(c).name = name
				return nil, nil
			}),
			method("getId", "()J", func(c *Call) (any, error) { return state(c).id, nil }),
			method("toString", "()"+sigString, func(c *Call) (any, error) {
				t := state(c)
				return fmt.Sprintf("Thread[#%d,%s,5,main]", t.id, t.name), nil
			}),
		},
	}
}

// throwableClasses defines the exception hierarchy the runtime raises.
func throwableClasses() []ClassDef {
	message := func(c *Call) any {
		if s, ok := c.This.Value.(string); ok {
			return s
		}
		return nil
	}
	ctors := []Method{
		ctor("()V", func(c *Call) (any, error) { return nil, nil }),
		ctor("("+sigString+")V", func(c *Call) (any, error) {
			if s, ok := c.String(0); ok {
				c.This.Value = s
			}
			return nil, nil
		}),
	}
	defs := []ClassDef{{
		Name:         "java.lang.Throwable",
		Constructors: ctors,
		Methods: []Method{
			method("getMessage", "()"+sigString, func(c *Call) (any, error) { return message(c), nil }),
			method("toString", "()"+sigString, func(c *Call) (any, error) {
				if m, ok := message(c).(string); ok {
					return c.This.Class.Name + ": " + m, nil
				}
				return c.This.Class.Name, nil
			}),
		},
	}}
	hierarchy := [][2]string{
		{"java.lang.Exception", "java.lang.Throwable"},
		{"java.lang.Error", "java.lang.Throwable"},
		{"java.lang.RuntimeException", "java.lang.Exception"},
		{"java.lang.IllegalArgumentException", "java.lang.RuntimeException"},
		{"java.lang.IllegalStateException", "java.lang.RuntimeException"},
		{"java.lang.NumberFormatException", "java.lang.IllegalArgumentException"},
		{"java.lang.ArithmeticException", "java.lang.RuntimeException"},
		{"java.lang.NullPointerException", "java.lang.RuntimeException"},
		{"java.lang.IndexOutOfBoundsException", "java.lang.RuntimeException"},
		{"java.lang.StringIndexOutOfBoundsException", "java.lang.IndexOutOfBoundsException"},
		{"java.lang.ReflectiveOperationException", "java.lang.Exception"},
		{"java.lang.ClassNotFoundException", "java.lang.ReflectiveOperationException"},
		{"java.lang.LinkageError", "java.lang.Error"},
		{"java.lang.NoClassDefFoundError", "java.lang.LinkageError"},
		{"java.lang.IncompatibleClassChangeError", "java.lang.LinkageError"},
		{"java.lang.NoSuchMethodError", "java.lang.IncompatibleClassChangeError"},
		{"java.lang.NoSuchFieldError", "java.lang.IncompatibleClassChangeError"},
		{"java.io.IOException", "java.lang.Exception"},
		{"java.net.MalformedURLException", "java.io.IOException"},
	}
	for _, h := range hierarchy {
		defs = append(defs, ClassDef{Name: h[0], Super: h[1], Constructors: ctors})
	}
	return defs
}
