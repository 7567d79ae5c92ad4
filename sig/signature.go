package sig

import (
	"fmt"
	"strings"
	"unicode"
)

var letters = map[Kind]byte{
	KindBoolean: 'Z',
	KindByte:    'B',
	KindChar:    'C',
	KindShort:   'S',
	KindInt:     'I',
	KindLong:    'J',
	KindFloat:   'F',
	KindDouble:  'D',
	KindVoid:    'V',
}

// Signature returns the wire signature of a single type tag, e.g. "I",
// "Ljava/lang/String;" or "[J". Invalid tags render as "".
func Signature(t Type) string {
	var b strings.Builder
	writeSignature(&b, t)
	return b.String()
}

// MethodSignature returns "(<args>)<return>" for the given tags.
func MethodSignature(args []Type, ret Type) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, a := range args {
		writeSignature(&b, a)
	}
	b.WriteByte(')')
	writeSignature(&b, ret)
	return b.String()
}

func writeSignature(b *strings.Builder, t Type) {
	switch t.kind {
	case KindString:
		b.WriteString("Ljava/lang/String;")
	case KindObject:
		b.WriteByte('L')
		b.WriteString(strings.ReplaceAll(t.class, ".", "/"))
		b.WriteByte(';')
	case KindArray:
		b.WriteByte('[')
		writeSignature(b, *t.elem)
	default:
		if c, ok := letters[t.kind]; ok {
			b.WriteByte(c)
		}
	}
}

// ---------------------------------------------------------------------------
// Symbolic tags
// ---------------------------------------------------------------------------

// Parse converts a symbolic tag into a Type. Accepted forms:
//   - a Type (returned as is)
//   - one of the primitive names: boolean byte char short int long float
//     double void string
//   - a dotted, fully-qualified class name such as "java.net.URL"
//   - a single-element slice wrapping another symbolic tag, meaning an array
//
// Slices with any other length fail with ErrInvalidArrayType; everything else
// fails with ErrUnknownType.
func Parse(v any) (Type, error) {
	switch x := v.(type) {
	case Type:
		if !x.IsValid() {
			return Type{}, fmt.Errorf("%w: invalid tag", ErrUnknownType)
		}
		return x, nil
	case string:
		return parseName(x)
	case []any:
		return parseArray(len(x), func() any { return x[0] })
	case []string:
		return parseArray(len(x), func() any { return x[0] })
	case []Type:
		return parseArray(len(x), func() any { return x[0] })
	}
	return Type{}, fmt.Errorf("%w: %v (%T)", ErrUnknownType, v, v)
}

// MustParse is Parse for tags known to be valid. It panics on error.
func MustParse(v any) Type {
	t, err := Parse(v)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseList parses each element of vs with Parse.
func ParseList(vs []any) ([]Type, error) {
	out := make([]Type, len(vs))
	for i, v := range vs {
		t, err := Parse(v)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = t
	}
	return out, nil
}

// MethodSignatureOf parses symbolic argument and return tags and returns the
// method signature.
func MethodSignatureOf(args []any, ret any) (string, error) {
	argTypes, err := ParseList(args)
	if err != nil {
		return "", err
	}
	retType, err := Parse(ret)
	if err != nil {
		return "", fmt.Errorf("return type: %w", err)
	}
	return MethodSignature(argTypes, retType), nil
}

// ParsePrinted parses a tag in the form produced by Type.String, where
// arrays are written with brackets: "[int]", "[[java.lang.String]]".
func ParsePrinted(s string) (Type, error) {
	depth := 0
	for strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
		depth++
	}
	t, err := parseName(s)
	if err != nil {
		return Type{}, err
	}
	for range depth {
		if t.kind == KindVoid {
			return Type{}, fmt.Errorf("%w: array of void", ErrInvalidArrayType)
		}
		t = ArrayOf(t)
	}
	return t, nil
}

// ValidateArgs reports an error if any tag cannot be used as a parameter.
func ValidateArgs(args []Type) error {
	for i, a := range args {
		if !a.IsValid() {
			return fmt.Errorf("argument %d: %w: invalid tag", i+1, ErrUnknownType)
		}
		if a.kind == KindVoid {
			return fmt.Errorf("argument %d: %w: void is not a parameter type", i+1, ErrUnknownType)
		}
	}
	return nil
}

func parseName(s string) (Type, error) {
	if t, ok := primitives[s]; ok {
		return t, nil
	}
	if !IsClassName(s) {
		return Type{}, fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return Class(s), nil
}

func parseArray(n int, first func() any) (Type, error) {
	if n != 1 {
		return Type{}, fmt.Errorf("%w: array tags wrap exactly one element type, got %d", ErrInvalidArrayType, n)
	}
	elem, err := Parse(first())
	if err != nil {
		return Type{}, err
	}
	if elem.kind == KindVoid {
		return Type{}, fmt.Errorf("%w: array of void", ErrInvalidArrayType)
	}
	return ArrayOf(elem), nil
}

// IsClassName reports whether s is a dotted sequence of Java identifiers.
func IsClassName(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			switch {
			case r == '_' || r == '$' || unicode.IsLetter(r):
			case i > 0 && unicode.IsDigit(r):
			default:
				return false
			}
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Descriptors
// ---------------------------------------------------------------------------

// ParseDescriptor decodes a single field descriptor such as "I",
// "Ljava/lang/String;" or "[[J". Ljava/lang/String; decodes to the string tag.
func ParseDescriptor(desc string) (Type, error) {
	t, n, err := parseDescriptorAt(desc, 0)
	if err != nil {
		return Type{}, err
	}
	if n != len(desc) {
		return Type{}, fmt.Errorf("%w: trailing data in descriptor %q", ErrUnknownType, desc)
	}
	return t, nil
}

// ParseMethodDescriptor decodes "(<args>)<return>".
func ParseMethodDescriptor(desc string) ([]Type, Type, error) {
	if len(desc) == 0 || desc[0] != '(' {
		return nil, Type{}, fmt.Errorf("%w: method descriptor %q must start with '('", ErrUnknownType, desc)
	}
	var args []Type
	i := 1
	for {
		if i >= len(desc) {
			return nil, Type{}, fmt.Errorf("%w: unterminated method descriptor %q", ErrUnknownType, desc)
		}
		if desc[i] == ')' {
			i++
			break
		}
		t, next, err := parseDescriptorAt(desc, i)
		if err != nil {
			return nil, Type{}, err
		}
		args = append(args, t)
		i = next
	}
	ret, err := ParseDescriptor(desc[i:])
	if err != nil {
		return nil, Type{}, err
	}
	return args, ret, nil
}

func parseDescriptorAt(desc string, i int) (Type, int, error) {
	if i >= len(desc) {
		return Type{}, i, fmt.Errorf("%w: truncated descriptor %q", ErrUnknownType, desc)
	}
	c := desc[i]
	for k, letter := range letters {
		if letter == c {
			return Type{kind: k}, i + 1, nil
		}
	}
	switch c {
	case 'L':
		end := strings.IndexByte(desc[i:], ';')
		if end < 0 {
			return Type{}, i, fmt.Errorf("%w: unterminated class in descriptor %q", ErrUnknownType, desc)
		}
		name := strings.ReplaceAll(desc[i+1:i+end], "/", ".")
		if !IsClassName(name) {
			return Type{}, i, fmt.Errorf("%w: bad class name in descriptor %q", ErrUnknownType, desc)
		}
		if name == StringClass {
			return String, i + end + 1, nil
		}
		return Class(name), i + end + 1, nil
	case '[':
		elem, next, err := parseDescriptorAt(desc, i+1)
		if err != nil {
			return Type{}, i, err
		}
		if elem.kind == KindVoid {
			return Type{}, i, fmt.Errorf("%w: array of void in %q", ErrInvalidArrayType, desc)
		}
		return ArrayOf(elem), next, nil
	}
	return Type{}, i, fmt.Errorf("%w: unexpected %q in descriptor %q", ErrUnknownType, c, desc)
}
