// Package sig converts symbolic type tags into the mangled type signatures
// used by the JVM native invocation interface, and back.
package sig

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the shape of a type tag.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBoolean
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindVoid
	KindString
	KindObject
	KindArray
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindBoolean: "boolean",
	KindByte:    "byte",
	KindChar:    "char",
	KindShort:   "short",
	KindInt:     "int",
	KindLong:    "long",
	KindFloat:   "float",
	KindDouble:  "double",
	KindVoid:    "void",
	KindString:  "string",
	KindObject:  "object",
	KindArray:   "array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// IsPrimitive reports whether values of this kind are passed as scalars.
func (k Kind) IsPrimitive() bool {
	return k >= KindBoolean && k <= KindDouble
}

// IsReference reports whether values of this kind are passed as object
// references (strings, class instances, arrays).
func (k Kind) IsReference() bool {
	return k == KindString || k == KindObject || k == KindArray
}

// StringClass is the runtime class behind the string tag.
const StringClass = "java.lang.String"

// ErrUnknownType is returned for symbolic tags outside the closed vocabulary.
var ErrUnknownType = errors.New("unknown type")

// ErrInvalidArrayType is returned for array tags that do not wrap exactly one
// element type.
var ErrInvalidArrayType = errors.New("invalid array type")

// Type is a type tag: a primitive, the string tag, a fully-qualified class,
// or an array of another tag. The zero Type is invalid.
type Type struct {
	kind  Kind
	class string // dotted name, KindObject only
	elem  *Type  // KindArray only
}

// Primitive tags.
var (
	Boolean = Type{kind: KindBoolean}
	Byte    = Type{kind: KindByte}
	Char    = Type{kind: KindChar}
	Short   = Type{kind: KindShort}
	Int     = Type{kind: KindInt}
	Long    = Type{kind: KindLong}
	Float   = Type{kind: KindFloat}
	Double  = Type{kind: KindDouble}
	Void    = Type{kind: KindVoid}
	String  = Type{kind: KindString}
)

var primitives = map[string]Type{
	"boolean": Boolean,
	"byte":    Byte,
	"char":    Char,
	"short":   Short,
	"int":     Int,
	"long":    Long,
	"float":   Float,
	"double":  Double,
	"void":    Void,
	"string":  String,
}

// Class returns the tag for a fully-qualified, dot-separated class name.
// java.lang.String is kept as a class tag; use String for the string tag.
func Class(name string) Type {
	return Type{kind: KindObject, class: name}
}

// ArrayOf returns the tag for an array of elem.
func ArrayOf(elem Type) Type {
	e := elem
	return Type{kind: KindArray, elem: &e}
}

// Kind returns the tag's kind.
func (t Type) Kind() Kind { return t.kind }

// ClassName returns the dotted class name of an object tag, "java.lang.String"
// for the string tag, and "" otherwise.
func (t Type) ClassName() string {
	switch t.kind {
	case KindObject:
		return t.class
	case KindString:
		return StringClass
	}
	return ""
}

// Elem returns the element tag of an array tag. It panics for other kinds.
func (t Type) Elem() Type {
	if t.kind != KindArray {
		panic("sig.Type.Elem: not an array type")
	}
	return *t.elem
}

// IsValid reports whether t was built by one of the constructors.
func (t Type) IsValid() bool { return t.kind != KindInvalid }

// IsPrimitive reports whether t is one of the eight scalar tags.
func (t Type) IsPrimitive() bool { return t.kind.IsPrimitive() }

// IsReference reports whether values of t are object references.
func (t Type) IsReference() bool { return t.kind.IsReference() }

// Equal reports whether two tags describe the same type.
func (t Type) Equal(o Type) bool {
	if t.kind != o.kind {
		return false
	}
	switch t.kind {
	case KindObject:
		return t.class == o.class
	case KindArray:
		return t.elem.Equal(*o.elem)
	}
	return true
}

// String renders the tag in the symbolic vocabulary: "int",
// "java.net.URL", "[int]".
func (t Type) String() string {
	switch t.kind {
	case KindObject:
		return t.class
	case KindArray:
		return "[" + t.elem.String() + "]"
	}
	return t.kind.String()
}

// Signature returns the wire signature of t.
func (t Type) Signature() string {
	return Signature(t)
}

// LookupName returns the name the invocation interface's class lookup
// expects for t: slash-separated for classes, the descriptor for arrays.
func (t Type) LookupName() string {
	switch t.kind {
	case KindObject:
		return strings.ReplaceAll(t.class, ".", "/")
	case KindString:
		return "java/lang/String"
	case KindArray:
		return Signature(t)
	}
	return ""
}
