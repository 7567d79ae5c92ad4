package jni

import "fmt"

// Ref is an opaque handle to a class or object living in the managed runtime.
//
// Only Bridge implementations mint Refs and read their tokens. A Ref is
// meaningless outside the bridge session that produced it: it must not be
// serialized, rebuilt from parts, or compared by anything but identity.
type Ref struct {
	token     any
	typeName  string
	qualifier string

	released bool
	frame    *Frame
}

// NewRef wraps a native token. typeName is a short tag such as "jclass" or
// "jobject"; qualifier is a diagnostic description, normally the runtime's
// toString of the referent.
func NewRef(token any, typeName, qualifier string) *Ref {
	return &Ref{token: token, typeName: typeName, qualifier: qualifier}
}

// Token returns the native token. For Bridge implementations only.
func (r *Ref) Token() any { return r.token }

// TypeName returns the reference's type tag.
func (r *Ref) TypeName() string { return r.typeName }

// Qualifier returns the diagnostic description of the referent.
func (r *Ref) Qualifier() string { return r.qualifier }

// Released reports whether the reference was handed back to the bridge.
func (r *Ref) Released() bool { return r.released }

func (r *Ref) String() string {
	if r == nil {
		return "<null>"
	}
	s := fmt.Sprintf("%s %s", r.typeName, r.qualifier)
	if r.released {
		s += " (released)"
	}
	return s
}

// MemberID is an opaque method or field identifier. Member ids stay valid
// for as long as their class is loaded and are never released.
type MemberID struct {
	token     any
	typeName  string
	qualifier string
}

// NewMemberID wraps a native method or field identifier. typeName is
// "jmethodID" or "jfieldID".
func NewMemberID(token any, typeName, qualifier string) *MemberID {
	return &MemberID{token: token, typeName: typeName, qualifier: qualifier}
}

// Token returns the native identifier. For Bridge implementations only.
func (m *MemberID) Token() any { return m.token }

// TypeName returns "jmethodID" or "jfieldID".
func (m *MemberID) TypeName() string { return m.typeName }

// Qualifier describes the member, e.g. "class java.lang.String static valueOf()".
func (m *MemberID) Qualifier() string { return m.qualifier }

func (m *MemberID) String() string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %s", m.typeName, m.qualifier)
}
