package jni

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// RuntimeName converts a host-side snake_case method name to the camelCase
// name the managed runtime uses: "value_of" becomes "valueOf". Names without
// underscores, including "<init>", are returned unchanged. Letters after the
// first in each segment keep their case, so "get_URL" becomes "getURL".
// Constant-style names with no lower-case letters, such as "MAX_VALUE", are
// also unchanged.
func RuntimeName(name string) string {
	if !strings.Contains(name, "_") || strings.IndexFunc(name, unicode.IsLower) < 0 {
		return name
	}
	parts := strings.Split(name, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(p)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(p[size:])
	}
	return b.String()
}

// HostName is the inverse of RuntimeName for generated bindings: "valueOf"
// becomes "value_of". Runs of capitals stay together, so "getURL" becomes
// "get_url".
func HostName(name string) string {
	if name == "" || strings.HasPrefix(name, "<") {
		return name
	}
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && !unicode.IsUpper(runes[i-1])
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || nextLower) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// slashName converts a dotted class name to the lookup form.
func slashName(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

// dottedName converts a lookup-form class name to the dotted form. Array
// descriptors keep their slash form ("[Ljava/lang/String;") whichever
// spelling they arrive in.
func dottedName(name string) string {
	if strings.HasPrefix(name, "[") {
		return slashName(name)
	}
	return strings.ReplaceAll(name, "/", ".")
}

// classNameFromQualifier extracts "a.b.C" from a class qualifier of the form
// "class a.b.C" or "interface a.b.C".
func classNameFromQualifier(q string) string {
	q = strings.TrimSpace(q)
	if i := strings.LastIndexByte(q, ' '); i >= 0 {
		q = q[i+1:]
	}
	return dottedName(q)
}
