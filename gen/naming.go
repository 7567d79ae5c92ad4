package gen

import (
	"go/token"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ToPascalCase converts a string to PascalCase.
// "my-app" -> "MyApp", "parse_int" -> "ParseInt", "getHost" -> "GetHost",
// "MAX_VALUE" -> "MaxValue"
func ToPascalCase(s string) string {
	var words []string
	current := ""
	for i, r := range s {
		if r == '-' || r == '_' || r == '$' {
			if current != "" {
				words = append(words, current)
				current = ""
			}
			continue
		}
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := rune(s[i-1])
			if prev >= 'a' && prev <= 'z' {
				words = append(words, current)
				current = ""
			}
		}
		current += string(r)
	}
	if current != "" {
		words = append(words, current)
	}

	var result string
	for _, w := range words {
		if w == "" {
			continue
		}
		result += strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return result
}

// reservedNames lists identifiers the generated wrappers define themselves
// and that a member must not take.
var reservedNames = map[string]bool{
	"Class":  true,
	"Object": true,
	"String": true,
	"Bind":   true,
}

// IsReservedName reports whether name is taken by the generated wrapper
// types.
func IsReservedName(name string) bool {
	return reservedNames[name]
}

// TypeName returns the Go type name for a dotted class name: the simple
// name with its first letter upper-cased, nested classes joined with "_".
// "java.net.URL" -> "URL", "java.util.Map$Entry" -> "Map_Entry"
func TypeName(className string) string {
	simple := className
	if i := strings.LastIndex(className, "."); i >= 0 {
		simple = className[i+1:]
	}
	simple = strings.ReplaceAll(simple, "$", "_")
	return exported(simple)
}

// qualifiedTypeName prefixes TypeName with the class's package segment,
// for classes whose simple names collide: "java.awt.List" -> "AwtList".
func qualifiedTypeName(className string) string {
	parts := strings.Split(className, ".")
	if len(parts) < 2 {
		return TypeName(className)
	}
	return ToPascalCase(parts[len(parts)-2]) + TypeName(className)
}

func exported(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// names hands out unique Go identifiers within one type's method set.
type names struct {
	used map[string]bool
}

func newNames() *names {
	return &names{used: map[string]bool{}}
}

// take returns want, or want with "_" appended until it is free. renamed
// reports whether the name had to change.
func (n *names) take(want string) (name string, renamed bool) {
	name = want
	if name == "" || !token.IsIdentifier(name) {
		name = "X" + name
		renamed = true
	}
	for IsReservedName(name) || n.used[name] {
		name += "_"
		renamed = true
	}
	n.used[name] = true
	return name, renamed
}
