package gen

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/chazu/jnibind/manifest"
)

const declarations = `
[project]
package = "jnet"

[[class]]
name = "java.net.URL"

[[class.constructor]]
args = ["string"]

[[class.constructor]]
args = ["string", "string", "int", "string"]

[[class.method]]
name = "get_host"
returns = "string"

[[class.method]]
name = "get_port"
returns = "int"

[[class.method]]
name = "same_file"
args = ["java.net.URL"]
returns = "boolean"

[[class]]
name = "java.lang.StringBuilder"

[[class.constructor]]

[[class.method]]
name = "append"
args = ["string"]
returns = "java.lang.StringBuilder"

[[class.method]]
name = "set_length"
args = ["int"]

[[class]]
name = "java.lang.Integer"

[[class.static_method]]
name = "parse_int"
args = ["string"]
returns = "int"

[[class.static_method]]
name = "to_array"
args = [["long"]]
returns = ["int"]

[[class.field]]
name = "MAX_VALUE"
type = "int"
static = true
`

func generate(t *testing.T, src string) (*Result, string) {
	t.Helper()
	m, err := manifest.Parse("jnibind.toml", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cat, err := manifest.Compile(m)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	res, err := Generate(cat, Options{Source: "jnibind.toml"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	code := string(res.Code)
	if _, err := parser.ParseFile(token.NewFileSet(), FileName, code, parser.AllErrors); err != nil {
		t.Fatalf("generated code does not parse: %v\n%s", err, code)
	}
	return res, code
}

func TestGenerate(t *testing.T) {
	res, code := generate(t, declarations)
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}

	want := []string{
		"// Code generated by jnibind gen from jnibind.toml. DO NOT EDIT.",
		"package jnet",
		"func Bind(env *jni.Env) (*Bindings, error)",
		"func BindURL(env *jni.Env) (*URL, error)",
		`c, err := env.Class("java.net.URL")`,
		"r.Constructor(sig.String)",
		`r.Method("get_host", nil, sig.String)`,
		`r.Method("same_file", []any{sig.Class("java.net.URL")}, sig.Boolean)`,
		`r.StaticMethod("to_array", []any{sig.ArrayOf(sig.Long)}, sig.ArrayOf(sig.Int))`,
		`r.StaticField("MAX_VALUE", sig.Int)`,
		"func (k *URL) New1(a0 string) (*URLObject, error)",
		"func (k *URL) New4(a0 string, a1 string, a2 int32, a3 string) (*URLObject, error)",
		"func (k *StringBuilder) New() (*StringBuilderObject, error)",
		"func (o *URLObject) GetHost() (string, error)",
		`return result[int32](o.obj.Call("get_port"))`,
		"func (o *URLObject) SameFile(a0 *URLObject) (bool, error)",
		`o.obj.Call("same_file", a0.Object())`,
		"func (o *StringBuilderObject) Append(a0 string) (*StringBuilderObject, error)",
		`return wrapStringBuilder(result[*jni.Object](o.obj.Call("append", a0)))`,
		"func (o *StringBuilderObject) SetLength(a0 int32) error",
		"func (k *Integer) ParseInt(a0 string) (int32, error)",
		"func (k *Integer) ToArray(a0 *jni.Object) (*jni.Object, error)",
		"func (k *Integer) MaxValue() (int32, error)",
		"func (k *Integer) SetMaxValue(a0 int32) error",
		`return k.class.SetStatic("MAX_VALUE", a0)`,
	}
	for _, w := range want {
		if !strings.Contains(code, w) {
			t.Errorf("generated code lacks %q", w)
		}
	}
	if t.Failed() {
		t.Logf("generated code:\n%s", code)
	}
}

func TestGenerateCollisions(t *testing.T) {
	res, code := generate(t, `
[[class]]
name = "java.util.List"

[[class.method]]
name = "size"
returns = "int"

[[class]]
name = "java.awt.List"

[[class.method]]
name = "get_object"
returns = "java.lang.Object"

[[class.method]]
name = "object"
returns = "int"

[[class.method]]
name = "count"
returns = "int"

[[class.field]]
name = "count"
type = "int"
`)
	for _, w := range []string{
		"type UtilList struct",
		"type AwtList struct",
		"func (o *AwtListObject) Object_() (int32, error)",
		"func (o *AwtListObject) Count_() (int32, error)",
		"package bindings",
	} {
		if !strings.Contains(code, w) {
			t.Errorf("generated code lacks %q", w)
		}
	}
	if len(res.Warnings) != 2 {
		t.Errorf("warnings = %v, want 2", res.Warnings)
	}
}

func TestGenerateEmptyCatalog(t *testing.T) {
	cat := &manifest.Catalog{Version: manifest.CatalogVersion}
	res, err := Generate(cat, Options{Package: "empty"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := parser.ParseFile(token.NewFileSet(), FileName, res.Code, 0); err != nil {
		t.Fatalf("generated code does not parse: %v", err)
	}
}

func TestToPascalCase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"my-app", "MyApp"},
		{"parse_int", "ParseInt"},
		{"getHost", "GetHost"},
		{"MAX_VALUE", "MaxValue"},
		{"models", "Models"},
		{"Map$Entry", "MapEntry"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ToPascalCase(tt.in); got != tt.want {
			t.Errorf("ToPascalCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTypeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"java.net.URL", "URL"},
		{"java.util.Map$Entry", "Map_Entry"},
		{"com.example.lower", "Lower"},
		{"Toplevel", "Toplevel"},
	}
	for _, tt := range tests {
		if got := TypeName(tt.in); got != tt.want {
			t.Errorf("TypeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := qualifiedTypeName("java.awt.List"); got != "AwtList" {
		t.Errorf("qualifiedTypeName = %q", got)
	}
}

func TestNames(t *testing.T) {
	n := newNames()
	if name, renamed := n.take("Size"); name != "Size" || renamed {
		t.Errorf("take(Size) = %q, %v", name, renamed)
	}
	if name, renamed := n.take("Size"); name != "Size_" || !renamed {
		t.Errorf("second take(Size) = %q, %v", name, renamed)
	}
	if name, _ := n.take("Class"); name != "Class_" {
		t.Errorf("take(Class) = %q", name)
	}
	if !IsReservedName("Object") || IsReservedName("Size") {
		t.Error("IsReservedName disagrees with the reserved table")
	}
}
