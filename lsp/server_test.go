package lsp

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/jnibind/manifest"
)

const manifestText = `[[class]]
name = "java.net.URL"

[[class.constructor]]
args = ["string"]

[[class.method]]
name = "get_host"
returns = "string"

[[class.static_method]]
name = "join"
args = ["string", ["long"], "java.net.URL"]
returns = "java.net.URL"
`

func openDoc(t *testing.T, s *Server, uri, text string) []protocol.Diagnostic {
	t.Helper()
	return s.update(protocol.DocumentUri(uri), text)
}

// ---------------------------------------------------------------------------
// Text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple", `returns = "lo`, protocol.Position{Line: 0, Character: 13}, "lo"},
		{"dotted", `args = ["java.ne`, protocol.Position{Line: 0, Character: 16}, "java.ne"},
		{"multi line", "[[class]]\nname = \"Map$En", protocol.Position{Line: 1, Character: 14}, "Map$En"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"past end", "int", protocol.Position{Line: 4, Character: 0}, ""},
		{"after quote", `returns = "`, protocol.Position{Line: 0, Character: 11}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPrefix(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractPrefix = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractWord(t *testing.T) {
	text := `args = ["java.net.URL", "int"]`
	if got := extractWord(text, protocol.Position{Line: 0, Character: 12}); got != "java.net.URL" {
		t.Errorf("extractWord = %q, want java.net.URL", got)
	}
	if got := extractWord(text, protocol.Position{Line: 0, Character: 26}); got != "int" {
		t.Errorf("extractWord = %q, want int", got)
	}
	if got := extractWord(text, protocol.Position{Line: 0, Character: 5}); got != "" {
		t.Errorf("extractWord on '=' = %q, want empty", got)
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestDiagnostics(t *testing.T) {
	s := New()
	if d := openDoc(t, s, "file:///p/jnibind.toml", manifestText); len(d) != 0 {
		t.Fatalf("diagnostics for a valid manifest: %v", d)
	}
	doc, ok := s.document("file:///p/jnibind.toml")
	if !ok || doc.catalog == nil {
		t.Fatal("valid document has no catalog")
	}

	bad := strings.Replace(manifestText, `returns = "string"`, `returns = "not a type"`, 1)
	d := openDoc(t, s, "file:///p/jnibind.toml", bad)
	if len(d) != 1 {
		t.Fatalf("diagnostics = %v, want 1", d)
	}
	if d[0].Range.Start.Line != 6 {
		t.Errorf("diagnostic line = %d, want 6", d[0].Range.Start.Line)
	}
	if !strings.HasPrefix(d[0].Message, "class.0.method.0") {
		t.Errorf("message = %q", d[0].Message)
	}

	doc, _ = s.document("file:///p/jnibind.toml")
	if doc.text != bad || doc.catalog == nil {
		t.Error("the last good catalog should survive an invalid edit")
	}
}

func TestDiagnosticsYAML(t *testing.T) {
	s := New()
	d := openDoc(t, s, "file:///p/decls.yaml", "class:\n  - name: 42\n")
	if len(d) == 0 {
		t.Fatal("expected a diagnostic for a numeric class name")
	}
	if *d[0].Severity != protocol.DiagnosticSeverityError || *d[0].Source != lspName {
		t.Errorf("diagnostic = %+v", d[0])
	}
}

func TestDiagnose(t *testing.T) {
	d := diagnose([]manifest.Issue{{Message: "no line"}, {Line: 3, Path: "class.0", Message: "bad"}})
	if d[0].Range.Start.Line != 0 || d[0].Message != "no line" {
		t.Errorf("first = %+v", d[0])
	}
	if d[1].Range.Start.Line != 2 || d[1].Message != "class.0: bad" {
		t.Errorf("second = %+v", d[1])
	}
}

// ---------------------------------------------------------------------------
// Hover
// ---------------------------------------------------------------------------

func hoverValue(t *testing.T, s *Server, uri string, line, char int) string {
	t.Helper()
	doc, ok := s.document(protocol.DocumentUri(uri))
	if !ok {
		t.Fatalf("no document %s", uri)
	}
	h := hover(doc.catalog, doc.text, protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(char)})
	if h == nil {
		return ""
	}
	return h.Contents.(protocol.MarkupContent).Value
}

func TestHoverTagLines(t *testing.T) {
	s := New()
	openDoc(t, s, "file:///jnibind.toml", manifestText)

	if got := hoverValue(t, s, "file:///jnibind.toml", 12, 3); !strings.Contains(got, "(Ljava/lang/String;[JLjava/net/URL;)") {
		t.Errorf("args hover = %q", got)
	}
	if got := hoverValue(t, s, "file:///jnibind.toml", 8, 3); !strings.Contains(got, "`Ljava/lang/String;`") {
		t.Errorf("returns hover = %q", got)
	}
	if got := hoverValue(t, s, "file:///jnibind.toml", 4, 0); !strings.Contains(got, "(Ljava/lang/String;)") {
		t.Errorf("constructor args hover = %q", got)
	}
}

func TestHoverYAMLTagLine(t *testing.T) {
	got, ok := lineSignature("    args: [int, [double]]")
	if !ok || !strings.Contains(got, "(I[D)") {
		t.Errorf("lineSignature = %q, %v", got, ok)
	}
	got, ok = lineSignature(`returns = "nope nope"`)
	if !ok || !strings.Contains(got, "unknown type") {
		t.Errorf("lineSignature(bad) = %q, %v", got, ok)
	}
	if _, ok := lineSignature(`name = "x"`); ok {
		t.Error("name lines carry no signature")
	}
}

func TestHoverNames(t *testing.T) {
	s := New()
	openDoc(t, s, "file:///jnibind.toml", manifestText)

	class := hoverValue(t, s, "file:///jnibind.toml", 1, 12)
	for _, want := range []string{"**java.net.URL**", "`Ljava/net/URL;`", "1 constructors, 2 methods", "`getHost()Ljava/lang/String;`", "static `join("} {
		if !strings.Contains(class, want) {
			t.Errorf("class hover lacks %q:\n%s", want, class)
		}
	}

	member := hoverValue(t, s, "file:///jnibind.toml", 7, 10)
	if !strings.Contains(member, "`java.net.URL.getHost()Ljava/lang/String;`") {
		t.Errorf("member hover = %q", member)
	}

	if got := hoverValue(t, s, "file:///jnibind.toml", 9, 0); got != "" {
		t.Errorf("blank line hover = %q", got)
	}
}

func TestDescribe(t *testing.T) {
	if got, ok := describe(nil, "long"); !ok || got != "**long** → `J`" {
		t.Errorf("describe(long) = %q, %v", got, ok)
	}
	if got, ok := describe(nil, "java.util.List"); !ok || !strings.Contains(got, "Ljava/util/List;") {
		t.Errorf("describe(class) = %q, %v", got, ok)
	}
	if _, ok := describe(nil, "name"); ok {
		t.Error("plain words should not describe")
	}
}

// ---------------------------------------------------------------------------
// Completion
// ---------------------------------------------------------------------------

func labels(items []protocol.CompletionItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Label
	}
	return out
}

func TestComplete(t *testing.T) {
	s := New(WithClassNames(func() []string {
		return []string{"java.lang.Integer", "java.net.URL"}
	}))
	openDoc(t, s, "file:///jnibind.toml", manifestText)
	doc, _ := s.document("file:///jnibind.toml")

	got := labels(s.complete(doc.catalog, "s"))
	if strings.Join(got, ",") != "short,string" {
		t.Errorf("complete(s) = %v", got)
	}

	items := s.complete(doc.catalog, "java.")
	got = labels(items)
	if strings.Join(got, ",") != "java.net.URL,java.lang.Integer" {
		t.Errorf("complete(java.) = %v", got)
	}
	if *items[0].Detail != "declared class" || *items[1].Detail != "runtime class" {
		t.Errorf("details = %q, %q", *items[0].Detail, *items[1].Detail)
	}

	if got := s.complete(nil, "L"); len(got) != 1 || got[0].Label != "long" {
		t.Errorf("complete(L) = %v", labels(got))
	}
	if *s.complete(nil, "int")[0].Detail != "tag I" {
		t.Error("primitive completion should show its descriptor")
	}
}
