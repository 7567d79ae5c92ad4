package lsp

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"gopkg.in/yaml.v3"

	"github.com/chazu/jnibind/manifest"
	"github.com/chazu/jnibind/sig"
)

// primitiveTags are the non-class tags in declaration order.
var primitiveTags = []string{
	"boolean", "byte", "char", "short", "int", "long", "float", "double", "void", "string",
}

const maxItems = 100

// --- Diagnostics ---

func diagnose(issues []manifest.Issue) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	for _, is := range issues {
		line := protocol.UInteger(0)
		if is.Line > 1 {
			line = protocol.UInteger(is.Line - 1)
		}
		msg := is.Message
		if is.Path != "" {
			msg = is.Path + ": " + msg
		}
		severity := protocol.DiagnosticSeverityError
		source := lspName
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: line, Character: 0},
				End:   protocol.Position{Line: line + 1, Character: 0},
			},
			Severity: &severity,
			Source:   &source,
			Message:  msg,
		})
	}
	return diagnostics
}

// --- Completion ---

func (s *Server) complete(cat *manifest.Catalog, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := map[string]bool{}
	add := func(label, detail string, kind protocol.CompletionItemKind) {
		if seen[label] || !strings.HasPrefix(strings.ToLower(label), strings.ToLower(prefix)) {
			return
		}
		seen[label] = true
		labelCopy := label
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &labelCopy,
		})
	}

	for _, tag := range primitiveTags {
		add(tag, "tag "+sig.MustParse(tag).Signature(), protocol.CompletionItemKindKeyword)
	}

	var classes []string
	if cat != nil {
		for _, cc := range cat.Classes {
			classes = append(classes, cc.Name)
		}
	}
	sort.Strings(classes)
	for _, name := range classes {
		add(name, "declared class", protocol.CompletionItemKindClass)
	}

	if s.classNames != nil {
		runtime := append([]string(nil), s.classNames()...)
		sort.Strings(runtime)
		for _, name := range runtime {
			add(name, "runtime class", protocol.CompletionItemKindClass)
		}
	}

	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

// --- Hover ---

// tagLine matches a line that assigns a tag or tag list, in TOML or YAML.
var tagLine = regexp.MustCompile(`^\s*(?:-\s*)?(args|returns|type)\s*([=:])\s*(.+?)\s*$`)

func hover(cat *manifest.Catalog, text string, pos protocol.Position) *protocol.Hover {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return nil
	}
	if value, ok := lineSignature(lines[pos.Line]); ok {
		return markdown(value)
	}

	word := extractWord(text, pos)
	if word == "" {
		return nil
	}
	if value, ok := describe(cat, word); ok {
		return markdown(value)
	}
	return nil
}

// lineSignature renders the wire signature of the tag or tag list
// assigned on line.
func lineSignature(line string) (string, bool) {
	m := tagLine.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	key, sep, rhs := m[1], m[2], m[3]

	var value any
	if sep == "=" {
		var doc map[string]any
		if _, err := toml.Decode("v = "+rhs, &doc); err != nil {
			return "", false
		}
		value = doc["v"]
	} else if err := yaml.Unmarshal([]byte(rhs), &value); err != nil {
		return "", false
	}

	if key == "args" {
		list, ok := value.([]any)
		if !ok {
			return "", false
		}
		types, err := sig.ParseList(list)
		if err != nil {
			return fmt.Sprintf("**args**: %v", err), true
		}
		var b strings.Builder
		b.WriteString("(")
		for _, t := range types {
			b.WriteString(t.Signature())
		}
		b.WriteString(")")
		return fmt.Sprintf("**args** `%s`", b.String()), true
	}

	t, err := sig.Parse(value)
	if err != nil {
		return fmt.Sprintf("**%s**: %v", key, err), true
	}
	return fmt.Sprintf("**%s** `%s` → `%s`", key, t, t.Signature()), true
}

// describe explains word: a tag, a declared class or a declared member.
func describe(cat *manifest.Catalog, word string) (string, bool) {
	for _, tag := range primitiveTags {
		if word == tag {
			return fmt.Sprintf("**%s** → `%s`", tag, sig.MustParse(tag).Signature()), true
		}
	}

	if cat != nil {
		if cc, ok := cat.Class(word); ok {
			return describeClass(cc), true
		}
		var b strings.Builder
		for _, cc := range cat.Classes {
			for _, m := range cc.Methods {
				if m.Name == word || m.RuntimeName == word {
					fmt.Fprintf(&b, "- %s`%s.%s%s`\n", staticPrefix(m), cc.Name, m.RuntimeName, m.Signature)
				}
			}
			for _, f := range cc.Fields {
				if f.Name == word || f.RuntimeName == word {
					fmt.Fprintf(&b, "- %sfield `%s.%s %s`\n", staticPrefix(f), cc.Name, f.RuntimeName, f.Signature)
				}
			}
		}
		if b.Len() > 0 {
			return fmt.Sprintf("**%s**\n\n%s", word, b.String()), true
		}
	}

	if sig.IsClassName(word) && strings.Contains(word, ".") {
		return fmt.Sprintf("**%s** → `%s`", word, sig.Class(word).Signature()), true
	}
	return "", false
}

func describeClass(cc *manifest.CatalogClass) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** `%s`\n\n", cc.Name, sig.Class(cc.Name).Signature())
	fmt.Fprintf(&b, "%d constructors, %d methods, %d fields\n", len(cc.Constructors), len(cc.Methods), len(cc.Fields))
	if len(cc.Constructors)+len(cc.Methods)+len(cc.Fields) == 0 {
		return b.String()
	}
	b.WriteString("\n")
	for _, c := range cc.Constructors {
		fmt.Fprintf(&b, "- `<init>%s`\n", c.Signature)
	}
	for _, m := range cc.Methods {
		fmt.Fprintf(&b, "- %s`%s%s`\n", staticPrefix(m), m.RuntimeName, m.Signature)
	}
	for _, f := range cc.Fields {
		fmt.Fprintf(&b, "- %sfield `%s %s`\n", staticPrefix(f), f.RuntimeName, f.Signature)
	}
	return b.String()
}

func staticPrefix(m manifest.Member) string {
	if m.Static {
		return "static "
	}
	return ""
}

func markdown(value string) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
	}
}

// --- Text extraction helpers ---

func isTagChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '$' || ch == '.'
}

// extractPrefix returns the tag fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isTagChar(rune(line[start-1])) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full tag or name under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isTagChar(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isTagChar(rune(line[end])) {
		end++
	}
	return strings.Trim(line[start:end], ".")
}
