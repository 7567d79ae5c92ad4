package manifest

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce  sync.Once
	schemaCtx   *cue.Context
	schemaValue cue.Value
	schemaErr   error
)

// Issue is one problem found in a manifest.
type Issue struct {
	// Path is the dotted location of the offending value, e.g.
	// "class.0.method.1.returns". Empty for syntax errors.
	Path string
	// Line is 1-based, or 0 when unknown.
	Line    int
	Message string
}

func (i Issue) String() string {
	switch {
	case i.Line > 0 && i.Path != "":
		return fmt.Sprintf("line %d: %s: %s", i.Line, i.Path, i.Message)
	case i.Line > 0:
		return fmt.Sprintf("line %d: %s", i.Line, i.Message)
	case i.Path != "":
		return fmt.Sprintf("%s: %s", i.Path, i.Message)
	}
	return i.Message
}

// ValidationError lists every issue found in one file.
type ValidationError struct {
	File   string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("%s: %s", e.File, e.Issues[0])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d problems", e.File, len(e.Issues))
	for _, is := range e.Issues {
		b.WriteString("\n  ")
		b.WriteString(is.String())
	}
	return b.String()
}

func schema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("manifest schema: %w", err)
			return
		}
		schemaValue = v.LookupPath(cue.ParsePath("#Manifest"))
	})
	return schemaCtx, schemaValue, schemaErr
}

// Validate checks decoded manifest data against the manifest schema. raw is
// the generic decoding of a TOML or YAML file.
func Validate(file string, raw map[string]any) error {
	ctx, s, err := schema()
	if err != nil {
		return err
	}
	data := ctx.Encode(raw)
	if err := data.Err(); err != nil {
		return &ValidationError{File: file, Issues: []Issue{{Message: err.Error()}}}
	}
	err = s.Unify(data).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	seen := map[string]bool{}
	var issues []Issue
	for _, e := range cueerrors.Errors(err) {
		path := issuePath(e.Path())
		if seen[path] {
			continue
		}
		seen[path] = true
		format, args := e.Msg()
		issues = append(issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
	return &ValidationError{File: file, Issues: issues}
}

// issuePath joins a CUE error path into a dotted data path, dropping the
// leading definition selectors (#Manifest).
func issuePath(sel []string) string {
	for len(sel) > 0 && strings.HasPrefix(sel[0], "#") {
		sel = sel[1:]
	}
	return strings.Join(sel, ".")
}

// Lookup returns the value at a dotted issue path inside raw decoded data,
// or nil.
func Lookup(raw any, path string) any {
	if path == "" {
		return raw
	}
	cur := raw
	for _, part := range strings.Split(path, ".") {
		switch x := cur.(type) {
		case map[string]any:
			cur = x[part]
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(x) {
				return nil
			}
			cur = x[i]
		case []map[string]any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(x) {
				return nil
			}
			cur = x[i]
		default:
			return nil
		}
	}
	return cur
}

// locateIssues fills in Line for issues that only carry a path, by finding
// the first source line that mentions the offending key and value.
func locateIssues(src []byte, raw map[string]any, issues []Issue) {
	lines := strings.Split(string(src), "\n")
	for i := range issues {
		is := &issues[i]
		if is.Line > 0 || is.Path == "" {
			continue
		}
		parts := strings.Split(is.Path, ".")
		key := ""
		for j := len(parts) - 1; j >= 0; j-- {
			if _, err := strconv.Atoi(parts[j]); err != nil {
				key = parts[j]
				break
			}
		}
		if key == "" {
			continue
		}
		var needle string
		switch v := Lookup(raw, is.Path).(type) {
		case string:
			needle = v
		case int64, int, float64, bool:
			needle = fmt.Sprint(v)
		}
		fallback := 0
		for n, line := range lines {
			if !strings.Contains(line, key) {
				continue
			}
			if fallback == 0 {
				fallback = n + 1
			}
			if needle == "" || strings.Contains(line, needle) {
				is.Line = n + 1
				break
			}
		}
		if is.Line == 0 {
			is.Line = fallback
		}
	}
}
