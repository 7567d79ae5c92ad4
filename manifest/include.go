package manifest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ResolveIncludes loads every declaration file named by m.Include, following
// includes recursively. Entries are paths or glob patterns relative to the
// including file. Files are returned in load order (included files before
// the files that include them); a file reached twice is loaded once, and an
// include cycle is an error. Only the class declarations and includes of an
// included file are used.
func ResolveIncludes(m *Manifest) ([]*Manifest, error) {
	r := &includeResolver{
		loaded:   map[string]bool{m.Path: true},
		visiting: map[string]bool{m.Path: true},
	}
	return r.resolveAll(m, []string{m.Path})
}

type includeResolver struct {
	loaded   map[string]bool
	visiting map[string]bool
}

// resolveAll resolves the includes of one file recursively.
func (r *includeResolver) resolveAll(m *Manifest, chain []string) ([]*Manifest, error) {
	var order []*Manifest

	for _, pattern := range m.Include {
		paths, err := expandInclude(m.Dir, pattern)
		if err != nil {
			return nil, fmt.Errorf("%s: include %q: %w", m.Path, pattern, err)
		}
		for _, path := range paths {
			if r.visiting[path] {
				return nil, fmt.Errorf("include cycle: %s", strings.Join(append(chain, path), " -> "))
			}
			if r.loaded[path] {
				continue // already loaded
			}

			inc, err := readFile(path)
			if err != nil {
				return nil, fmt.Errorf("included from %s: %w", m.Path, err)
			}
			r.loaded[path] = true

			if len(inc.Include) > 0 {
				r.visiting[path] = true
				transitive, err := r.resolveAll(inc, append(chain, path))
				if err != nil {
					return nil, err
				}
				delete(r.visiting, path)
				order = append(order, transitive...)
			}

			order = append(order, inc)
		}
	}

	return order, nil
}

// expandInclude resolves one include entry to absolute, sorted file paths.
// A pattern without glob metacharacters must name an existing file.
func expandInclude(dir, pattern string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(dir, pattern)
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 && !strings.ContainsAny(pattern, "*?[") {
		return nil, fmt.Errorf("file not found: %s", pattern)
	}
	out := make([]string, 0, len(matches))
	for _, p := range matches {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	sort.Strings(out)
	return out, nil
}
