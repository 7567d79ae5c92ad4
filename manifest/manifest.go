// Package manifest handles jnibind.toml project configuration and the class
// declaration files it includes.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileName is the project manifest looked up by FindAndLoad.
const FileName = "jnibind.toml"

// Defaults applied by Load when the manifest leaves a value unset.
const (
	DefaultAddr          = "127.0.0.1:7421"
	DefaultHandleTTL     = 10 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Manifest represents a jnibind.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project" yaml:"project"`
	Server  Server      `toml:"server" yaml:"server"`
	Trace   Trace       `toml:"trace" yaml:"trace"`
	Include []string    `toml:"include" yaml:"include"`
	Classes []ClassDecl `toml:"class" yaml:"class"`

	// Dir is the directory containing the manifest (set at load time).
	Dir string `toml:"-" yaml:"-"`
	// Path is the manifest file itself (set at load time).
	Path string `toml:"-" yaml:"-"`
}

// Project contains project metadata used by code generation.
type Project struct {
	Name    string `toml:"name" yaml:"name"`
	Package string `toml:"package" yaml:"package"`
	Output  string `toml:"output" yaml:"output"`
}

// Server configures the remote bridge server.
type Server struct {
	Addr          string   `toml:"addr" yaml:"addr"`
	HandleTTL     Duration `toml:"handle_ttl" yaml:"handle_ttl"`
	SweepInterval Duration `toml:"sweep_interval" yaml:"sweep_interval"`
}

// Trace configures the call journal.
type Trace struct {
	Path string `toml:"path" yaml:"path"`
}

// ClassDecl declares the members of one runtime class.
type ClassDecl struct {
	Name          string       `toml:"name" yaml:"name"`
	Constructors  []CtorDecl   `toml:"constructor" yaml:"constructor"`
	Methods       []MethodDecl `toml:"method" yaml:"method"`
	StaticMethods []MethodDecl `toml:"static_method" yaml:"static_method"`
	Fields        []FieldDecl  `toml:"field" yaml:"field"`

	// Source is the file the declaration was read from.
	Source string `toml:"-" yaml:"-"`
}

// CtorDecl declares a constructor by its argument tags.
type CtorDecl struct {
	Args []any `toml:"args" yaml:"args"`
}

// MethodDecl declares a method. Name is the host-side name; snake_case names
// are translated to camelCase when the method is resolved. A missing Returns
// means void.
type MethodDecl struct {
	Name    string `toml:"name" yaml:"name"`
	Args    []any  `toml:"args" yaml:"args"`
	Returns any    `toml:"returns" yaml:"returns"`
}

// FieldDecl declares an instance or static field.
type FieldDecl struct {
	Name   string `toml:"name" yaml:"name"`
	Type   any    `toml:"type" yaml:"type"`
	Static bool   `toml:"static" yaml:"static"`
}

// Duration is a time.Duration written as a Go duration string ("90s").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// Load parses the jnibind.toml file in dir, then every declaration file it
// includes.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses a manifest or declaration file. Files ending in .yaml or
// .yml are read as YAML, everything else as TOML.
func LoadFile(path string) (*Manifest, error) {
	m, err := readFile(path)
	if err != nil {
		return nil, err
	}
	included, err := ResolveIncludes(m)
	if err != nil {
		return nil, err
	}
	for _, inc := range included {
		m.Classes = append(m.Classes, inc.Classes...)
	}

	// Defaults
	if m.Server.Addr == "" {
		m.Server.Addr = DefaultAddr
	}
	if m.Server.HandleTTL.Duration == 0 {
		m.Server.HandleTTL.Duration = DefaultHandleTTL
	}
	if m.Server.SweepInterval.Duration == 0 {
		m.Server.SweepInterval.Duration = DefaultSweepInterval
	}
	if m.Project.Package == "" {
		m.Project.Package = "bindings"
	}
	if m.Trace.Path != "" && !filepath.IsAbs(m.Trace.Path) {
		m.Trace.Path = filepath.Join(m.Dir, m.Trace.Path)
	}

	return m, nil
}

// Parse decodes and validates manifest source without touching the
// filesystem. Includes are not followed. name is used in error messages and
// selects YAML decoding by extension.
func Parse(name string, data []byte) (*Manifest, error) {
	raw, err := decodeRaw(name, data)
	if err != nil {
		return nil, err
	}
	if err := Validate(name, raw); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			locateIssues(data, raw, verr.Issues)
		}
		return nil, err
	}

	var m Manifest
	if isYAML(name) {
		err = yaml.Unmarshal(data, &m)
	} else {
		err = toml.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", name, err)
	}
	for i := range m.Classes {
		m.Classes[i].Source = name
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a jnibind.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// OutputDir returns the absolute directory generated code is written to.
func (m *Manifest) OutputDir() string {
	out := m.Project.Output
	if out == "" {
		out = m.Project.Package
	}
	if filepath.IsAbs(out) {
		return out
	}
	return filepath.Join(m.Dir, out)
}

func readFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	m, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	m.Path = abs
	m.Dir = filepath.Dir(abs)
	return m, nil
}

// decodeRaw decodes data into generic maps for schema validation.
func decodeRaw(name string, data []byte) (map[string]any, error) {
	raw := map[string]any{}
	if isYAML(name) {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &ValidationError{File: name, Issues: []Issue{{Line: yamlLine(err), Message: err.Error()}}}
		}
		return raw, nil
	}
	if _, err := toml.Decode(string(data), &raw); err != nil {
		issue := Issue{Message: err.Error()}
		var perr toml.ParseError
		if errors.As(err, &perr) {
			issue.Line = perr.Position.Line
			issue.Message = perr.Message
		}
		return nil, &ValidationError{File: name, Issues: []Issue{issue}}
	}
	return raw, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// yamlLine extracts the line number from a yaml.v3 syntax error
// ("yaml: line 3: ..."), or 0.
func yamlLine(err error) int {
	var line int
	msg := err.Error()
	if i := strings.Index(msg, "line "); i >= 0 {
		fmt.Sscanf(msg[i:], "line %d", &line)
	}
	return line
}
