package manifest

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/jnibind/jni"
	"github.com/chazu/jnibind/sig"
)

// CatalogVersion is the format version written by MarshalCatalog.
const CatalogVersion = 1

// Catalog is the compiled form of a set of class declarations: every tag
// resolved, every signature computed. Catalogs are what Apply registers and
// what code generation reads.
type Catalog struct {
	Version int            `cbor:"1,keyasint"`
	Package string         `cbor:"2,keyasint,omitempty"`
	Classes []CatalogClass `cbor:"3,keyasint"`
}

// CatalogClass holds the resolved members of one class.
type CatalogClass struct {
	Name         string   `cbor:"1,keyasint"`
	Constructors []Member `cbor:"2,keyasint,omitempty"`
	Methods      []Member `cbor:"3,keyasint,omitempty"` // instance and static
	Fields       []Member `cbor:"4,keyasint,omitempty"`
}

// Member is a resolved constructor, method or field. Tags are stored in
// their printed form ("int", "java.net.URL", "[[long]]"). For fields,
// Returns is the field type and Signature its descriptor.
type Member struct {
	Name        string   `cbor:"1,keyasint"`
	RuntimeName string   `cbor:"2,keyasint"`
	Args        []string `cbor:"3,keyasint,omitempty"`
	Returns     string   `cbor:"4,keyasint,omitempty"`
	Signature   string   `cbor:"5,keyasint"`
	Static      bool     `cbor:"6,keyasint,omitempty"`
}

// ArgTypes parses the member's argument tags.
func (m Member) ArgTypes() ([]sig.Type, error) {
	out := make([]sig.Type, len(m.Args))
	for i, a := range m.Args {
		t, err := sig.ParsePrinted(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = t
	}
	return out, nil
}

// ReturnType parses the member's return (or field) tag. Constructors
// return void.
func (m Member) ReturnType() (sig.Type, error) {
	if m.Returns == "" {
		return sig.Void, nil
	}
	return sig.ParsePrinted(m.Returns)
}

// Class returns the catalog entry for name.
func (c *Catalog) Class(name string) (*CatalogClass, bool) {
	for i := range c.Classes {
		if c.Classes[i].Name == name {
			return &c.Classes[i], true
		}
	}
	return nil, false
}

// Hash returns the SHA-256 of the catalog's canonical encoding.
func (c *Catalog) Hash() ([32]byte, error) {
	data, err := MarshalCatalog(c)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// ---------------------------------------------------------------------------
// Compilation
// ---------------------------------------------------------------------------

// Compile resolves every declaration in m. Declarations of the same class
// are merged in file order. All problems are reported, grouped per source
// file as *ValidationError values joined with errors.Join.
func Compile(m *Manifest) (*Catalog, error) {
	cat := &Catalog{Version: CatalogVersion, Package: m.Project.Package}
	index := map[string]int{}
	problems := map[string]*ValidationError{}
	var files []string

	report := func(decl ClassDecl, path, format string, args ...any) {
		file := decl.Source
		if file == "" {
			file = m.Path
		}
		verr, ok := problems[file]
		if !ok {
			verr = &ValidationError{File: file}
			problems[file] = verr
			files = append(files, file)
		}
		verr.Issues = append(verr.Issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Positions are per source file so issue paths match the file's own
	// class list.
	perFile := map[string]int{}

	for _, decl := range m.Classes {
		ci := perFile[decl.Source]
		perFile[decl.Source]++
		prefix := fmt.Sprintf("class.%d", ci)

		if !sig.IsClassName(decl.Name) {
			report(decl, prefix+".name", "%q is not a class name", decl.Name)
			continue
		}
		i, ok := index[decl.Name]
		if !ok {
			i = len(cat.Classes)
			index[decl.Name] = i
			cat.Classes = append(cat.Classes, CatalogClass{Name: decl.Name})
		}
		cc := &cat.Classes[i]

		for j, ctor := range decl.Constructors {
			mem, err := compileMember("<init>", ctor.Args, nil, false)
			if err != nil {
				report(decl, fmt.Sprintf("%s.constructor.%d", prefix, j), "%v", err)
				continue
			}
			cc.Constructors = append(cc.Constructors, mem)
		}
		for j, md := range decl.Methods {
			mem, err := compileMember(md.Name, md.Args, md.Returns, false)
			if err != nil {
				report(decl, fmt.Sprintf("%s.method.%d", prefix, j), "%s: %v", md.Name, err)
				continue
			}
			cc.Methods = append(cc.Methods, mem)
		}
		for j, md := range decl.StaticMethods {
			mem, err := compileMember(md.Name, md.Args, md.Returns, true)
			if err != nil {
				report(decl, fmt.Sprintf("%s.static_method.%d", prefix, j), "%s: %v", md.Name, err)
				continue
			}
			cc.Methods = append(cc.Methods, mem)
		}
		for j, fd := range decl.Fields {
			mem, err := compileField(fd)
			if err != nil {
				report(decl, fmt.Sprintf("%s.field.%d.type", prefix, j), "%s: %v", fd.Name, err)
				continue
			}
			cc.Fields = append(cc.Fields, mem)
		}
	}

	if len(files) > 0 {
		errs := make([]error, len(files))
		for i, f := range files {
			errs[i] = problems[f]
		}
		return nil, errors.Join(errs...)
	}
	return cat, nil
}

func compileMember(name string, args []any, ret any, static bool) (Member, error) {
	argTypes, err := sig.ParseList(args)
	if err != nil {
		return Member{}, err
	}
	if err := sig.ValidateArgs(argTypes); err != nil {
		return Member{}, err
	}
	retType := sig.Void
	if ret != nil {
		if retType, err = sig.Parse(ret); err != nil {
			return Member{}, fmt.Errorf("return type: %w", err)
		}
	}

	mem := Member{
		Name:        name,
		RuntimeName: jni.RuntimeName(name),
		Signature:   sig.MethodSignature(argTypes, retType),
		Static:      static,
	}
	for _, a := range argTypes {
		mem.Args = append(mem.Args, a.String())
	}
	if name != "<init>" {
		mem.Returns = retType.String()
	}
	return mem, nil
}

func compileField(fd FieldDecl) (Member, error) {
	t, err := sig.Parse(fd.Type)
	if err != nil {
		return Member{}, err
	}
	if t.Kind() == sig.KindVoid {
		return Member{}, fmt.Errorf("%w: void is not a field type", sig.ErrUnknownType)
	}
	return Member{
		Name:        fd.Name,
		RuntimeName: jni.RuntimeName(fd.Name),
		Returns:     t.String(),
		Signature:   sig.Signature(t),
		Static:      fd.Static,
	}, nil
}

// ---------------------------------------------------------------------------
// Wire encoding
// ---------------------------------------------------------------------------

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("manifest: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalCatalog serializes a Catalog to canonical CBOR bytes.
func MarshalCatalog(c *Catalog) ([]byte, error) {
	return cborEncMode.Marshal(c)
}

// UnmarshalCatalog deserializes a Catalog from CBOR bytes.
func UnmarshalCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("manifest: unmarshal catalog: %w", err)
	}
	if c.Version != CatalogVersion {
		return nil, fmt.Errorf("manifest: unsupported catalog version %d", c.Version)
	}
	return &c, nil
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

// Apply resolves every class in the catalog through env and registers its
// members. It stops at the first failure; the error names the class and the
// member and wraps the binding error (ErrClassNotFound, ErrNoSuchMethod).
func Apply(env *jni.Env, c *Catalog) ([]*jni.Class, error) {
	out := make([]*jni.Class, 0, len(c.Classes))
	for _, cc := range c.Classes {
		cls, err := env.Class(cc.Name)
		if err != nil {
			return out, fmt.Errorf("class %s: %w", cc.Name, err)
		}
		if err := applyClass(cls, cc); err != nil {
			return out, fmt.Errorf("class %s: %w", cc.Name, err)
		}
		out = append(out, cls)
	}
	return out, nil
}

func applyClass(cls *jni.Class, cc CatalogClass) error {
	for _, m := range cc.Constructors {
		args, err := m.ArgTypes()
		if err != nil {
			return fmt.Errorf("constructor %s: %w", m.Signature, err)
		}
		if _, err := cls.Constructor(args...); err != nil {
			return fmt.Errorf("constructor %s: %w", m.Signature, err)
		}
	}
	for _, m := range cc.Methods {
		args, err := m.ArgTypes()
		if err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
		ret, err := m.ReturnType()
		if err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
		register := cls.Method
		if m.Static {
			register = cls.StaticMethod
		}
		if _, err := register(m.Name, args, ret); err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
	}
	for _, m := range cc.Fields {
		t, err := m.ReturnType()
		if err != nil {
			return fmt.Errorf("field %s: %w", m.Name, err)
		}
		register := cls.Field
		if m.Static {
			register = cls.StaticField
		}
		if _, err := register(m.Name, t); err != nil {
			return fmt.Errorf("field %s: %w", m.Name, err)
		}
	}
	return nil
}

// Check parses and compiles a single declarations document, reporting every
// problem as an Issue with its line where one can be found. Includes are
// not followed. Editors use it to lint one file at a time.
func Check(name string, data []byte) (*Catalog, []Issue) {
	m, err := Parse(name, data)
	if err != nil {
		return nil, issuesOf(err)
	}
	cat, err := Compile(m)
	if err != nil {
		issues := issuesOf(err)
		if raw, rerr := decodeRaw(name, data); rerr == nil {
			locateIssues(data, raw, issues)
		}
		return nil, issues
	}
	return cat, nil
}

// issuesOf flattens validation errors, joined or not, into issues.
func issuesOf(err error) []Issue {
	var out []Issue
	var walk func(error)
	walk = func(e error) {
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		var verr *ValidationError
		if errors.As(e, &verr) {
			out = append(out, verr.Issues...)
			return
		}
		out = append(out, Issue{Message: e.Error()})
	}
	walk(err)
	return out
}
