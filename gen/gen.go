// Package gen generates typed Go wrappers for a compiled class catalog.
//
// For every class in the catalog the generated file holds a class wrapper
// (static methods, static fields and constructors) and an object wrapper
// (instance methods and fields), plus a Bind function that resolves every
// class in a jni.Env at once.
package gen

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/jnibind/manifest"
	"github.com/chazu/jnibind/sig"
)

const (
	jniPath = "github.com/chazu/jnibind/jni"
	sigPath = "github.com/chazu/jnibind/sig"
)

// FileName is the name of the generated file inside the output directory.
const FileName = "jnibind_gen.go"

// Options controls code generation.
type Options struct {
	// Package is the generated package name. Defaults to the catalog's
	// package, then "bindings".
	Package string
	// Source names the declarations in the file header.
	Source string
}

// Result contains the generated code and any warnings.
type Result struct {
	Code     []byte
	Warnings []string
}

type generator struct {
	cat      *manifest.Catalog
	types    map[string]string // class name -> Go type name
	warnings []string
}

// Generate renders the wrappers for cat.
func Generate(cat *manifest.Catalog, opts Options) (*Result, error) {
	pkg := opts.Package
	if pkg == "" {
		pkg = cat.Package
	}
	if pkg == "" {
		pkg = "bindings"
	}

	g := &generator{cat: cat, types: map[string]string{}}
	g.assignTypeNames()

	f := jen.NewFile(pkg)
	header := "Code generated by jnibind gen. DO NOT EDIT."
	if opts.Source != "" {
		header = fmt.Sprintf("Code generated by jnibind gen from %s. DO NOT EDIT.", opts.Source)
	}
	f.HeaderComment(header)
	f.ImportName(jniPath, "jni")
	f.ImportName(sigPath, "sig")

	g.generateHelpers(f)
	g.generateBindings(f)
	for i := range cat.Classes {
		if err := g.generateClass(f, &cat.Classes[i]); err != nil {
			return nil, fmt.Errorf("gen: class %s: %w", cat.Classes[i].Name, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("gen: render: %w", err)
	}
	return &Result{Code: buf.Bytes(), Warnings: g.warnings}, nil
}

func (g *generator) warnf(format string, args ...any) {
	g.warnings = append(g.warnings, fmt.Sprintf(format, args...))
}

// assignTypeNames picks a Go type name per class. Classes whose simple
// names collide are qualified with their package segment.
func (g *generator) assignTypeNames() {
	count := map[string]int{}
	for _, c := range g.cat.Classes {
		count[TypeName(c.Name)]++
	}
	used := newNames()
	used.take("Bindings")
	for _, c := range g.cat.Classes {
		want := TypeName(c.Name)
		if count[want] > 1 {
			want = qualifiedTypeName(c.Name)
		}
		name, renamed := used.take(want)
		if renamed {
			g.warnf("%s: Go type renamed to %s", c.Name, name)
		}
		used.take(name + "Object")
		g.types[c.Name] = name
	}
}

func objectType(typeName string) string { return typeName + "Object" }

// ---------------------------------------------------------------------------
// Types and tags
// ---------------------------------------------------------------------------

var primitiveGoTypes = map[sig.Kind]func() *jen.Statement{
	sig.KindBoolean: jen.Bool,
	sig.KindByte:    jen.Int8,
	sig.KindChar:    jen.Uint16,
	sig.KindShort:   jen.Int16,
	sig.KindInt:     jen.Int32,
	sig.KindLong:    jen.Int64,
	sig.KindFloat:   jen.Float32,
	sig.KindDouble:  jen.Float64,
	sig.KindString:  jen.String,
}

var tagIdents = map[sig.Kind]string{
	sig.KindBoolean: "Boolean",
	sig.KindByte:    "Byte",
	sig.KindChar:    "Char",
	sig.KindShort:   "Short",
	sig.KindInt:     "Int",
	sig.KindLong:    "Long",
	sig.KindFloat:   "Float",
	sig.KindDouble:  "Double",
	sig.KindVoid:    "Void",
	sig.KindString:  "String",
}

// goType returns the Go type used for a tag in wrapper signatures.
// Declared classes use their object wrapper; other references use
// *jni.Object.
func (g *generator) goType(t sig.Type) *jen.Statement {
	if f, ok := primitiveGoTypes[t.Kind()]; ok {
		return f()
	}
	if t.Kind() == sig.KindObject {
		if name, ok := g.types[t.ClassName()]; ok {
			return jen.Op("*").Id(objectType(name))
		}
	}
	return jen.Op("*").Qual(jniPath, "Object")
}

// wrapped reports whether values of t travel as a declared object wrapper.
func (g *generator) wrapped(t sig.Type) (string, bool) {
	if t.Kind() != sig.KindObject {
		return "", false
	}
	name, ok := g.types[t.ClassName()]
	return name, ok
}

// tagExpr renders t as a sig expression: sig.Int, sig.Class("a.B"),
// sig.ArrayOf(sig.Long).
func tagExpr(t sig.Type) jen.Code {
	switch t.Kind() {
	case sig.KindObject:
		return jen.Qual(sigPath, "Class").Call(jen.Lit(t.ClassName()))
	case sig.KindArray:
		return jen.Qual(sigPath, "ArrayOf").Call(tagExpr(t.Elem()))
	}
	return jen.Qual(sigPath, tagIdents[t.Kind()])
}

func tagList(ts []sig.Type) jen.Code {
	if len(ts) == 0 {
		return jen.Nil()
	}
	vals := make([]jen.Code, len(ts))
	for i, t := range ts {
		vals[i] = tagExpr(t)
	}
	return jen.Index().Any().Values(vals...)
}

// params returns the parameter list and the argument expressions passed to
// the dynamic call.
func (g *generator) params(ts []sig.Type) (params, args []jen.Code) {
	for i, t := range ts {
		name := "a" + strconv.Itoa(i)
		params = append(params, jen.Id(name).Add(g.goType(t)))
		if _, ok := g.wrapped(t); ok {
			args = append(args, jen.Id(name).Dot("Object").Call())
		} else {
			args = append(args, jen.Id(name))
		}
	}
	return params, args
}

// returnStmt converts the (any, error) of call into the wrapper's results.
func (g *generator) returnStmt(ret sig.Type, call *jen.Statement) []jen.Code {
	if ret.Kind() == sig.KindVoid {
		return []jen.Code{
			jen.List(jen.Id("_"), jen.Err()).Op(":=").Add(call),
			jen.Return(jen.Err()),
		}
	}
	if name, ok := g.wrapped(ret); ok {
		return []jen.Code{jen.Return(jen.Id("wrap" + name).Call(
			jen.Id("result").Types(jen.Op("*").Qual(jniPath, "Object")).Call(call),
		))}
	}
	return []jen.Code{jen.Return(jen.Id("result").Types(g.goType(ret)).Call(call))}
}

// ---------------------------------------------------------------------------
// File-level declarations
// ---------------------------------------------------------------------------

func (g *generator) generateHelpers(f *jen.File) {
	f.Comment("result converts a dynamic call result to T. Null results give the")
	f.Comment("zero value.")
	f.Func().Id("result").Types(jen.Id("T").Any()).
		Params(jen.Id("v").Any(), jen.Err().Error()).
		Params(jen.Id("T"), jen.Error()).
		Block(
			jen.Var().Id("zero").Id("T"),
			jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Id("zero"), jen.Err())),
			jen.If(jen.Id("v").Op("==").Nil()).Block(jen.Return(jen.Id("zero"), jen.Nil())),
			jen.List(jen.Id("t"), jen.Id("ok")).Op(":=").Id("v").Assert(jen.Id("T")),
			jen.If(jen.Op("!").Id("ok")).Block(jen.Return(
				jen.Id("zero"),
				jen.Qual("fmt", "Errorf").Call(
					jen.Lit("%w: unexpected result %T"),
					jen.Qual(jniPath, "ErrBridge"),
					jen.Id("v"),
				),
			)),
			jen.Return(jen.Id("t"), jen.Nil()),
		)
	f.Line()
}

func (g *generator) generateBindings(f *jen.File) {
	var fields, binds []jen.Code
	for _, c := range g.cat.Classes {
		name := g.types[c.Name]
		fields = append(fields, jen.Id(name).Op("*").Id(name))
		binds = append(binds,
			jen.If(
				jen.List(jen.Id("b").Dot(name), jen.Err()).Op("=").Id("Bind"+name).Call(jen.Id("env")),
				jen.Err().Op("!=").Nil(),
			).Block(jen.Return(jen.Nil(), jen.Err())),
		)
	}

	f.Comment("Bindings holds every declared class.")
	f.Type().Id("Bindings").Struct(fields...)
	f.Line()

	body := []jen.Code{jen.Id("b").Op(":=").Op("&").Id("Bindings").Values()}
	if len(binds) > 0 {
		body = append(body, jen.Var().Err().Error())
		body = append(body, binds...)
	}
	body = append(body, jen.Return(jen.Id("b"), jen.Nil()))

	f.Comment("Bind resolves and registers every declared class in env.")
	f.Func().Id("Bind").
		Params(jen.Id("env").Op("*").Qual(jniPath, "Env")).
		Params(jen.Op("*").Id("Bindings"), jen.Error()).
		Block(body...)
	f.Line()
}

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

type member struct {
	goName string
	m      manifest.Member
	args   []sig.Type
	ret    sig.Type
}

func (g *generator) members(cls *manifest.CatalogClass, in []manifest.Member, set *names, what string) ([]member, error) {
	var out []member
	for _, m := range in {
		args, err := m.ArgTypes()
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", what, m.Name, err)
		}
		ret, err := m.ReturnType()
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", what, m.Name, err)
		}
		goName, renamed := set.take(ToPascalCase(m.Name))
		if renamed {
			g.warnf("%s: %s %s renamed to %s", cls.Name, what, m.Name, goName)
		}
		out = append(out, member{goName: goName, m: m, args: args, ret: ret})
	}
	return out, nil
}

func split(ms []manifest.Member) (static, instance []manifest.Member) {
	for _, m := range ms {
		if m.Static {
			static = append(static, m)
		} else {
			instance = append(instance, m)
		}
	}
	return static, instance
}

func (g *generator) generateClass(f *jen.File, cls *manifest.CatalogClass) error {
	name := g.types[cls.Name]
	obj := objectType(name)

	classNames, objectNames := newNames(), newNames()

	ctors, err := g.constructors(cls, classNames)
	if err != nil {
		return err
	}
	staticMethods, instanceMethods := split(cls.Methods)
	statics, err := g.members(cls, staticMethods, classNames, "static method")
	if err != nil {
		return err
	}
	methods, err := g.members(cls, instanceMethods, objectNames, "method")
	if err != nil {
		return err
	}
	staticFields, instanceFields := split(cls.Fields)
	sfields, err := g.fields(cls, staticFields, classNames)
	if err != nil {
		return err
	}
	ifields, err := g.fields(cls, instanceFields, objectNames)
	if err != nil {
		return err
	}

	// Class wrapper.
	f.Commentf("%s binds %s.", name, cls.Name)
	f.Type().Id(name).Struct(jen.Id("class").Op("*").Qual(jniPath, "Class"))
	f.Line()

	g.generateBind(f, cls, name)

	f.Comment("Class returns the underlying binding.")
	f.Func().Params(jen.Id("k").Op("*").Id(name)).Id("Class").Params().Op("*").Qual(jniPath, "Class").
		Block(jen.Return(jen.Id("k").Dot("class")))
	f.Line()

	for _, c := range ctors {
		params, args := g.params(c.args)
		f.Commentf("%s constructs %s%s.", c.goName, cls.Name, c.m.Signature)
		f.Func().Params(jen.Id("k").Op("*").Id(name)).Id(c.goName).Params(params...).
			Params(jen.Op("*").Id(obj), jen.Error()).
			Block(jen.Return(jen.Id("wrap" + name).Call(
				jen.Id("k").Dot("class").Dot("New").Call(args...),
			)))
		f.Line()
	}
	for _, m := range statics {
		params, args := g.params(m.args)
		call := jen.Id("k").Dot("class").Dot("CallStatic").Call(append([]jen.Code{jen.Lit(m.m.Name)}, args...)...)
		f.Commentf("%s calls static %s%s.", m.goName, m.m.RuntimeName, m.m.Signature)
		f.Func().Params(jen.Id("k").Op("*").Id(name)).Id(m.goName).Params(params...).
			Add(g.results(m.ret)).
			Block(g.returnStmt(m.ret, call)...)
		f.Line()
	}
	for _, fd := range sfields {
		g.generateAccessors(f, jen.Id("k").Op("*").Id(name), jen.Id("k").Dot("class"), "GetStatic", "SetStatic", fd)
	}

	// Object wrapper.
	f.Commentf("%s is an instance of %s.", obj, cls.Name)
	f.Type().Id(obj).Struct(jen.Id("obj").Op("*").Qual(jniPath, "Object"))
	f.Line()

	f.Func().Id("wrap"+name).
		Params(jen.Id("o").Op("*").Qual(jniPath, "Object"), jen.Err().Error()).
		Params(jen.Op("*").Id(obj), jen.Error()).
		Block(
			jen.If(jen.Err().Op("!=").Nil().Op("||").Id("o").Op("==").Nil()).Block(jen.Return(jen.Nil(), jen.Err())),
			jen.Return(jen.Op("&").Id(obj).Values(jen.Dict{jen.Id("obj"): jen.Id("o")}), jen.Nil()),
		)
	f.Line()

	f.Commentf("Object returns the underlying object, or nil for a nil %s.", obj)
	f.Func().Params(jen.Id("o").Op("*").Id(obj)).Id("Object").Params().Op("*").Qual(jniPath, "Object").
		Block(
			jen.If(jen.Id("o").Op("==").Nil()).Block(jen.Return(jen.Nil())),
			jen.Return(jen.Id("o").Dot("obj")),
		)
	f.Line()

	for _, m := range methods {
		params, args := g.params(m.args)
		call := jen.Id("o").Dot("obj").Dot("Call").Call(append([]jen.Code{jen.Lit(m.m.Name)}, args...)...)
		f.Commentf("%s calls %s%s.", m.goName, m.m.RuntimeName, m.m.Signature)
		f.Func().Params(jen.Id("o").Op("*").Id(obj)).Id(m.goName).Params(params...).
			Add(g.results(m.ret)).
			Block(g.returnStmt(m.ret, call)...)
		f.Line()
	}
	for _, fd := range ifields {
		g.generateAccessors(f, jen.Id("o").Op("*").Id(obj), jen.Id("o").Dot("obj"), "Get", "Set", fd)
	}
	return nil
}

func (g *generator) results(ret sig.Type) *jen.Statement {
	if ret.Kind() == sig.KindVoid {
		return jen.Error()
	}
	return jen.Params(g.goType(ret), jen.Error())
}

// generateBind emits BindX, which resolves the class and registers its
// declared members.
func (g *generator) generateBind(f *jen.File, cls *manifest.CatalogClass, name string) {
	var regs []jen.Code
	r := jen.Id("r")
	for _, c := range cls.Constructors {
		args, _ := c.ArgTypes()
		vals := make([]jen.Code, len(args))
		for i, a := range args {
			vals[i] = tagExpr(a)
		}
		regs = append(regs, r.Clone().Dot("Constructor").Call(vals...))
	}
	for _, m := range cls.Methods {
		args, _ := m.ArgTypes()
		ret, _ := m.ReturnType()
		fn := "Method"
		if m.Static {
			fn = "StaticMethod"
		}
		regs = append(regs, r.Clone().Dot(fn).Call(jen.Lit(m.Name), tagList(args), tagExpr(ret)))
	}
	for _, fd := range cls.Fields {
		t, _ := fd.ReturnType()
		fn := "Field"
		if fd.Static {
			fn = "StaticField"
		}
		regs = append(regs, r.Clone().Dot(fn).Call(jen.Lit(fd.Name), tagExpr(t)))
	}

	f.Commentf("Bind%s resolves %s in env and registers its declared members.", name, cls.Name)
	f.Func().Id("Bind"+name).
		Params(jen.Id("env").Op("*").Qual(jniPath, "Env")).
		Params(jen.Op("*").Id(name), jen.Error()).
		Block(
			jen.List(jen.Id("c"), jen.Err()).Op(":=").Id("env").Dot("Class").Call(jen.Lit(cls.Name)),
			jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err())),
			jen.Err().Op("=").Id("c").Dot("Register").Call(
				jen.Func().Params(jen.Id("r").Op("*").Qual(jniPath, "Registrar")).Block(regs...),
			),
			jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err())),
			jen.Return(jen.Op("&").Id(name).Values(jen.Dict{jen.Id("class"): jen.Id("c")}), jen.Nil()),
		)
	f.Line()
}

// constructors names the class's constructors New, or NewN by arity when
// there are several.
func (g *generator) constructors(cls *manifest.CatalogClass, set *names) ([]member, error) {
	ctors := append([]manifest.Member(nil), cls.Constructors...)
	sort.SliceStable(ctors, func(i, j int) bool { return len(ctors[i].Args) < len(ctors[j].Args) })

	var out []member
	for _, c := range ctors {
		args, err := c.ArgTypes()
		if err != nil {
			return nil, fmt.Errorf("constructor: %w", err)
		}
		want := "New"
		if len(ctors) > 1 {
			want += strconv.Itoa(len(args))
		}
		goName, _ := set.take(want)
		out = append(out, member{goName: goName, m: c, args: args, ret: sig.Void})
	}
	return out, nil
}

type field struct {
	getter, setter string
	m              manifest.Member
	typ            sig.Type
}

func (g *generator) fields(cls *manifest.CatalogClass, in []manifest.Member, set *names) ([]field, error) {
	var out []field
	for _, m := range in {
		t, err := m.ReturnType()
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", m.Name, err)
		}
		base := ToPascalCase(m.Name)
		getter, r1 := set.take(base)
		setter, r2 := set.take("Set" + base)
		if r1 || r2 {
			g.warnf("%s: field %s accessors renamed to %s/%s", cls.Name, m.Name, getter, setter)
		}
		out = append(out, field{getter: getter, setter: setter, m: m, typ: t})
	}
	return out, nil
}

func (g *generator) generateAccessors(f *jen.File, recv *jen.Statement, target *jen.Statement, get, set string, fd field) {
	call := target.Clone().Dot(get).Call(jen.Lit(fd.m.Name))
	f.Commentf("%s reads %s.", fd.getter, fd.m.Name)
	f.Func().Params(recv.Clone()).Id(fd.getter).Params().
		Add(g.results(fd.typ)).
		Block(g.returnStmt(fd.typ, call)...)
	f.Line()

	params, args := g.params([]sig.Type{fd.typ})
	f.Commentf("%s writes %s.", fd.setter, fd.m.Name)
	f.Func().Params(recv.Clone()).Id(fd.setter).Params(params...).Error().
		Block(jen.Return(target.Clone().Dot(set).Call(jen.Lit(fd.m.Name), args[0])))
	f.Line()
}
