// Package simjvm is an in-process managed runtime that implements jni.Bridge
// over a small hand-written class table. It backs the CLI's serve command
// and the tests of every package that needs a working bridge.
package simjvm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chazu/jnibind/jni"
	"github.com/tliron/commonlog"
)

// Runtime is a simulated JVM. It is safe for concurrent use.
type Runtime struct {
	mu      sync.Mutex
	classes map[string]*Class
	live    map[*jni.Ref]struct{}
	nextID  int
	log     commonlog.Logger
}

// Class is a class defined in the runtime.
type Class struct {
	Name  string
	Super *Class

	ctors   map[string]*Method
	methods map[string]*Method // name + signature
	fields  map[string]*Field
}

// ClassDef declares a class for Define. Super defaults to java.lang.Object.
type ClassDef struct {
	Name         string
	Super        string
	Constructors []Method
	Methods      []Method
	Fields       []Field
}

// Method is a constructor or method implementation. Constructors use the
// name "<init>" and initialize Call.This.
type Method struct {
	Name      string
	Signature string
	Static    bool
	Impl      func(c *Call) (any, error)

	class *Class
}

// Field is a field declaration. Static fields hold their value in Value;
// instance fields start at the zero value of their signature.
type Field struct {
	Name      string
	Signature string
	Static    bool
	Value     any

	class *Class
}

// Instance is an object living in the runtime.
type Instance struct {
	Class  *Class
	Value  any
	Fields map[string]any

	id int
}

// New returns a runtime preloaded with the standard class table.
func New() *Runtime {
	rt := &Runtime{
		classes: make(map[string]*Class),
		live:    make(map[*jni.Ref]struct{}),
		log:     commonlog.GetLogger("jnibind.simjvm"),
	}
	for _, def := range builtinClasses() {
		if err := rt.Define(def); err != nil {
			panic(err)
		}
	}
	return rt
}

// Define adds a class. The superclass must already be defined.
func (rt *Runtime) Define(def ClassDef) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, ok := rt.classes[def.Name]; ok {
		return fmt.Errorf("simjvm: class %s already defined", def.Name)
	}
	c := &Class{
		Name:    def.Name,
		ctors:   make(map[string]*Method),
		methods: make(map[string]*Method),
		fields:  make(map[string]*Field),
	}
	if def.Name != "java.lang.Object" {
		super := def.Super
		if super == "" {
			super = "java.lang.Object"
		}
		c.Super = rt.classes[super]
		if c.Super == nil {
			return fmt.Errorf("simjvm: superclass %s of %s not defined", super, def.Name)
		}
	}
	for i := range def.Constructors {
		m := def.Constructors[i]
		m.Name, m.class = "<init>", c
		c.ctors[m.Signature] = &m
	}
	for i := range def.Methods {
		m := def.Methods[i]
		m.class = c
		c.methods[m.Name+m.Signature] = &m
	}
	for i := range def.Fields {
		f := def.Fields[i]
		f.class = c
		c.fields[f.Name] = &f
	}
	rt.classes[def.Name] = c
	return nil
}

// Lookup returns a defined class by dotted name.
func (rt *Runtime) Lookup(name string) (*Class, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	c, ok := rt.classes[name]
	return c, ok
}

// ClassNames returns the names of all defined classes.
func (rt *Runtime) ClassNames() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]string, 0, len(rt.classes))
	for name := range rt.classes {
		out = append(out, name)
	}
	return out
}

// LiveRefs returns the number of references handed out and not deleted.
func (rt *Runtime) LiveRefs() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.live)
}

// NewString allocates a java.lang.String instance.
func (rt *Runtime) NewString(s string) *Instance {
	return rt.NewInstance(rt.mustClass("java.lang.String"), s)
}

// NewInstance allocates an instance of c holding value.
func (rt *Runtime) NewInstance(c *Class, value any) *Instance {
	rt.mu.Lock()
	rt.nextID++
	id := rt.nextID
	rt.mu.Unlock()
	return &Instance{Class: c, Value: value, Fields: make(map[string]any), id: id}
}

// Ref mints a live reference to inst. Tests use it to hand host-side code
// objects the runtime created.
func (rt *Runtime) Ref(inst *Instance) *jni.Ref {
	return rt.mint(inst, "jobject", rt.describe(inst))
}

// Throw builds the error a method implementation returns to raise a
// throwable of class with message.
func Throw(class, message string) error {
	return jni.TranslateThrowable(class, message)
}

func (rt *Runtime) mustClass(name string) *Class {
	c, ok := rt.Lookup(name)
	if !ok {
		panic("simjvm: missing builtin class " + name)
	}
	return c
}

// arrayClass returns, defining on first use, the class for an array
// descriptor such as "[I" or "[Ljava/lang/String;".
func (rt *Runtime) arrayClass(desc string) *Class {
	name := strings.ReplaceAll(desc, "/", ".")
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if c, ok := rt.classes[name]; ok {
		return c
	}
	c := &Class{
		Name:    name,
		Super:   rt.classes["java.lang.Object"],
		ctors:   make(map[string]*Method),
		methods: make(map[string]*Method),
		fields:  make(map[string]*Field),
	}
	rt.classes[name] = c
	return c
}

func (rt *Runtime) mint(token any, typeName, qualifier string) *jni.Ref {
	r := jni.NewRef(token, typeName, qualifier)
	rt.mu.Lock()
	rt.live[r] = struct{}{}
	rt.mu.Unlock()
	return r
}

func (rt *Runtime) isLive(r *jni.Ref) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	_, ok := rt.live[r]
	return ok
}

// describe renders an instance the way toString would.
func (rt *Runtime) describe(inst *Instance) string {
	if m := inst.Class.findMethod("toString", "()Ljava/lang/String;"); m != nil && m.class.Name != "java.lang.Object" {
		if v, err := m.Impl(&Call{Runtime: rt, This: inst, Class: inst.Class}); err == nil {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return fmt.Sprintf("%s@%x", inst.Class.Name, inst.id)
}

// IsSubclassOf reports whether c is other or inherits from it. Array classes
// are covariant in their element class.
func (c *Class) IsSubclassOf(other *Class) bool {
	for k := c; k != nil; k = k.Super {
		if k == other {
			return true
		}
	}
	if strings.HasPrefix(c.Name, "[L") && strings.HasPrefix(other.Name, "[L") {
		return elemName(c.Name) == elemName(other.Name) || elemName(other.Name) == "java.lang.Object"
	}
	return false
}

func elemName(desc string) string {
	return strings.TrimSuffix(strings.TrimPrefix(desc, "[L"), ";")
}

// findMethod walks the class chain for an instance or static method.
func (c *Class) findMethod(name, signature string) *Method {
	for k := c; k != nil; k = k.Super {
		if m, ok := k.methods[name+signature]; ok {
			return m
		}
	}
	return nil
}

func (c *Class) findField(name string) *Field {
	for k := c; k != nil; k = k.Super {
		if f, ok := k.fields[name]; ok {
			return f
		}
	}
	return nil
}

// Call carries the receiver and arguments of one invocation. Reference
// arguments arrive as *Instance; strings may arrive as Go strings or String
// instances.
type Call struct {
	Runtime *Runtime
	This    *Instance
	Class   *Class
	Args    []any
}

// String returns argument i as a Go string. ok is false for null.
func (c *Call) String(i int) (s string, ok bool) {
	switch v := c.Args[i].(type) {
	case string:
		return v, true
	case *Instance:
		s, ok = v.Value.(string)
		return s, ok
	}
	return "", false
}

func (c *Call) Bool(i int) bool {
	v, _ := c.Args[i].(bool)
	return v
}

func (c *Call) Int(i int) int32 {
	v, _ := c.Args[i].(int32)
	return v
}

func (c *Call) Long(i int) int64 {
	v, _ := c.Args[i].(int64)
	return v
}

func (c *Call) Char(i int) uint16 {
	v, _ := c.Args[i].(uint16)
	return v
}

func (c *Call) Float(i int) float32 {
	v, _ := c.Args[i].(float32)
	return v
}

func (c *Call) Double(i int) float64 {
	v, _ := c.Args[i].(float64)
	return v
}

func (c *Call) Object(i int) *Instance {
	v, _ := c.Args[i].(*Instance)
	return v
}

// Str returns the receiver's string value.
func (c *Call) Str() string {
	s, _ := c.This.Value.(string)
	return s
}
