package jni

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/jnibind/sig"
	"github.com/tliron/commonlog"
)

// Env is a binding session over one Bridge. It memoizes class bindings by
// name and owns the frame stack that scopes object references.
type Env struct {
	bridge Bridge
	log    commonlog.Logger

	mu      sync.Mutex
	classes map[string]*Class
	root    *Frame
	top     *Frame
	closed  bool
}

// Option configures an Env.
type Option func(*Env)

// WithLogger sets the logger used for registration warnings and reference
// accounting.
func WithLogger(log commonlog.Logger) Option {
	return func(e *Env) {
		e.log = log
	}
}

// NewEnv creates a binding session over b.
func NewEnv(b Bridge, opts ...Option) *Env {
	e := &Env{
		bridge:  b,
		log:     commonlog.GetLogger("jnibind.env"),
		classes: make(map[string]*Class),
	}
	e.root = &Frame{env: e}
	e.top = e.root
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bridge returns the underlying bridge.
func (e *Env) Bridge() Bridge { return e.bridge }

// Logger returns the session logger.
func (e *Env) Logger() commonlog.Logger { return e.log }

// Class returns the binding for a class, looking it up on first use.
// name may be dotted ("java.net.URL"), slash-separated ("java/net/URL") or an
// array descriptor ("[I"). The same *Class is returned for every spelling.
func (e *Env) Class(name string) (*Class, error) {
	dotted := dottedName(name)
	if c := e.cachedClass(dotted); c != nil {
		return c, nil
	}
	if dotted == "" || (!sig.IsClassName(dotted) && dotted[0] != '[') {
		return nil, fmt.Errorf("%w: invalid class name %q", ErrClassNotFound, name)
	}
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	ref, err := e.bridge.FindClass(slashName(dotted))
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}

	return e.bindClass(ref, dotted), nil
}

// bindClass records a class binding in the root frame. If a binding for the
// same name already exists, ref is released and the existing one returned.
func (e *Env) bindClass(ref *Ref, dotted string) *Class {
	e.mu.Lock()
	if c, ok := e.classes[dotted]; ok {
		e.mu.Unlock()
		if c.ref != ref {
			if err := e.deleteRef(ref); err != nil {
				e.log.Warningf("releasing duplicate class ref for %s: %s", dotted, err)
			}
		}
		return c
	}
	c := newClass(e, ref, dotted)
	if ref.frame != nil {
		ref.frame.untrack(ref)
	}
	e.root.track(ref)
	e.classes[dotted] = c
	e.mu.Unlock()
	e.log.Debugf("bound class %s", dotted)
	return c
}

// ClassFor returns the binding for the class behind a reference type tag.
func (e *Env) ClassFor(t sig.Type) (*Class, error) {
	switch t.Kind() {
	case sig.KindObject, sig.KindString:
		return e.Class(t.ClassName())
	case sig.KindArray:
		return e.Class(t.LookupName())
	}
	return nil, fmt.Errorf("%w: %s is not a reference type", ErrBridge, t)
}

// Classes returns the names of every class bound in this session.
func (e *Env) Classes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.classes))
	for name := range e.classes {
		names = append(names, name)
	}
	return names
}

// Wrap adopts an object reference obtained outside the dispatcher, tracking
// it in the current frame. declared is the static type the caller knows the
// object to have.
func (e *Env) Wrap(ref *Ref, declared sig.Type) (*Object, error) {
	if ref == nil {
		return nil, nil
	}
	if ref.released {
		return nil, fmt.Errorf("%w: %s", ErrReleased, ref)
	}
	if !declared.IsReference() {
		return nil, fmt.Errorf("%w: %s is not a reference type", ErrBridge, declared)
	}
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	if ref.frame == nil {
		e.top.track(ref)
	}
	e.mu.Unlock()
	return &Object{env: e, ref: ref, declared: declared}, nil
}

// PushFrame opens a new reference frame on top of the current one.
func (e *Env) PushFrame() *Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	f := &Frame{env: e, parent: e.top}
	e.top = f
	return f
}

// LiveRefs returns the number of unreleased references across all frames.
func (e *Env) LiveRefs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for f := e.top; f != nil; f = f.parent {
		for _, r := range f.refs {
			if !r.released {
				n++
			}
		}
	}
	return n
}

// Close releases every reference in every open frame, including class
// bindings. The Env cannot be used afterwards.
func (e *Env) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	var release []*Ref
	for f := e.top; f != nil; f = f.parent {
		for i := len(f.refs) - 1; i >= 0; i-- {
			if r := f.refs[i]; !r.released {
				release = append(release, r)
			}
		}
		f.refs = nil
		f.popped = f.parent != nil
	}
	e.top = e.root
	e.classes = make(map[string]*Class)
	e.mu.Unlock()

	var errs []error
	for _, r := range release {
		if err := e.deleteRef(r); err != nil {
			errs = append(errs, err)
		}
	}
	e.log.Debugf("closed env: released %d refs", len(release))
	return errors.Join(errs...)
}

func (e *Env) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("%w: env closed", ErrBridge)
	}
	return nil
}

func (e *Env) cachedClass(dotted string) *Class {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.classes[dotted]
}

// adopt tracks a reference returned by the bridge in the current frame.
func (e *Env) adopt(r *Ref) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.top.track(r)
}

// release hands a tracked reference back to the bridge and forgets it.
func (e *Env) release(r *Ref) error {
	e.mu.Lock()
	if r.released {
		e.mu.Unlock()
		return nil
	}
	if r.frame != nil {
		r.frame.untrack(r)
	}
	e.mu.Unlock()
	return e.deleteRef(r)
}

func (e *Env) deleteRef(r *Ref) error {
	if r.released {
		return nil
	}
	err := e.bridge.DeleteRef(r)
	r.released = true
	return err
}
