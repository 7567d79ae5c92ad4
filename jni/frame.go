package jni

import (
	"errors"
	"fmt"
)

// Frame is a scope of object references. Every reference the dispatcher
// receives is tracked in the Env's current frame; popping the frame releases
// all of them except those explicitly kept.
//
// Frames nest: PushFrame opens a child of the current frame and Pop must be
// called on the innermost frame first.
type Frame struct {
	env    *Env
	parent *Frame
	refs   []*Ref
	popped bool
}

func (f *Frame) track(r *Ref) {
	r.frame = f
	f.refs = append(f.refs, r)
}

func (f *Frame) untrack(r *Ref) {
	for i, x := range f.refs {
		if x == r {
			f.refs = append(f.refs[:i], f.refs[i+1:]...)
			break
		}
	}
	r.frame = nil
}

// Len returns the number of live references tracked by the frame.
func (f *Frame) Len() int {
	f.env.mu.Lock()
	defer f.env.mu.Unlock()
	n := 0
	for _, r := range f.refs {
		if !r.released {
			n++
		}
	}
	return n
}

// Pop releases every reference tracked by the frame except those held by
// keep, which move to the parent frame. Release errors are joined; the frame
// is closed either way.
func (f *Frame) Pop(keep ...*Object) error {
	e := f.env
	e.mu.Lock()
	if f.popped {
		e.mu.Unlock()
		return fmt.Errorf("%w: frame already popped", ErrBridge)
	}
	if f.parent == nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: the root frame is released by Env.Close", ErrBridge)
	}
	if e.top != f {
		e.mu.Unlock()
		return fmt.Errorf("%w: frame popped out of order", ErrBridge)
	}

	kept := make(map[*Ref]bool, len(keep))
	for _, o := range keep {
		if o != nil && o.ref != nil && o.ref.frame == f {
			kept[o.ref] = true
		}
	}
	var release []*Ref
	for _, r := range f.refs {
		switch {
		case r.released:
		case kept[r]:
			f.parent.track(r)
		default:
			release = append(release, r)
		}
	}
	f.refs = nil
	f.popped = true
	e.top = f.parent
	e.mu.Unlock()

	var errs []error
	for i := len(release) - 1; i >= 0; i-- {
		if err := e.deleteRef(release[i]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(release) > 0 {
		e.log.Debugf("popped frame: released %d refs, kept %d", len(release), len(kept))
	}
	return errors.Join(errs...)
}
