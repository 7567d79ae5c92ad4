package remote

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/chazu/jnibind/jni"
)

// ErrStopped is returned by Worker.Do after Stop.
var ErrStopped = errors.New("remote: worker stopped")

// request represents a unit of work to be executed on the worker goroutine.
type request struct {
	fn   func(jni.Bridge) (any, error)
	done chan result
}

// result holds the return value from a bridge operation.
type result struct {
	value any
	err   error
}

// Worker serializes all bridge access through a single goroutine locked to
// one OS thread. Native invocation environments are bound to the thread
// that attached them, so every handler must go through the worker.
type Worker struct {
	bridge   jni.Bridge
	requests chan request
	quit     chan struct{}
	stop     sync.Once
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(b jni.Bridge) *Worker {
	w := &Worker{
		bridge:   b,
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated, locked thread.
func (w *Worker) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function against the bridge, recovering from panics.
func (w *Worker) execute(fn func(jni.Bridge) (any, error)) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("%w: panic: %v", jni.ErrBridge, r)
		}
	}()
	res.value, res.err = fn(w.bridge)
	return res
}

// Do submits a function for execution on the worker goroutine and blocks
// until it completes. Panics are returned as errors.
func (w *Worker) Do(fn func(jni.Bridge) (any, error)) (any, error) {
	req := request{
		fn:   fn,
		done: make(chan result, 1),
	}
	select {
	case <-w.quit:
		return nil, ErrStopped
	default:
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.quit:
		return nil, ErrStopped
	}
}

// Stop shuts down the worker goroutine. Pending requests fail with
// ErrStopped.
func (w *Worker) Stop() {
	w.stop.Do(func() { close(w.quit) })
}
