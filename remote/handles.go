package remote

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/jnibind/jni"
)

// handle is a server-side entry for a Ref or MemberID held by a client.
type handle struct {
	id        string
	ref       *jni.Ref
	member    *jni.MemberID
	sessionID string
	created   time.Time
	lastUsed  time.Time
}

// HandleStore maps opaque uuid handle ids to the references and member ids
// the bridge returned. References stay alive in the bridge until their
// handle is released, their session ends, or the sweeper expires them.
type HandleStore struct {
	mu      sync.Mutex
	handles map[string]*handle
	worker  *Worker
	log     commonlog.Logger
}

// NewHandleStore creates a new handle store. Released references are
// deleted through worker.
func NewHandleStore(worker *Worker, log commonlog.Logger) *HandleStore {
	return &HandleStore{
		handles: make(map[string]*handle),
		worker:  worker,
		log:     log,
	}
}

// Create registers a reference and returns its handle id.
func (s *HandleStore) Create(ref *jni.Ref, sessionID string) string {
	return s.add(&handle{ref: ref, sessionID: sessionID})
}

// CreateMember registers a member id and returns its handle id.
func (s *HandleStore) CreateMember(member *jni.MemberID, sessionID string) string {
	return s.add(&handle{member: member, sessionID: sessionID})
}

func (s *HandleStore) add(h *handle) string {
	h.id = uuid.NewString()
	now := time.Now()
	h.created, h.lastUsed = now, now

	s.mu.Lock()
	s.handles[h.id] = h
	s.mu.Unlock()
	return h.id
}

// Lookup retrieves the reference for a handle and refreshes its TTL.
func (s *HandleStore) Lookup(id string) (*jni.Ref, bool) {
	h, ok := s.touch(id)
	if !ok || h.ref == nil {
		return nil, false
	}
	return h.ref, true
}

// LookupMember retrieves the member id for a handle and refreshes its TTL.
func (s *HandleStore) LookupMember(id string) (*jni.MemberID, bool) {
	h, ok := s.touch(id)
	if !ok || h.member == nil {
		return nil, false
	}
	return h.member, true
}

func (s *HandleStore) touch(id string) (*handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[id]
	if !ok {
		return nil, false
	}
	h.lastUsed = time.Now()
	return h, true
}

// Forget removes a handle without releasing its reference and returns the
// reference, if any. Callers on the worker goroutine use it before deleting
// the reference themselves.
func (s *HandleStore) Forget(id string) (*jni.Ref, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[id]
	if !ok {
		return nil, false
	}
	delete(s.handles, id)
	return h.ref, true
}

// ReleaseSession releases all handles owned by a session and returns how
// many were removed.
func (s *HandleStore) ReleaseSession(sessionID string) int {
	return s.releaseWhere(func(h *handle) bool { return h.sessionID == sessionID })
}

// Sweep removes handles that haven't been accessed within the TTL.
func (s *HandleStore) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	n := s.releaseWhere(func(h *handle) bool { return h.lastUsed.Before(cutoff) })
	if n > 0 {
		s.log.Infof("swept %d idle handles", n)
	}
	return n
}

// Len returns the number of live handles.
func (s *HandleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Sessions returns the number of sessions holding at least one handle.
func (s *HandleStore) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]bool{}
	for _, h := range s.handles {
		seen[h.sessionID] = true
	}
	return len(seen)
}

// releaseWhere removes matching handles, then deletes their references on
// the worker. The store lock is not held while the worker runs, since the
// worker creates handles itself.
func (s *HandleStore) releaseWhere(match func(*handle) bool) int {
	var refs []*jni.Ref
	removed := 0

	s.mu.Lock()
	for id, h := range s.handles {
		if match(h) {
			if h.ref != nil {
				refs = append(refs, h.ref)
			}
			delete(s.handles, id)
			removed++
		}
	}
	s.mu.Unlock()

	if len(refs) > 0 {
		_, err := s.worker.Do(func(b jni.Bridge) (any, error) {
			var errs []error
			for _, r := range refs {
				if err := b.DeleteRef(r); err != nil {
					errs = append(errs, err)
				}
			}
			return nil, errors.Join(errs...)
		})
		if err != nil {
			s.log.Warningf("releasing %d references: %s", len(refs), err)
		}
	}
	return removed
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *HandleStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
