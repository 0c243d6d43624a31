// Package registry implements spec §9's redesign of the original source's
// cyclic shared-ownership scheme (reference-counted handles, weak
// back-references, a delayed-destructor queue, and a static "tripwire"
// process flag) into an explicit lifecycle: every core/broker is owned by a
// single process-wide Registry; callers hold a stable id and look objects up
// through it; a core/broker drops only once its reference count reaches
// zero; processing threads signal completion through a join token instead of
// a delayed destructor racing process teardown. Grounded on the original
// source's TripWire/delayedDestructor pattern
// (_examples/original_source/src/helics/common/TripWire.{hpp,cpp},
// delayedDestructor.hpp) and the teacher's mutex-guarded map registries
// (_examples/luxfi-consensus/networking/router,
// _examples/luxfi-consensus/networking/handler/notifier.go).
package registry

import (
	"sync"

	"github.com/GMLC-TDC/HELICS-sub010/herrors"
)

// Handle is anything the registry can own: a *core.Core or *broker.Broker in
// practice, kept as an opaque interface here to avoid a dependency cycle
// (core and broker both want to register themselves at construction time).
type Handle interface {
	// Shutdown releases the handle's own resources once its reference count
	// reaches zero. It must be safe to call exactly once.
	Shutdown()
}

// entry is one registered object plus its reference count and join token.
type entry struct {
	name   string
	handle Handle
	refs   int
	join   *JoinToken
}

// Registry is the process-wide, mutex-protected core/broker registry of spec
// §9: "each core owned by a single registry; federates hold a stable core id
// and look it up; drop the core only when ID references reach zero."
type Registry struct {
	mu       sync.Mutex
	byName   map[string]*entry
	nextID   uint64
	byID     map[uint64]*entry
	shutdown *ShutdownToken
}

// New returns an empty Registry with a fresh (unsignaled) ShutdownToken.
func New() *Registry {
	return &Registry{
		byName:   make(map[string]*entry),
		byID:     make(map[uint64]*entry),
		shutdown: NewShutdownToken(),
	}
}

// Register adds handle under name with an initial reference count of 1,
// returning a stable id and a fresh JoinToken for the entry, signaled once
// the entry is released and shut down. Registering a duplicate name fails.
func (r *Registry) Register(name string, handle Handle) (uint64, *JoinToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return 0, nil, herrors.New(herrors.ErrRegistrationFailure, herrors.RegistrationFailure, "registry: %q already registered", name)
	}
	r.nextID++
	id := r.nextID
	e := &entry{name: name, handle: handle, refs: 1, join: NewJoinToken()}
	r.byName[name] = e
	r.byID[id] = e
	return id, e.join, nil
}

// Lookup resolves id to its live handle, or false if it has already been
// shut down and removed.
func (r *Registry) Lookup(id uint64) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

// LookupByName resolves a registered object by name.
func (r *Registry) LookupByName(name string) (Handle, uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byName[name]
	if !ok {
		return nil, 0, false
	}
	for id, v := range r.byID {
		if v == e {
			return e.handle, id, true
		}
	}
	return e.handle, 0, true
}

// AddRef increments id's reference count, for a new federate that begins
// holding a stable reference to an already-registered core.
func (r *Registry) AddRef(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return herrors.New(herrors.ErrInvalidArgument, herrors.InvalidObject, "registry: unknown id %d", id)
	}
	e.refs++
	return nil
}

// Release decrements id's reference count. Once it reaches zero the handle's
// Shutdown is invoked and it is removed from the registry — replacing the
// original source's delayed-destructor queue with an immediate, in-call
// drop, since Go's GC makes "outside any held lock" unnecessary as long as
// Shutdown itself does not hold the registry mutex (callers must ensure
// this; Shutdown runs after the registry lock is released below).
func (r *Registry) Release(id uint64) error {
	r.mu.Lock()
	e, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return herrors.New(herrors.ErrInvalidArgument, herrors.InvalidObject, "registry: unknown id %d", id)
	}
	e.refs--
	shouldShutdown := e.refs <= 0
	if shouldShutdown {
		delete(r.byID, id)
		delete(r.byName, e.name)
	}
	r.mu.Unlock()

	if shouldShutdown {
		e.handle.Shutdown()
		e.join.Signal()
	}
	return nil
}

// Shutdown signals this registry's process-wide ShutdownToken, replacing the
// original source's static TripWire flag: any processing thread still
// polling the token sees it fire exactly once and exits cooperatively
// instead of racing library teardown.
func (r *Registry) Shutdown() {
	r.shutdown.Fire()
}

// ShutdownToken returns the registry's process-wide shutdown signal.
func (r *Registry) ShutdownToken() *ShutdownToken {
	return r.shutdown
}

// JoinToken is a one-shot completion signal a registered object's processing
// thread closes when it exits, replacing the original source's
// delayedDestructor join-and-drop sequence with an explicit, waitable
// handle.
type JoinToken struct {
	done chan struct{}
	once sync.Once
}

// NewJoinToken returns an unsignaled JoinToken.
func NewJoinToken() *JoinToken {
	return &JoinToken{done: make(chan struct{})}
}

// Signal marks the token complete. Safe to call more than once.
func (j *JoinToken) Signal() {
	j.once.Do(func() { close(j.done) })
}

// Done returns a channel closed once Signal has been called, for a caller
// that wants to wait for a processing thread to fully exit before treating
// the object as gone.
func (j *JoinToken) Done() <-chan struct{} { return j.done }

// ShutdownToken is the explicit, registry-owned replacement for the original
// source's static TripWire: a single process-wide flag, signaled exactly
// once, that processing threads can poll or select on to detect teardown
// without joining after the process itself has begun exiting.
type ShutdownToken struct {
	fired chan struct{}
	once  sync.Once
}

// NewShutdownToken returns an unfired ShutdownToken.
func NewShutdownToken() *ShutdownToken {
	return &ShutdownToken{fired: make(chan struct{})}
}

// Fire signals teardown. Safe to call more than once.
func (s *ShutdownToken) Fire() {
	s.once.Do(func() { close(s.fired) })
}

// Fired returns a channel that is closed once Fire has been called.
func (s *ShutdownToken) Fired() <-chan struct{} { return s.fired }

// IsFired reports whether Fire has already been called, without blocking.
func (s *ShutdownToken) IsFired() bool {
	select {
	case <-s.fired:
		return true
	default:
		return false
	}
}
