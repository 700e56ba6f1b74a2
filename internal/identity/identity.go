// Package identity defines the current-owner signal the rest of the module
// consumes, and its Firebase Auth implementation.
//
// The owner id is a pure partition key here: nothing in this module treats it
// as a credential.
package identity

import (
	"context"
	"sync"
)

// A Provider exposes the signed-in principal and the authentication
// operations of the external identity service.
type Provider interface {
	// CurrentOwnerID returns the owner id of the signed-in principal, or
	// the empty string when there is no session.
	CurrentOwnerID() string
	// Watch registers fn on the owner signal. It delivers the current value
	// immediately, then once per transition, strictly serialized. The
	// returned cancel function is idempotent.
	Watch(fn func(ownerID string)) (cancel func())
	// SignIn opens a session for the given credentials.
	SignIn(ctx context.Context, email, password string) error
	// SignUp creates an account, opens its session and returns the new
	// owner id.
	SignUp(ctx context.Context, email, password string) (string, error)
	// SignOut closes the current session.
	SignOut() error
}

// A Signal is the broadcaster behind CurrentOwnerID and Watch. Emissions are
// serialized so owner transitions can never interleave.
type Signal struct {
	mu       sync.Mutex
	emitting sync.Mutex
	owner    string
	watchers map[int]func(string)
	nextID   int
}

// CurrentOwnerID returns the last emitted owner id.
func (s *Signal) CurrentOwnerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Watch implements Provider.
func (s *Signal) Watch(fn func(ownerID string)) (cancel func()) {
	s.emitting.Lock()
	s.mu.Lock()
	if s.watchers == nil {
		s.watchers = make(map[int]func(string))
	}
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	owner := s.owner
	s.mu.Unlock()

	fn(owner)
	s.emitting.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

// Set emits a new owner id to every watcher. Setting the same value again is
// still emitted; callers decide whether a transition is meaningful.
func (s *Signal) Set(ownerID string) {
	s.emitting.Lock()
	defer s.emitting.Unlock()

	s.mu.Lock()
	s.owner = ownerID
	watchers := make([]func(string), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(ownerID)
	}
}
