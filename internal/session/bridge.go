// Package session ties the identity signal to the lifetime of the
// synchronization engine. The bridge is the exclusive owner of the single
// live engine; presentation layers never construct or dispose one.
package session

import (
	"context"
	"fmt"
	stdsync "sync"

	"github.com/sirupsen/logrus"
	"github.com/taskmirror/taskmirror/internal/codec"
	"github.com/taskmirror/taskmirror/internal/model"
	"github.com/taskmirror/taskmirror/internal/store"
	"github.com/taskmirror/taskmirror/internal/sync"
)

// An OwnerSignal is the part of the identity provider the bridge consumes.
type OwnerSignal interface {
	// CurrentOwnerID returns the owner id of the signed-in principal, or
	// the empty string when there is no session.
	CurrentOwnerID() string
	// Watch registers fn on the owner signal, delivering the current value
	// immediately and then every transition, serialized.
	Watch(fn func(ownerID string)) (cancel func())
}

// A SessionError reports a failed one-shot profile fetch. The profile stays
// absent; there is no automatic retry.
type SessionError struct {
	OwnerID string
	Err     error
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	return fmt.Sprintf("session: could not fetch profile of %s: %s", e.OwnerID, e.Err)
}

// Unwrap returns the underlying error.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// A Bridge stands up one engine per signed-in owner and tears it down on
// every owner transition. Transitions are serialized by the signal stream.
type Bridge struct {
	stores store.Provider
	log    logrus.FieldLogger
	cancel func()

	mu         stdsync.Mutex
	engine     *sync.Engine
	profile    *model.Profile
	profileErr error
	closed     bool
}

// NewBridge returns a new Bridge watching the given signal. If an owner is
// already signed in, its engine is constructed before NewBridge returns.
func NewBridge(signal OwnerSignal, stores store.Provider, log logrus.FieldLogger) *Bridge {
	if log == nil {
		log = logrus.StandardLogger()
	}

	b := &Bridge{stores: stores, log: log}
	b.cancel = signal.Watch(b.transition)
	return b
}

// Engine returns the live engine, or nil when no owner is signed in.
func (b *Bridge) Engine() *sync.Engine {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine
}

// Profile returns the owner's profile projection. The error, if any, is the
// *SessionError of the one-shot fetch performed at activation.
func (b *Bridge) Profile() (*model.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.profile, b.profileErr
}

// Close stops watching the signal and disposes any live engine. Idempotent.
func (b *Bridge) Close() error {
	b.cancel()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	engine := b.engine
	b.engine = nil
	b.profile = nil
	b.profileErr = nil
	b.mu.Unlock()

	if engine != nil {
		engine.Dispose()
	}
	return nil
}

// transition reacts to one owner change: previous engine first, new engine
// after, so two engines never overlap.
func (b *Bridge) transition(ownerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	if b.engine != nil {
		b.engine.Dispose()
		b.engine = nil
		b.profile = nil
		b.profileErr = nil
	}

	if ownerID == "" {
		return
	}

	ctx := context.Background()
	engine, err := sync.NewEngine(ctx, ownerID, b.stores.Todos(ownerID), b.log)
	if err != nil {
		b.log.WithField("owner", ownerID).WithError(err).Error("could not start synchronization engine")
		return
	}
	b.engine = engine

	fields, err := b.stores.Profile(ctx, ownerID)
	if err != nil {
		b.profileErr = &SessionError{OwnerID: ownerID, Err: err}
		b.log.WithField("owner", ownerID).WithError(err).Warn("could not fetch profile")
		return
	}
	profile := codec.DecodeProfile(ownerID, fields)
	b.profile = &profile
}
