package store

import (
	"context"
	"fmt"
	"io"
)

type (
	// Fields is the raw, untyped field map of a single document.
	Fields map[string]any

	// A Document is one raw record delivered by the store, identified by the
	// last segment of its path.
	Document struct {
		ID     string
		Fields Fields
	}

	// A Query describes the ordering of a subscription's snapshots.
	Query struct {
		OrderBy    string
		Descending bool
	}

	// A SnapshotFunc receives either the full current ordered set of raw
	// documents whenever anything in the collection changes, or an error.
	// Implementations of Collection must deliver calls in order, from a
	// single goroutine per subscription.
	SnapshotFunc func(docs []Document, err error)

	// A Subscription is a live change-notification handle.
	Subscription interface {
		// Unsubscribe releases the subscription. It is idempotent and safe
		// to call multiple times.
		Unsubscribe()
	}

	// A Collection exposes the scoped operations of one owner's document
	// collection. It is the only network-facing contract of the module.
	Collection interface {
		// Create writes the document at the given id, overwriting any
		// existing content. Re-creating the same id with the same fields is
		// a no-op from the mirror's perspective.
		Create(ctx context.Context, id string, fields Fields) error
		// UpdateFields merges only the given fields into an existing
		// document. Updating a missing document is an error, never an
		// upsert.
		UpdateFields(ctx context.Context, id string, fields Fields) error
		// Delete removes the document.
		Delete(ctx context.Context, id string) error
		// Subscribe opens a live change subscription ordered by the query.
		Subscribe(ctx context.Context, q Query, fn SnapshotFunc) (Subscription, error)
	}

	// A Provider scopes collections and profile documents by owner.
	Provider interface {
		// Todos returns the task collection of the given owner.
		Todos(ownerID string) Collection
		// Profile performs the one-shot read of the owner's profile document.
		Profile(ctx context.Context, ownerID string) (Fields, error)
		// SaveProfile writes the owner's profile document.
		SaveProfile(ctx context.Context, ownerID string, fields Fields) error

		io.Closer
	}
)

// Collection and profile path segments shared by all store adapters.
const (
	OwnersCollection = "owners"
	TodosCollection  = "todos"
)

// An Error wraps a store-layer failure with the operation and document path
// that produced it.
type Error struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("store: %s %s: %s", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError returns a new store Error.
func NewError(op, path string, err error) *Error {
	return &Error{Op: op, Path: path, Err: err}
}
