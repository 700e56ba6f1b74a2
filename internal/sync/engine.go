// Package sync owns the local mirror of one owner's remote task collection.
//
// The mirror is only ever replaced wholesale by decoded store snapshots;
// mutating commands go straight to the store and become visible through the
// next snapshot. This keeps the mirror store-acknowledged by construction and
// rules out optimistic-update drift.
package sync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	stdsync "sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/taskmirror/taskmirror/internal/codec"
	"github.com/taskmirror/taskmirror/internal/model"
	"github.com/taskmirror/taskmirror/internal/store"
)

// GraceTolerance is how far before the start of the current day a due date
// may fall and still be accepted at creation time.
const GraceTolerance = 60 * time.Second

type (
	// An Update is delivered to observers after every applied snapshot.
	// Err is set instead of Items/Failures when the subscription reported a
	// transient error; the mirror keeps its last-known-good value in that case.
	Update struct {
		Items    []model.Item
		Failures []*codec.DecodeFailure
		Err      error
	}

	// An Observer receives mirror updates in store delivery order.
	Observer func(Update)

	// An Engine maintains the observable mirror for a single owner.
	Engine struct {
		owner string
		todos store.Collection
		log   logrus.FieldLogger

		mu        stdsync.Mutex
		mirror    []model.Item
		failures  []*codec.DecodeFailure
		observers map[int]Observer
		nextID    int
		sub       store.Subscription
		primed    bool
		closed    bool
	}
)

// A ValidationError reports bad user input, caught before any store call.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// NewEngine constructs the engine for the given owner and opens the
// collection subscription. The caller must Dispose the engine exactly once.
func NewEngine(ctx context.Context, ownerID string, todos store.Collection, log logrus.FieldLogger) (*Engine, error) {
	if ownerID == "" {
		return nil, errors.New("empty owner id")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	e := &Engine{
		owner:     ownerID,
		todos:     todos,
		log:       log.WithField("owner", ownerID),
		observers: make(map[int]Observer),
	}

	sub, err := todos.Subscribe(ctx, store.Query{OrderBy: codec.FieldCreatedDate, Descending: true}, e.apply)
	if err != nil {
		return nil, errors.Wrap(err, "could not subscribe to collection")
	}

	e.mu.Lock()
	e.sub = sub
	e.mu.Unlock()
	return e, nil
}

// Owner returns the owner id the engine was built for.
func (e *Engine) Owner() string {
	return e.owner
}

// Items returns a copy of the current mirror, ordered by creation date
// descending.
func (e *Engine) Items() []model.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Item(nil), e.mirror...)
}

// Failures returns the decode diagnostics of the last applied snapshot.
func (e *Engine) Failures() []*codec.DecodeFailure {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*codec.DecodeFailure(nil), e.failures...)
}

// Notify registers an observer and returns its cancel function. Observers are
// invoked outside the engine lock, in store delivery order. If a snapshot has
// already been applied, the current mirror is delivered immediately.
func (e *Engine) Notify(fn Observer) (cancel func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.observers[id] = fn
	primed := e.primed
	update := Update{
		Items:    append([]model.Item(nil), e.mirror...),
		Failures: append([]*codec.DecodeFailure(nil), e.failures...),
	}
	e.mu.Unlock()

	if primed {
		fn(update)
	}

	var once stdsync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.observers, id)
			e.mu.Unlock()
		})
	}
}

// Create validates the input, builds the item and writes it to the store.
// The mirror is not touched; the item appears with the next snapshot.
func (e *Engine) Create(ctx context.Context, title string, due time.Time) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: codec.FieldTitle, Message: "please enter a title"}
	}

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if due.Before(startOfDay.Add(-GraceTolerance)) {
		return &ValidationError{Field: codec.FieldDueDate, Message: "due date cannot be in the past"}
	}

	item := model.Item{
		ID:          uuid.Must(uuid.NewV4()).String(),
		Title:       title,
		DueDate:     due,
		CreatedDate: now,
	}

	err := e.todos.Create(ctx, item.ID, codec.EncodeItem(item))
	return errors.Wrap(err, "could not create item")
}

// Delete removes the item from the store. The mirror update again comes only
// from the next snapshot.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if id == "" {
		return &ValidationError{Field: "id", Message: "missing item id"}
	}
	return errors.Wrap(e.todos.Delete(ctx, id), "could not delete item")
}

// Dispose releases the subscription. It is idempotent, and once it returns no
// snapshot callback mutates the mirror anymore.
func (e *Engine) Dispose() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	sub := e.sub
	e.observers = make(map[int]Observer)
	e.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// apply is the single mutation path of the mirror. Snapshots are applied in
// delivery order, whole; decode failures are dropped individually.
func (e *Engine) apply(docs []store.Document, err error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	var update Update
	if err != nil {
		// Transient subscription error: keep the last-known-good mirror.
		e.log.WithError(err).Warn("collection subscription error")
		update = Update{Items: append([]model.Item(nil), e.mirror...), Err: err}
	} else {
		items := make([]model.Item, 0, len(docs))
		var failures []*codec.DecodeFailure
		for _, doc := range docs {
			item, derr := codec.DecodeItem(doc.ID, doc.Fields)
			if derr != nil {
				var failure *codec.DecodeFailure
				if errors.As(derr, &failure) {
					failures = append(failures, failure)
				}
				e.log.WithField("document", doc.ID).WithError(derr).Warn("dropping malformed document")
				continue
			}
			items = append(items, item)
		}

		// The store's order is trusted for ties; the stable sort only
		// enforces the creation-date ordering itself.
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].CreatedDate.After(items[j].CreatedDate)
		})

		e.mirror = items
		e.failures = failures
		e.primed = true
		update = Update{Items: append([]model.Item(nil), items...), Failures: failures}
	}

	observers := make([]Observer, 0, len(e.observers))
	for _, fn := range e.observers {
		observers = append(observers, fn)
	}
	e.mu.Unlock()

	for _, fn := range observers {
		fn(update)
	}
}
