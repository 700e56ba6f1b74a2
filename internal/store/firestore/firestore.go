// Package firestore implements the store contracts on Google Cloud
// Firestore, addressing documents as owners/{ownerId}/todos/{itemId}.
package firestore

import (
	"context"
	stdsync "sync"

	fs "cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"github.com/taskmirror/taskmirror/internal/store"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// A Store is a store.Provider backed by a Firestore database.
type Store struct {
	client *fs.Client
}

// Open returns a new Store connected to the given project.
func Open(ctx context.Context, projectID string, opts ...option.ClientOption) (*Store, error) {
	client, err := fs.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "could not open firestore client")
	}
	return &Store{client: client}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Todos implements store.Provider.
func (s *Store) Todos(ownerID string) store.Collection {
	return &collection{ref: s.owner(ownerID).Collection(store.TodosCollection)}
}

// Profile implements store.Provider.
func (s *Store) Profile(ctx context.Context, ownerID string) (store.Fields, error) {
	ref := s.owner(ownerID)
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, store.NewError("get", ref.Path, err)
	}
	return store.Fields(snap.Data()), nil
}

// SaveProfile implements store.Provider.
func (s *Store) SaveProfile(ctx context.Context, ownerID string, fields store.Fields) error {
	ref := s.owner(ownerID)
	if _, err := ref.Set(ctx, map[string]any(fields)); err != nil {
		return store.NewError("set", ref.Path, err)
	}
	return nil
}

func (s *Store) owner(ownerID string) *fs.DocumentRef {
	return s.client.Collection(store.OwnersCollection).Doc(ownerID)
}

type collection struct {
	ref *fs.CollectionRef
}

func (c *collection) Create(ctx context.Context, id string, fields store.Fields) error {
	ref := c.ref.Doc(id)
	if _, err := ref.Set(ctx, map[string]any(fields)); err != nil {
		return store.NewError("create", ref.Path, err)
	}
	return nil
}

// UpdateFields merges into an existing document only. A missing document,
// such as an item deleted by another client, is an error and never an upsert.
func (c *collection) UpdateFields(ctx context.Context, id string, fields store.Fields) error {
	updates := make([]fs.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, fs.Update{Path: k, Value: v})
	}

	ref := c.ref.Doc(id)
	if _, err := ref.Update(ctx, updates); err != nil {
		return store.NewError("update", ref.Path, err)
	}
	return nil
}

func (c *collection) Delete(ctx context.Context, id string) error {
	ref := c.ref.Doc(id)
	if _, err := ref.Delete(ctx); err != nil {
		return store.NewError("delete", ref.Path, err)
	}
	return nil
}

// Subscribe opens a snapshot listener on the ordered collection query. The
// SDK owns the reconnection policy; a terminal stream error is reported once
// and ends the delivery goroutine.
func (c *collection) Subscribe(ctx context.Context, q store.Query, fn store.SnapshotFunc) (store.Subscription, error) {
	direction := fs.Asc
	if q.Descending {
		direction = fs.Desc
	}

	ctx, cancel := context.WithCancel(ctx)
	snapshots := c.ref.Query.OrderBy(q.OrderBy, direction).Snapshots(ctx)

	go func() {
		for {
			snap, err := snapshots.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled {
					return
				}
				fn(nil, store.NewError("subscribe", c.ref.Path, err))
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				fn(nil, store.NewError("subscribe", c.ref.Path, err))
				continue
			}

			out := make([]store.Document, 0, len(docs))
			for _, doc := range docs {
				out = append(out, store.Document{ID: doc.Ref.ID, Fields: store.Fields(doc.Data())})
			}
			fn(out, nil)
		}
	}()

	return &subscription{stop: func() {
		cancel()
		snapshots.Stop()
	}}, nil
}

type subscription struct {
	once stdsync.Once
	stop func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.stop)
}
