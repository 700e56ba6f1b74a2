// Package localstore implements the store contracts on a storm (bbolt)
// database. It is meant for offline development and integration tests: same
// semantics as the remote store, delivered in-process.
package localstore

import (
	"context"
	"sort"
	stdsync "sync"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/msgpack"
	"github.com/bep/debounce"
	"github.com/pkg/errors"
	"github.com/taskmirror/taskmirror/internal/store"
)

// debounceInterval coalesces bursts of writes into one notification per
// subscription. The engine never coalesces; only the store side may.
const debounceInterval = 10 * time.Millisecond

type (
	// A Store is a store.Provider backed by a storm database.
	Store struct {
		db *storm.DB

		mu     stdsync.Mutex
		subs   map[int]*subscription
		nextID int
	}

	// record is one item document. Seq materializes the store-assigned
	// insertion order used to break ordering ties.
	record struct {
		Key    string `storm:"id"`
		Owner  string `storm:"index"`
		DocID  string
		Seq    int `storm:"increment"`
		Fields store.Fields
	}

	// profileRecord is one owner's profile document.
	profileRecord struct {
		Owner  string `storm:"id"`
		Fields store.Fields
	}
)

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(msgpack.Codec)

// Open returns a new Store for the given database file, creating it if
// needed.
func Open(database string) (*Store, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	if err := db.Init(&record{}); err != nil {
		return nil, errors.Wrap(err, "could not init record index")
	}
	if err := db.Init(&profileRecord{}); err != nil {
		return nil, errors.Wrap(err, "could not init profile index")
	}

	return &Store{db: db, subs: make(map[int]*subscription)}, nil
}

// Close the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Todos implements store.Provider.
func (s *Store) Todos(ownerID string) store.Collection {
	return &collection{store: s, owner: ownerID}
}

// Profile implements store.Provider.
func (s *Store) Profile(_ context.Context, ownerID string) (store.Fields, error) {
	var profile profileRecord
	if err := s.db.One("Owner", ownerID, &profile); err != nil {
		return nil, store.NewError("get", store.OwnersCollection+"/"+ownerID, err)
	}
	return profile.Fields, nil
}

// SaveProfile implements store.Provider.
func (s *Store) SaveProfile(_ context.Context, ownerID string, fields store.Fields) error {
	err := s.db.Save(&profileRecord{Owner: ownerID, Fields: fields})
	if err != nil {
		return store.NewError("set", store.OwnersCollection+"/"+ownerID, err)
	}
	return nil
}

// snapshot loads the full current set of one owner's documents, ordered.
// A read failure is a subscription error, never an empty collection.
func (s *Store) snapshot(owner string, q store.Query) ([]store.Document, error) {
	var records []record
	if err := s.db.Find("Owner", owner, &records); err != nil && !errors.Is(err, storm.ErrNotFound) {
		path := store.OwnersCollection + "/" + owner + "/" + store.TodosCollection
		return nil, store.NewError("subscribe", path, err)
	}

	// Ordering fields are numeric (epoch seconds); documents missing the
	// field sort as zero but are still delivered.
	sort.SliceStable(records, func(i, j int) bool {
		vi, vj := orderValue(records[i].Fields, q.OrderBy), orderValue(records[j].Fields, q.OrderBy)
		if vi != vj {
			if q.Descending {
				return vi > vj
			}
			return vi < vj
		}
		return records[i].Seq < records[j].Seq
	})

	docs := make([]store.Document, 0, len(records))
	for _, r := range records {
		docs = append(docs, store.Document{ID: r.DocID, Fields: r.Fields})
	}
	return docs, nil
}

// notify schedules a snapshot delivery on every subscription of the owner.
func (s *Store) notify(owner string) {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.owner == owner {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.debounced(sub.publish)
	}
}

func orderValue(fields store.Fields, field string) float64 {
	switch n := fields[field].(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return 0
}

type collection struct {
	store *Store
	owner string
}

func (c *collection) path(id string) string {
	return store.OwnersCollection + "/" + c.owner + "/" + store.TodosCollection + "/" + id
}

func (c *collection) Create(_ context.Context, id string, fields store.Fields) error {
	r := record{Key: c.owner + "/" + id, Owner: c.owner, DocID: id, Fields: fields}

	// Overwrite keeps the original insertion order so an idempotent
	// re-create does not reshuffle ties.
	var existing record
	err := c.store.db.One("Key", r.Key, &existing)
	switch {
	case err == nil:
		r.Seq = existing.Seq
	case !errors.Is(err, storm.ErrNotFound):
		return store.NewError("create", c.path(id), err)
	}

	if err := c.store.db.Save(&r); err != nil {
		return store.NewError("create", c.path(id), err)
	}
	c.store.notify(c.owner)
	return nil
}

func (c *collection) UpdateFields(_ context.Context, id string, fields store.Fields) error {
	var existing record
	if err := c.store.db.One("Key", c.owner+"/"+id, &existing); err != nil {
		return store.NewError("update", c.path(id), err)
	}

	for k, v := range fields {
		existing.Fields[k] = v
	}
	if err := c.store.db.Save(&existing); err != nil {
		return store.NewError("update", c.path(id), err)
	}
	c.store.notify(c.owner)
	return nil
}

func (c *collection) Delete(_ context.Context, id string) error {
	err := c.store.db.DeleteStruct(&record{Key: c.owner + "/" + id})
	if errors.Is(err, storm.ErrNotFound) {
		return nil
	}
	if err != nil {
		return store.NewError("delete", c.path(id), err)
	}
	c.store.notify(c.owner)
	return nil
}

func (c *collection) Subscribe(_ context.Context, q store.Query, fn store.SnapshotFunc) (store.Subscription, error) {
	sub := &subscription{
		store:     c.store,
		owner:     c.owner,
		query:     q,
		fn:        fn,
		debounced: debounce.New(debounceInterval),
	}

	c.store.mu.Lock()
	id := c.store.nextID
	c.store.nextID++
	c.store.subs[id] = sub
	sub.id = id
	c.store.mu.Unlock()

	// Initial snapshot, delivered before any change notification.
	sub.publish()
	return sub, nil
}

type subscription struct {
	store     *Store
	id        int
	owner     string
	query     store.Query
	fn        store.SnapshotFunc
	debounced func(func())

	mu        stdsync.Mutex
	deliverMu stdsync.Mutex
	closed    bool
}

// publish delivers the current snapshot. Deliveries are serialized per
// subscription and stop permanently once Unsubscribe ran.
func (s *subscription) publish() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	docs, err := s.store.snapshot(s.owner, s.query)
	if err != nil {
		s.fn(nil, err)
		return
	}
	s.fn(docs, nil)
}

// Unsubscribe implements store.Subscription.
func (s *subscription) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.store.mu.Lock()
	delete(s.store.subs, s.id)
	s.store.mu.Unlock()
}
