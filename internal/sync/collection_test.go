package sync_test

import (
	"context"
	stdsync "sync"

	"github.com/taskmirror/taskmirror/internal/store"
)

// fakeCollection records commands and lets tests push snapshots by hand.
type fakeCollection struct {
	mu stdsync.Mutex

	creates []command
	updates []command
	deletes []string
	failing error

	fn   store.SnapshotFunc
	subs []*fakeSubscription
}

type command struct {
	ID     string
	Fields store.Fields
}

func (c *fakeCollection) Create(_ context.Context, id string, fields store.Fields) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing != nil {
		return c.failing
	}
	c.creates = append(c.creates, command{ID: id, Fields: fields})
	return nil
}

func (c *fakeCollection) UpdateFields(_ context.Context, id string, fields store.Fields) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing != nil {
		return c.failing
	}
	c.updates = append(c.updates, command{ID: id, Fields: fields})
	return nil
}

func (c *fakeCollection) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing != nil {
		return c.failing
	}
	c.deletes = append(c.deletes, id)
	return nil
}

func (c *fakeCollection) Subscribe(_ context.Context, _ store.Query, fn store.SnapshotFunc) (store.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fn = fn
	sub := &fakeSubscription{}
	c.subs = append(c.subs, sub)
	return sub, nil
}

// push delivers a snapshot through the active subscription callback.
func (c *fakeCollection) push(docs []store.Document) {
	c.mu.Lock()
	fn := c.fn
	c.mu.Unlock()
	fn(docs, nil)
}

// pushErr delivers a subscription error.
func (c *fakeCollection) pushErr(err error) {
	c.mu.Lock()
	fn := c.fn
	c.mu.Unlock()
	fn(nil, err)
}

func (c *fakeCollection) commandCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.creates) + len(c.updates) + len(c.deletes)
}

type fakeSubscription struct {
	mu    stdsync.Mutex
	count int
}

func (s *fakeSubscription) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
}

func (s *fakeSubscription) unsubscribes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
