package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskmirror/taskmirror/internal/store"
	"github.com/taskmirror/taskmirror/internal/sync"
)

func newEngine(t *testing.T) (*sync.Engine, *fakeCollection) {
	t.Helper()

	todos := &fakeCollection{}
	engine, err := sync.NewEngine(context.Background(), "u1", todos, nil)
	require.NoError(t, err)
	t.Cleanup(engine.Dispose)
	return engine, todos
}

func itemDoc(id, title string, created float64) store.Document {
	return store.Document{ID: id, Fields: store.Fields{
		"title":       title,
		"dueDate":     created + 3600,
		"createdDate": created,
		"isDone":      false,
	}}
}

func TestNewEngine_RequiresOwner(t *testing.T) {
	_, err := sync.NewEngine(context.Background(), "", &fakeCollection{}, nil)
	assert.Error(t, err)
}

func TestEngine_AppliesSnapshot(t *testing.T) {
	engine, todos := newEngine(t)

	todos.push([]store.Document{
		itemDoc("a", "X", 100),
		{ID: "b", Fields: store.Fields{"title": "Y", "createdDate": float64(200), "isDone": false}}, // missing dueDate
	})

	items := engine.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "X", items[0].Title)

	failures := engine.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].DocumentID)
}

func TestEngine_OrdersByCreatedDateDescending(t *testing.T) {
	engine, todos := newEngine(t)

	todos.push([]store.Document{
		itemDoc("old", "old", 100),
		itemDoc("new", "new", 300),
		itemDoc("mid", "mid", 200),
	})

	items := engine.Items()
	require.Len(t, items, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{items[0].ID, items[1].ID, items[2].ID})
}

func TestEngine_TiesKeepDeliveryOrder(t *testing.T) {
	engine, todos := newEngine(t)

	todos.push([]store.Document{
		itemDoc("first", "first", 100),
		itemDoc("second", "second", 100),
	})

	items := engine.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "first", items[0].ID)
	assert.Equal(t, "second", items[1].ID)
}

func TestEngine_SnapshotReplacesMirror(t *testing.T) {
	engine, todos := newEngine(t)

	todos.push([]store.Document{itemDoc("a", "X", 100), itemDoc("b", "Y", 200)})
	require.Len(t, engine.Items(), 2)

	// "b" deleted remotely: it simply stops appearing.
	todos.push([]store.Document{itemDoc("a", "X", 100)})
	items := engine.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ID)
}

func TestEngine_SubscriptionErrorKeepsMirror(t *testing.T) {
	engine, todos := newEngine(t)

	todos.push([]store.Document{itemDoc("a", "X", 100)})

	var got sync.Update
	cancel := engine.Notify(func(u sync.Update) { got = u })
	defer cancel()

	todos.pushErr(errors.New("stream broken"))

	assert.Error(t, got.Err)
	require.Len(t, engine.Items(), 1)
	assert.Equal(t, "a", engine.Items()[0].ID)
}

func TestEngine_NotifyAndCancel(t *testing.T) {
	engine, todos := newEngine(t)

	var updates []sync.Update
	cancel := engine.Notify(func(u sync.Update) { updates = append(updates, u) })

	todos.push([]store.Document{itemDoc("a", "X", 100)})
	require.Len(t, updates, 1)
	assert.Len(t, updates[0].Items, 1)

	cancel()
	cancel() // idempotent
	todos.push([]store.Document{itemDoc("a", "X", 100), itemDoc("b", "Y", 200)})
	assert.Len(t, updates, 1)
}

func TestEngine_DisposeIsIdempotent(t *testing.T) {
	todos := &fakeCollection{}
	engine, err := sync.NewEngine(context.Background(), "u1", todos, nil)
	require.NoError(t, err)

	engine.Dispose()
	engine.Dispose()
	require.Len(t, todos.subs, 1)
	assert.Equal(t, 1, todos.subs[0].unsubscribes())
}

func TestEngine_CallbackInertAfterDispose(t *testing.T) {
	todos := &fakeCollection{}
	engine, err := sync.NewEngine(context.Background(), "u1", todos, nil)
	require.NoError(t, err)

	updates := 0
	engine.Notify(func(sync.Update) { updates++ })

	todos.push([]store.Document{itemDoc("a", "X", 100)})
	require.Len(t, engine.Items(), 1)
	require.Equal(t, 1, updates)

	engine.Dispose()
	todos.push([]store.Document{itemDoc("a", "X", 100), itemDoc("b", "Y", 200)})

	assert.Equal(t, 1, updates)
	assert.Len(t, engine.Items(), 1) // last-known-good, not the post-dispose push
}

func TestEngine_NotifyDeliversCurrentMirror(t *testing.T) {
	engine, todos := newEngine(t)

	todos.push([]store.Document{itemDoc("a", "X", 100)})

	var got sync.Update
	cancel := engine.Notify(func(u sync.Update) { got = u })
	defer cancel()

	require.Len(t, got.Items, 1)
	assert.Equal(t, "a", got.Items[0].ID)
}

func TestEngine_CreateValidation(t *testing.T) {
	engine, todos := newEngine(t)

	tests := []struct {
		name  string
		title string
		due   time.Time
	}{
		{"empty title", "", time.Now().Add(time.Hour)},
		{"whitespace title", "  \t ", time.Now().Add(time.Hour)},
		{"due date in the past", "task", time.Now().AddDate(0, 0, -1)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := engine.Create(context.Background(), test.title, test.due)

			var verr *sync.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Zero(t, todos.commandCount(), "validation failures must not reach the store")
		})
	}
}

func TestEngine_CreateWithinGraceTolerance(t *testing.T) {
	engine, todos := newEngine(t)

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	err := engine.Create(context.Background(), "task", startOfDay.Add(-30*time.Second))
	require.NoError(t, err)
	assert.Len(t, todos.creates, 1)
}

func TestEngine_Create(t *testing.T) {
	engine, todos := newEngine(t)

	due := time.Now().Add(24 * time.Hour)
	err := engine.Create(context.Background(), "Buy milk", due)
	require.NoError(t, err)

	require.Len(t, todos.creates, 1)
	cmd := todos.creates[0]
	assert.NotEmpty(t, cmd.ID)
	assert.Equal(t, "Buy milk", cmd.Fields["title"])
	assert.Equal(t, false, cmd.Fields["isDone"])
	assert.NotContains(t, cmd.Fields, "id")

	// No speculative insert: the mirror only moves on snapshots.
	assert.Empty(t, engine.Items())
}

func TestEngine_CreateStoreFailure(t *testing.T) {
	engine, todos := newEngine(t)
	todos.failing = errors.New("unavailable")

	err := engine.Create(context.Background(), "task", time.Now().Add(time.Hour))
	assert.Error(t, err)
	assert.Empty(t, engine.Items())
}

func TestEngine_Delete(t *testing.T) {
	engine, todos := newEngine(t)

	require.NoError(t, engine.Delete(context.Background(), "a"))
	assert.Equal(t, []string{"a"}, todos.deletes)

	var verr *sync.ValidationError
	require.ErrorAs(t, engine.Delete(context.Background(), ""), &verr)
}
