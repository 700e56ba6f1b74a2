package sync

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/taskmirror/taskmirror/internal/codec"
	"github.com/taskmirror/taskmirror/internal/model"
	"github.com/taskmirror/taskmirror/internal/store"
)

// A RowController issues the single per-row mutation: toggling completion.
// It holds no state; the visual flip happens only once the engine's mirror is
// refreshed by the next snapshot.
type RowController struct {
	todos store.Collection
	log   logrus.FieldLogger
}

// NewRowController returns a new RowController for one owner's collection.
func NewRowController(todos store.Collection, log logrus.FieldLogger) *RowController {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RowController{todos: todos, log: log}
}

// Toggle sends the inverted completion state of the item, and nothing else.
func (c *RowController) Toggle(ctx context.Context, item model.Item) error {
	if item.ID == "" {
		return &ValidationError{Field: "id", Message: "missing item id"}
	}

	err := c.todos.UpdateFields(ctx, item.ID, store.Fields{codec.FieldIsDone: !item.IsDone})
	if err != nil {
		c.log.WithField("item", item.ID).WithError(err).Error("could not toggle item")
	}
	return errors.Wrap(err, "could not toggle item")
}
