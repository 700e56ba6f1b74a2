package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/pkg/errors"
	"github.com/taskmirror/taskmirror/internal/model"
	"github.com/taskmirror/taskmirror/internal/sync"
)

// Add creates a new item. An empty due defaults to the end of today.
func Add(app *App, title, due string) error {
	ctx := context.Background()
	if err := app.Restore(ctx); err != nil {
		return err
	}
	engine, err := app.engine()
	if err != nil {
		return err
	}

	dueDate, err := parseDue(due)
	if err != nil {
		return err
	}
	return engine.Create(ctx, title, dueDate)
}

// List prints the mirror once the first snapshot arrived.
func List(app *App) error {
	ctx := context.Background()
	if err := app.Restore(ctx); err != nil {
		return err
	}

	engine, items, err := app.waitForMirror(ctx)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		fmt.Println("Nothing to do.")
	}
	for _, item := range items {
		status := " "
		if item.IsDone {
			status = "x"
		}
		fmt.Printf("[%s] %-40s due %s  %s\n", status, item.Title, item.DueDate.Format("2006-01-02"), item.ID)
	}

	if failures := engine.Failures(); len(failures) > 0 {
		fmt.Printf("(%d malformed records skipped)\n", len(failures))
	}
	return nil
}

// Done toggles the completion state of the item matching id. The printed
// state flips only through the next snapshot.
func Done(app *App, id string) error {
	ctx := context.Background()
	if err := app.Restore(ctx); err != nil {
		return err
	}

	engine, items, err := app.waitForMirror(ctx)
	if err != nil {
		return err
	}

	item, err := findItem(items, id)
	if err != nil {
		return err
	}

	row := sync.NewRowController(app.Stores.Todos(engine.Owner()), app.Log)
	return row.Toggle(ctx, item)
}

// Remove deletes the item matching id.
func Remove(app *App, id string) error {
	ctx := context.Background()
	if err := app.Restore(ctx); err != nil {
		return err
	}

	engine, items, err := app.waitForMirror(ctx)
	if err != nil {
		return err
	}

	item, err := findItem(items, id)
	if err != nil {
		return err
	}
	return engine.Delete(ctx, item.ID)
}

// findItem matches an exact id or an unambiguous prefix.
func findItem(items []model.Item, id string) (model.Item, error) {
	if id == "" {
		return model.Item{}, errors.New("missing item id")
	}

	var matches []model.Item
	for _, item := range items {
		if item.ID == id {
			return item, nil
		}
		if strings.HasPrefix(item.ID, id) {
			matches = append(matches, item)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return model.Item{}, errors.Errorf("no item matches %q", id)
	default:
		return model.Item{}, errors.Errorf("%q is ambiguous (%d items match)", id, len(matches))
	}
}

func parseDue(due string) (time.Time, error) {
	if due == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location()), nil
	}

	parsed, err := dateparse.ParseLocal(due)
	return parsed, errors.Wrapf(err, "could not parse due date %q", due)
}
