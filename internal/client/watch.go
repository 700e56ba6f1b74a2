package client

import (
	"context"

	"github.com/taskmirror/taskmirror/internal/client/tui"
	"github.com/taskmirror/taskmirror/internal/sync"
)

// Watch runs the live mirror view until the user quits.
func Watch(app *App) error {
	ctx := context.Background()
	if err := app.Restore(ctx); err != nil {
		return err
	}

	engine, err := app.engine()
	if err != nil {
		return err
	}

	row := sync.NewRowController(app.Stores.Todos(engine.Owner()), app.Log)
	return tui.Run(engine, row)
}
