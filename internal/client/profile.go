package client

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ShowProfile prints the owner's profile projection.
func ShowProfile(app *App) error {
	ctx := context.Background()
	if err := app.Restore(ctx); err != nil {
		return err
	}

	profile, err := app.Bridge.Profile()
	if err != nil {
		return err
	}
	if profile == nil {
		return errors.New("no profile available")
	}

	fmt.Println("Name:  ", profile.Name)
	fmt.Println("Email: ", profile.Email)
	fmt.Println("Joined:", profile.Joined.Format("2006-01-02"))
	return nil
}
