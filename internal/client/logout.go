package client

import "github.com/pkg/errors"

// Logout closes the session and removes the sealed credentials.
func Logout(app *App) error {
	if err := app.Identity.SignOut(); err != nil {
		return errors.Wrap(err, "could not sign out")
	}
	return RemoveCredentials()
}
