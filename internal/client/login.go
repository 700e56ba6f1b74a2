package client

import (
	"context"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
)

// Login opens a session for an existing account and seals it on disk.
func Login(app *App) error {
	email, err := readline.Line("Email: ")
	if err != nil {
		return errors.Wrap(err, "could not read email from stdin")
	}

	password, err := readline.Password("Password: ")
	if err != nil {
		return errors.Wrap(err, "could not read password from stdin")
	}

	err = app.Identity.SignIn(context.Background(), strings.TrimSpace(email), string(password))
	if err != nil {
		return errors.Wrap(err, "could not sign in")
	}

	return SaveCredentials(app.Identity.Session())
}
