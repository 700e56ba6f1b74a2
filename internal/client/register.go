package client

import (
	"context"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/taskmirror/taskmirror/internal/codec"
	"github.com/taskmirror/taskmirror/internal/model"
)

// Register creates an account, writes its profile document and seals the new
// session on disk.
func Register(app *App) error {
	name, err := readline.Line("Name: ")
	if err != nil {
		return errors.Wrap(err, "could not read name from stdin")
	}
	email, err := readline.Line("Email: ")
	if err != nil {
		return errors.Wrap(err, "could not read email from stdin")
	}
	password, err := readline.Password("Password: ")
	if err != nil {
		return errors.Wrap(err, "could not read password from stdin")
	}
	confirm, err := readline.Password("Confirm password: ")
	if err != nil {
		return errors.Wrap(err, "could not read password confirmation from stdin")
	}

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if err := validateRegistration(name, email, string(password), string(confirm)); err != nil {
		return err
	}

	ctx := context.Background()
	owner, err := app.Identity.SignUp(ctx, email, string(password))
	if err != nil {
		return errors.Wrap(err, "could not sign up")
	}

	profile := model.Profile{ID: owner, Name: name, Email: email, Joined: time.Now()}
	if err := app.Stores.SaveProfile(ctx, owner, codec.EncodeProfile(profile)); err != nil {
		return errors.Wrap(err, "account created but could not save profile")
	}

	return SaveCredentials(app.Identity.Session())
}

func validateRegistration(name, email, password, confirm string) error {
	if name == "" || email == "" || strings.TrimSpace(password) == "" || strings.TrimSpace(confirm) == "" {
		return errors.New("please fill in all fields")
	}
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return errors.New("please enter a valid email address")
	}
	if len(password) < 6 {
		return errors.New("password must be at least 6 characters long")
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}
	return nil
}
