package main

import (
	"fmt"
	"log"
	"runtime"

	"github.com/muesli/coral"
	"github.com/taskmirror/taskmirror/internal/client"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfg   string
	title string
	due   string
)

func main() {
	c := &coral.Command{
		Use:     "taskmirror",
		Short:   "To do list mirrored from a shared document store",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    coral.ExactArgs(0),
	}
	c.PersistentFlags().StringVarP(&cfg, "config", "c", "", "Configuration file")

	addCmd.Flags().StringVarP(&title, "title", "t", "", "Title of the item")
	addCmd.Flags().StringVarP(&due, "due", "d", "", "Due date (defaults to the end of today)")
	addCmd.MarkFlagRequired("title")

	c.AddCommand(registerCmd)
	c.AddCommand(loginCmd)
	c.AddCommand(logoutCmd)
	c.AddCommand(profileCmd)
	c.AddCommand(addCmd)
	c.AddCommand(listCmd)
	c.AddCommand(doneCmd)
	c.AddCommand(rmCmd)
	c.AddCommand(watchCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

// run opens the application, executes fn and tears everything down.
func run(fn func(*client.App) error) error {
	app, err := client.Open(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(app)
}

var (
	registerCmd = &coral.Command{
		Use:   "register",
		Short: "Create an account and its profile",
		Args:  coral.NoArgs,
		RunE: func(_ *coral.Command, _ []string) error {
			return run(client.Register)
		},
	}

	loginCmd = &coral.Command{
		Use:   "login",
		Short: "Sign in and seal the session on disk",
		Args:  coral.NoArgs,
		RunE: func(_ *coral.Command, _ []string) error {
			return run(client.Login)
		},
	}

	logoutCmd = &coral.Command{
		Use:   "logout",
		Short: "Sign out and remove the sealed session",
		Args:  coral.NoArgs,
		RunE: func(_ *coral.Command, _ []string) error {
			return run(client.Logout)
		},
	}

	profileCmd = &coral.Command{
		Use:   "profile",
		Short: "Show the signed-in owner's profile",
		Args:  coral.NoArgs,
		RunE: func(_ *coral.Command, _ []string) error {
			return run(client.ShowProfile)
		},
	}

	addCmd = &coral.Command{
		Use:   "add",
		Short: "Create a to do item",
		Args:  coral.NoArgs,
		RunE: func(_ *coral.Command, _ []string) error {
			return run(func(app *client.App) error {
				return client.Add(app, title, due)
			})
		},
	}

	listCmd = &coral.Command{
		Use:   "list",
		Short: "List the items, most recently created first",
		Args:  coral.NoArgs,
		RunE: func(_ *coral.Command, _ []string) error {
			return run(client.List)
		},
	}

	doneCmd = &coral.Command{
		Use:   "done ID",
		Short: "Toggle the completion state of an item",
		Args:  coral.ExactArgs(1),
		RunE: func(_ *coral.Command, args []string) error {
			return run(func(app *client.App) error {
				return client.Done(app, args[0])
			})
		},
	}

	rmCmd = &coral.Command{
		Use:   "rm ID",
		Short: "Delete an item",
		Args:  coral.ExactArgs(1),
		RunE: func(_ *coral.Command, args []string) error {
			return run(func(app *client.App) error {
				return client.Remove(app, args[0])
			})
		},
	}

	watchCmd = &coral.Command{
		Use:   "watch",
		Short: "Follow the collection live in the terminal",
		Args:  coral.NoArgs,
		RunE: func(_ *coral.Command, _ []string) error {
			return run(client.Watch)
		},
	}
)
