package client

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/taskmirror/taskmirror/internal/identity"
	"github.com/taskmirror/taskmirror/internal/model"
	"github.com/taskmirror/taskmirror/internal/session"
	"github.com/taskmirror/taskmirror/internal/store"
	"github.com/taskmirror/taskmirror/internal/store/firestore"
	"github.com/taskmirror/taskmirror/internal/store/localstore"
	"github.com/taskmirror/taskmirror/internal/sync"
	"google.golang.org/api/option"
)

// snapshotTimeout bounds how long commands wait for the first snapshot.
const snapshotTimeout = 10 * time.Second

// An identityClient is a Provider whose session can be persisted between
// invocations.
type identityClient interface {
	identity.Provider
	Session() identity.Session
	SetSession(identity.Session)
}

// An App wires the store, identity provider and session bridge for one CLI
// invocation.
type App struct {
	Config   Config
	Log      *logrus.Logger
	Stores   store.Provider
	Identity identityClient
	Bridge   *session.Bridge
}

// Open builds the App from the configuration file at configPath.
func Open(configPath string) (*App, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	var (
		stores store.Provider
		id     identityClient
	)
	switch cfg.Backend {
	case "local":
		stores, err = localstore.Open(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		id = &identity.Static{}
	case "firestore":
		var opts []option.ClientOption
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		stores, err = firestore.Open(context.Background(), cfg.ProjectID, opts...)
		if err != nil {
			return nil, err
		}
		id, err = identity.NewFirebaseClient(http.DefaultClient, cfg.IdentityEndpoint, cfg.IdentityTokenEndpoint, cfg.IdentityAPIKey)
		if err != nil {
			stores.Close()
			return nil, err
		}
	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.Backend)
	}

	return &App{
		Config:   cfg,
		Log:      log,
		Stores:   stores,
		Identity: id,
		Bridge:   session.NewBridge(id, stores, log),
	}, nil
}

// Close tears down the bridge (and thus any live engine) and the store.
func (app *App) Close() error {
	app.Bridge.Close()
	return app.Stores.Close()
}

// Restore unseals the persisted session and reopens it, which stands up the
// engine through the bridge. Firebase sessions are refreshed when stale.
func (app *App) Restore(ctx context.Context) error {
	session, err := LoadCredentials()
	if err != nil {
		return errors.Wrap(err, "could not load credentials, are you signed in?")
	}
	app.Identity.SetSession(session)

	if firebase, ok := app.Identity.(*identity.Firebase); ok {
		refreshed := firebase.Session()
		if err := firebase.Refresh(ctx); err != nil {
			return err
		}
		if firebase.Session() != refreshed {
			if err := SaveCredentials(firebase.Session()); err != nil {
				return err
			}
		}
	}
	return nil
}

// engine returns the live engine or an error when nobody is signed in.
func (app *App) engine() (*sync.Engine, error) {
	engine := app.Bridge.Engine()
	if engine == nil {
		return nil, errors.New("no active session")
	}
	return engine, nil
}

// waitForMirror blocks until the engine applied its first snapshot and
// returns the mirror.
func (app *App) waitForMirror(ctx context.Context) (*sync.Engine, []model.Item, error) {
	engine, err := app.engine()
	if err != nil {
		return nil, nil, err
	}

	updates := make(chan sync.Update, 1)
	cancel := engine.Notify(func(u sync.Update) {
		select {
		case updates <- u:
		default:
		}
	})
	defer cancel()

	select {
	case u := <-updates:
		if u.Err != nil {
			return nil, nil, errors.Wrap(u.Err, "could not read the collection")
		}
		return engine, u.Items, nil
	case <-time.After(snapshotTimeout):
		return nil, nil, errors.New("timed out waiting for the first snapshot")
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}
