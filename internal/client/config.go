package client

import (
	"os"
	"path/filepath"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
	"github.com/taskmirror/taskmirror/internal/identity"
)

const (
	configdir    = ".taskmirror"
	configfile   = "config.yml"
	databasefile = "taskmirror.db"
)

// A Config holds the client's configuration.
type Config struct {
	// Store backend: "local" (storm database) or "firestore".
	Backend         string
	DatabasePath    string
	ProjectID       string
	CredentialsFile string

	// Identity service.
	IdentityEndpoint      string
	IdentityTokenEndpoint string
	IdentityAPIKey        string

	LogLevel string
}

// LoadConfig reads the configuration file at path, or the default
// ~/.taskmirror/config.yml when path is empty. A missing default file yields
// the local-backend defaults.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		Backend:               "local",
		IdentityEndpoint:      identity.DefaultEndpoint,
		IdentityTokenEndpoint: identity.DefaultTokenEndpoint,
		LogLevel:              "info",
	}
	if dir, err := configDir(); err == nil {
		cfg.DatabasePath = filepath.Join(dir, databasefile)
	}

	if path == "" {
		dir, err := configDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(dir, configfile)
		if _, err := os.Stat(path); err != nil {
			return cfg, nil
		}
	}

	konf := koanf.New(".")
	if err := konf.Load(file.Provider(path), yaml.Parser()); err != nil {
		return cfg, errors.Wrap(err, "could not load configuration")
	}

	set := func(dst *string, key string) {
		if v := konf.String(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Backend, "store.backend")
	set(&cfg.DatabasePath, "store.database_path")
	set(&cfg.ProjectID, "store.project_id")
	set(&cfg.CredentialsFile, "store.credentials_file")
	set(&cfg.IdentityEndpoint, "identity.endpoint")
	set(&cfg.IdentityTokenEndpoint, "identity.token_endpoint")
	set(&cfg.IdentityAPIKey, "identity.api_key")
	set(&cfg.LogLevel, "log_level")

	return cfg, nil
}

// configDir returns ~/.taskmirror, creating it with owner-only permissions.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not locate home directory")
	}

	dir := filepath.Join(home, configdir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errors.Wrap(err, "could not create configuration directory")
	}
	return dir, nil
}
