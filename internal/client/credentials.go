package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"
	sargon2 "github.com/mdouchement/simple-argon2"
	"github.com/pkg/errors"
	"github.com/taskmirror/taskmirror/internal/identity"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	saltKeyLength   = 16
	credentialsfile = "credentials"
)

// HasCredentials returns true when a sealed session exists on disk.
func HasCredentials() bool {
	path, err := credentialsPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// RemoveCredentials removes the sealed session from disk.
func RemoveCredentials() error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "could not remove credentials")
	}
	return nil
}

// LoadCredentials unseals the persisted session with a passphrase read from
// stdin.
func LoadCredentials() (identity.Session, error) {
	var session identity.Session

	path, err := credentialsPath()
	if err != nil {
		return session, err
	}
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return session, errors.Wrap(err, "could not read credentials file")
	}

	//
	// Key derivation of passphrase

	passphrase, err := readline.Password("passphrase: ")
	if err != nil {
		return session, errors.Wrap(err, "could not read passphrase from stdin")
	}

	salt := ciphertext[:saltKeyLength]
	ciphertext = ciphertext[saltKeyLength:]
	hash := argon2.IDKey(passphrase, salt, 3, 64<<10, 2, 32)

	//
	// Unseal session

	aead, err := chacha20poly1305.NewX(hash)
	if err != nil {
		return session, errors.Wrap(err, "could not create AEAD")
	}

	nonce := ciphertext[:aead.NonceSize()]
	ciphertext = ciphertext[aead.NonceSize():]

	payload, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return session, errors.Wrap(err, "could not decrypt credentials file")
	}

	err = json.Unmarshal(payload, &session)
	return session, errors.Wrap(err, "could not parse credentials")
}

// SaveCredentials seals the session on disk with a passphrase read from
// stdin.
func SaveCredentials(session identity.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "could not serialize credentials")
	}

	path, err := credentialsPath()
	if err != nil {
		return err
	}

	fmt.Println("Storing credentials in " + path)
	passphrase, err := readline.Password("passphrase: ")
	if err != nil {
		return errors.Wrap(err, "could not read passphrase from stdin")
	}

	//
	// Key derivation of passphrase

	salt, err := sargon2.GenerateRandomBytes(saltKeyLength)
	if err != nil {
		return errors.Wrap(err, "could not generate salt for credentials")
	}
	hash := argon2.IDKey(passphrase, salt, 3, 64<<10, 2, 32)

	//
	// Seal session

	aead, err := chacha20poly1305.NewX(hash)
	if err != nil {
		return errors.Wrap(err, "could not create AEAD")
	}
	nonce, err := sargon2.GenerateRandomBytes(uint32(aead.NonceSize()))
	if err != nil {
		return errors.Wrap(err, "could not generate nonce for credentials")
	}

	ciphertext := aead.Seal(nil, nonce, payload, nil)
	ciphertext = append(nonce, ciphertext...)
	ciphertext = append(salt, ciphertext...)

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "could not create %s", path)
	}
	defer f.Close()

	if _, err = f.Write(ciphertext); err != nil {
		return errors.Wrap(err, "could not store credentials")
	}
	return errors.Wrap(f.Sync(), "could not store credentials")
}

func credentialsPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, credentialsfile), nil
}
