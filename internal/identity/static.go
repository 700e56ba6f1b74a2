package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// A Static is a development Provider with no remote identity service: the
// owner id is the email itself and no verification happens. It pairs with
// the local store backend.
type Static struct {
	Signal

	mu      sync.Mutex
	session Session
}

// SignIn implements Provider.
func (s *Static) SignIn(_ context.Context, email, _ string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("empty email")
	}

	s.open(Session{OwnerID: email, Email: email})
	return nil
}

// SignUp implements Provider.
func (s *Static) SignUp(ctx context.Context, email, password string) (string, error) {
	if err := s.SignIn(ctx, email, password); err != nil {
		return "", err
	}
	return s.CurrentOwnerID(), nil
}

// SignOut implements Provider.
func (s *Static) SignOut() error {
	s.mu.Lock()
	s.session = Session{}
	s.mu.Unlock()

	s.Set("")
	return nil
}

// Session returns the current session.
func (s *Static) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// SetSession restores a persisted session and emits its owner id.
func (s *Static) SetSession(session Session) {
	s.open(session)
}

func (s *Static) open(session Session) {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	s.Set(session.OwnerID)
}
