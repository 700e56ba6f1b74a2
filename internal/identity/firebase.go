package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Default endpoints of the Firebase identity service.
const (
	DefaultEndpoint      = "https://identitytoolkit.googleapis.com"
	DefaultTokenEndpoint = "https://securetoken.googleapis.com"
)

type (
	// A Session holds the tokens of a signed-in owner. It is what gets
	// persisted between CLI invocations.
	Session struct {
		OwnerID      string    `json:"owner_id"`
		Email        string    `json:"email"`
		IDToken      string    `json:"id_token"`
		RefreshToken string    `json:"refresh_token"`
		ExpiresAt    time.Time `json:"expires_at"`
	}

	// A Firebase is a Provider backed by the Firebase Auth REST API.
	Firebase struct {
		Signal

		http          *http.Client
		endpoint      string
		tokenEndpoint string
		apiKey        string

		mu      sync.Mutex
		session Session
	}
)

// An Error represents an error response of the identity service.
type Error struct {
	StatusCode int
	Err        struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Err.Message
}

// NewFirebase returns a new Firebase provider using the default endpoints and
// HTTP client.
func NewFirebase(apiKey string) (*Firebase, error) {
	return NewFirebaseClient(http.DefaultClient, DefaultEndpoint, DefaultTokenEndpoint, apiKey)
}

// NewFirebaseClient returns a new Firebase provider.
func NewFirebaseClient(c *http.Client, endpoint, tokenEndpoint, apiKey string) (*Firebase, error) {
	if apiKey == "" {
		return nil, errors.New("missing identity api key")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, errors.Wrap(err, "could not parse endpoint")
	}
	if _, err := url.Parse(tokenEndpoint); err != nil {
		return nil, errors.Wrap(err, "could not parse token endpoint")
	}
	return &Firebase{http: c, endpoint: endpoint, tokenEndpoint: tokenEndpoint, apiKey: apiKey}, nil
}

// SignIn implements Provider.
func (f *Firebase) SignIn(ctx context.Context, email, password string) error {
	var res accountResponse
	err := f.post(ctx, f.endpoint, "/v1/accounts:signInWithPassword", p{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &res)
	if err != nil {
		return errors.Wrap(err, "could not sign in")
	}

	f.open(res.session(email))
	return nil
}

// SignUp implements Provider.
func (f *Firebase) SignUp(ctx context.Context, email, password string) (string, error) {
	var res accountResponse
	err := f.post(ctx, f.endpoint, "/v1/accounts:signUp", p{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &res)
	if err != nil {
		return "", errors.Wrap(err, "could not sign up")
	}

	f.open(res.session(email))
	return res.LocalID, nil
}

// SignOut implements Provider. It only drops the local session; Firebase has
// no server-side sign-out for password sessions.
func (f *Firebase) SignOut() error {
	f.mu.Lock()
	f.session = Session{}
	f.mu.Unlock()

	f.Set("")
	return nil
}

// Session returns the current session.
func (f *Firebase) Session() Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

// SetSession restores a persisted session and emits its owner id.
func (f *Firebase) SetSession(session Session) {
	f.open(session)
}

// Refresh exchanges the refresh token for a fresh id token when the current
// one is about to expire.
func (f *Firebase) Refresh(ctx context.Context) error {
	f.mu.Lock()
	session := f.session
	f.mu.Unlock()

	if session.RefreshToken == "" {
		return errors.New("no session to refresh")
	}
	if time.Now().Add(time.Minute).Before(session.ExpiresAt) {
		return nil
	}

	var res struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		UserID       string `json:"user_id"`
		ExpiresIn    string `json:"expires_in"`
	}
	err := f.post(ctx, f.tokenEndpoint, "/v1/token", p{
		"grant_type":    "refresh_token",
		"refresh_token": session.RefreshToken,
	}, &res)
	if err != nil {
		return errors.Wrap(err, "could not refresh session")
	}

	f.mu.Lock()
	f.session.IDToken = res.IDToken
	f.session.RefreshToken = res.RefreshToken
	f.session.ExpiresAt = expiry(res.ExpiresIn)
	f.mu.Unlock()
	return nil
}

// open installs the session and emits the owner transition.
func (f *Firebase) open(session Session) {
	f.mu.Lock()
	f.session = session
	f.mu.Unlock()

	f.Set(session.OwnerID)
}

type p map[string]any

type accountResponse struct {
	LocalID      string `json:"localId"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

func (r accountResponse) session(email string) Session {
	return Session{
		OwnerID:      r.LocalID,
		Email:        email,
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    expiry(r.ExpiresIn),
	}
}

func expiry(seconds string) time.Time {
	n, err := strconv.Atoi(seconds)
	if err != nil || n <= 0 {
		n = 3600
	}
	return time.Now().Add(time.Duration(n) * time.Second)
}

func (f *Firebase) post(ctx context.Context, endpoint, route string, payload p, out any) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return errors.Wrap(err, "could not parse endpoint")
	}
	u.Path = path.Join(u.Path, route)

	query := url.Values{}
	query.Set("key", f.apiKey)
	u.RawQuery = query.Encode()

	//
	// Build request
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "could not serialize payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "could not build request")
	}
	req.Close = true
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")

	//
	// Perform request
	res, err := f.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "could not perform request")
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		var ierr Error
		dec := json.NewDecoder(res.Body)
		if err := dec.Decode(&ierr); err != nil {
			return errors.Wrap(err, fmt.Sprintf("could not parse error response (%d)", res.StatusCode))
		}
		ierr.StatusCode = res.StatusCode
		return &ierr
	}

	//
	// Process response
	dec := json.NewDecoder(res.Body)
	return errors.Wrap(dec.Decode(out), "could not parse response")
}
