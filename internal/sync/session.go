// Package sync mirrors category and item metadata (never image bytes) to a
// cloud drive as a single JSON document. The mirror is best effort: local
// work never blocks on it, and failures are retried only on the next
// debounced flush.
package sync

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrNotSignedIn is returned by transport calls made without a signed-in
// session.
var ErrNotSignedIn = errors.New("not signed in")

// Session holds the cloud auth state as an explicit handle. The access
// token is obtained by the caller (the OAuth dance happens outside this
// process) and handed over at sign-in.
type Session struct {
	mu    sync.Mutex
	id    string
	token string
}

// NewSession creates a signed-out session.
func NewSession() *Session {
	return &Session{id: uuid.New().String()}
}

// ID returns the session identifier, for logging.
func (s *Session) ID() string {
	return s.id
}

// SignIn stores the access token.
func (s *Session) SignIn(token string) error {
	if token == "" {
		return errors.New("empty access token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// SignOut drops the token.
func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// Token returns the current access token and whether one is set.
func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

// SignedIn reports whether the session holds a token.
func (s *Session) SignedIn() bool {
	_, ok := s.Token()
	return ok
}
