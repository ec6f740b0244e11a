package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andrebq/healthtrack/credstore"
	"github.com/google/uuid"
)

const (
	SessionTTL = 24 * time.Hour
)

type (
	SessionStore interface {
		SaveSession(ctx context.Context, row credstore.SessionRow) error
		LoadSession(ctx context.Context, id string) (credstore.SessionRow, error)
		DeleteSession(ctx context.Context, id string) error
		PurgeSessions(ctx context.Context, now time.Time) (int64, error)
	}

	Session struct {
		ID        string
		Username  string
		IssuedAt  time.Time
		ExpiresAt time.Time
	}

	// SessionManager keeps sessions on the server. The cookie only carries
	// the session id plus an HMAC of it, so a forged id is rejected without
	// touching the store.
	SessionManager struct {
		store  SessionStore
		secret []byte
		ttl    time.Duration
		now    func() time.Time
	}
)

// NewSessionManager returns a manager using secret to sign cookie values.
// now may be nil.
func NewSessionManager(store SessionStore, secret string, now func() time.Time) (*SessionManager, error) {
	if secret == "" {
		return nil, errors.New("auth: session secret cannot be empty")
	}
	if now == nil {
		now = time.Now
	}
	return &SessionManager{store: store, secret: []byte(secret), ttl: SessionTTL, now: now}, nil
}

// TTL is how long a new session lives.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create starts a session for username and returns the cookie value.
func (m *SessionManager) Create(ctx context.Context, username string) (string, Session, error) {
	now := m.now().UTC()
	s := Session{
		ID:        uuid.NewString(),
		Username:  username,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
	err := m.store.SaveSession(ctx, credstore.SessionRow{
		ID:        s.ID,
		Username:  s.Username,
		IssuedAt:  s.IssuedAt,
		ExpiresAt: s.ExpiresAt,
	})
	if err != nil {
		return "", Session{}, err
	}
	return s.ID + "." + m.sign(s.ID), s, nil
}

// Lookup returns the session behind cookie or Unauthorized when it is
// absent, forged or expired.
func (m *SessionManager) Lookup(ctx context.Context, cookie string) (Session, error) {
	id, ok := m.open(cookie)
	if !ok {
		return Session{}, Unauthorized{cause: errors.New("invalid session cookie")}
	}
	row, err := m.store.LoadSession(ctx, id)
	if errors.Is(err, credstore.SessionNotFound{}) {
		return Session{}, Unauthorized{cause: err}
	} else if err != nil {
		return Session{}, err
	}
	if !m.now().Before(row.ExpiresAt) {
		if err := m.store.DeleteSession(ctx, id); err != nil {
			return Session{}, err
		}
		return Session{}, Unauthorized{cause: errors.New("session expired")}
	}
	return Session{ID: row.ID, Username: row.Username, IssuedAt: row.IssuedAt, ExpiresAt: row.ExpiresAt}, nil
}

// Destroy ends the session behind cookie. Unknown cookies are ignored.
func (m *SessionManager) Destroy(ctx context.Context, cookie string) error {
	id, ok := m.open(cookie)
	if !ok {
		return nil
	}
	return m.store.DeleteSession(ctx, id)
}

// Purge removes expired sessions from the store.
func (m *SessionManager) Purge(ctx context.Context) (int64, error) {
	n, err := m.store.PurgeSessions(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("unable to purge sessions, cause %w", err)
	}
	return n, nil
}

func (m *SessionManager) open(cookie string) (string, bool) {
	id, sig, found := strings.Cut(cookie, ".")
	if !found || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(m.sign(id))) {
		return "", false
	}
	return id, true
}

func (m *SessionManager) sign(id string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
