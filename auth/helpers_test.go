package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/andrebq/healthtrack/auth"
	"github.com/andrebq/healthtrack/internal/testutil"
	"github.com/andrebq/healthtrack/userstore"
	"golang.org/x/crypto/bcrypt"
)

const (
	testTokenSecret   = "0123456789abcdef0123456789abcdef-token"
	testSessionSecret = "0123456789abcdef0123456789abcdef-session"
)

type (
	fakeClock struct {
		sync.Mutex
		now time.Time
	}

	stubCaptcha struct {
		sync.Mutex
		calls int
		ok    bool
		err   error
	}
)

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.Lock()
	defer c.Unlock()
	c.now = c.now.Add(d)
}

func (s *stubCaptcha) Verify(ctx context.Context, response, remoteIP string) (bool, error) {
	s.Lock()
	defer s.Unlock()
	s.calls++
	return s.ok, s.err
}

func (s *stubCaptcha) Calls() int {
	s.Lock()
	defer s.Unlock()
	return s.calls
}

type gatewayFixture struct {
	gateway *auth.Gateway
	clock   *fakeClock
	captcha *stubCaptcha
	guard   *auth.Guard
	deck    *userstore.Deck
	deckDir string
}

func acquireGateway(ctx context.Context, t *testing.T) (*gatewayFixture, func()) {
	creds, credsCleanup := testutil.AcquireCredStore(ctx, t)
	deck, deckDir, deckCleanup := testutil.AcquireDeck(ctx, t)
	cleanup := func() {
		deckCleanup()
		credsCleanup()
	}
	clock := newClock()
	tokens, err := auth.NewTokenIssuer(testTokenSecret, clock.Now)
	if err != nil {
		cleanup()
		t.Fatal(err)
	}
	sessions, err := auth.NewSessionManager(creds, testSessionSecret, clock.Now)
	if err != nil {
		cleanup()
		t.Fatal(err)
	}
	attempts, err := auth.NewCacheAttemptStore(time.Hour)
	if err != nil {
		cleanup()
		t.Fatal(err)
	}
	guard := auth.NewGuard(attempts, auth.DefaultLockoutThreshold, auth.DefaultLockoutWindow, clock.Now)
	captcha := &stubCaptcha{ok: true}
	gw, err := auth.NewGateway(creds, deck, auth.NewBcryptHasher(bcrypt.MinCost), tokens, sessions, auth.Policies{
		Captcha: captcha,
		Guard:   guard,
	})
	if err != nil {
		attempts.Close()
		cleanup()
		t.Fatal(err)
	}
	return &gatewayFixture{
			gateway: gw,
			clock:   clock,
			captcha: captcha,
			guard:   guard,
			deck:    deck,
			deckDir: deckDir,
		}, func() {
			attempts.Close()
			cleanup()
		}
}
