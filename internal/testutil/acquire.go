package testutil

import (
	"context"
	"os"
	"path/filepath"

	"github.com/andrebq/healthtrack/auth"
	"github.com/andrebq/healthtrack/credstore"
	"github.com/andrebq/healthtrack/userstore"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenSecret   = "testutil-token-secret-0123456789abcdef"
	SessionSecret = "testutil-session-secret-0123456789abcdef"
)

type (
	TestLog interface {
		Fatal(...interface{})
		Log(...interface{})
	}
)

func tempDir(t TestLog) string {
	dir, err := os.MkdirTemp("", "healthtrack-tests")
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func removeDir(t TestLog, dir string) {
	err := os.RemoveAll(dir)
	if err != nil {
		t.Log("unable to cleanup temp dir", dir)
	}
}

// AcquireCredStore opens an empty credential store in a temporary directory.
func AcquireCredStore(ctx context.Context, t TestLog) (*credstore.Store, func()) {
	dir := tempDir(t)
	store, err := credstore.Open(ctx, dir)
	if err != nil {
		removeDir(t, dir)
		t.Fatal(err)
	}
	return store, func() {
		err := store.Close()
		if err != nil {
			t.Log("unable to close credential store", err)
		}
		removeDir(t, dir)
	}
}

// AcquireDeck returns an empty deck whose stores live in a temporary directory.
func AcquireDeck(ctx context.Context, t TestLog) (*userstore.Deck, string, func()) {
	dir := tempDir(t)
	storeDir := filepath.Join(dir, "users")
	deck, err := userstore.NewDeck(storeDir)
	if err != nil {
		removeDir(t, dir)
		t.Fatal(err)
	}
	return deck, storeDir, func() {
		err := deck.Close()
		if err != nil {
			t.Log("unable to close deck", err)
		}
		removeDir(t, dir)
	}
}

// AcquireUserStore provisions a store for username and runs loader against it.
func AcquireUserStore(ctx context.Context, t TestLog, username string, loader func(context.Context, *userstore.Store) error) (*userstore.Store, func()) {
	deck, _, cleanup := AcquireDeck(ctx, t)
	store, err := deck.Open(ctx, username)
	if err != nil {
		cleanup()
		t.Fatal(err)
	}
	if loader != nil {
		if err := loader(ctx, store); err != nil {
			cleanup()
			t.Fatal(err)
		}
	}
	return store, cleanup
}

// AcquireGateway wires a gateway over temporary stores. Passwords are hashed
// with the minimum bcrypt cost to keep tests fast.
func AcquireGateway(ctx context.Context, t TestLog, policies auth.Policies) (*auth.Gateway, *userstore.Deck, func()) {
	creds, credsCleanup := AcquireCredStore(ctx, t)
	deck, _, deckCleanup := AcquireDeck(ctx, t)
	cleanup := func() {
		deckCleanup()
		credsCleanup()
	}
	tokens, err := auth.NewTokenIssuer(TokenSecret, nil)
	if err != nil {
		cleanup()
		t.Fatal(err)
	}
	sessions, err := auth.NewSessionManager(creds, SessionSecret, nil)
	if err != nil {
		cleanup()
		t.Fatal(err)
	}
	gw, err := auth.NewGateway(creds, deck, auth.NewBcryptHasher(bcrypt.MinCost), tokens, sessions, policies)
	if err != nil {
		cleanup()
		t.Fatal(err)
	}
	return gw, deck, cleanup
}
