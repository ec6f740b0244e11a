package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/andrebq/healthtrack/auth"
	"github.com/andrebq/healthtrack/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	creds, cleanup := testutil.AcquireCredStore(ctx, t)
	defer cleanup()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = creds.Create(ctx, "alice", string(hash))
	require.NoError(t, err)

	clock := newClock()
	sessions, err := auth.NewSessionManager(creds, testSessionSecret, clock.Now)
	require.NoError(t, err)

	cookie, s, err := sessions.Create(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(cookie, s.ID+"."))

	found, err := sessions.Lookup(ctx, cookie)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Username)
	assert.True(t, found.ExpiresAt.Equal(clock.Now().Add(auth.SessionTTL)))

	// same id, forged signature
	_, err = sessions.Lookup(ctx, s.ID+".AAAA")
	assert.ErrorIs(t, err, auth.Unauthorized{})
	_, err = sessions.Lookup(ctx, s.ID)
	assert.ErrorIs(t, err, auth.Unauthorized{})

	other, err := auth.NewSessionManager(creds, testSessionSecret+"-other", clock.Now)
	require.NoError(t, err)
	_, err = other.Lookup(ctx, cookie)
	assert.ErrorIs(t, err, auth.Unauthorized{})

	require.NoError(t, sessions.Destroy(ctx, cookie))
	_, err = sessions.Lookup(ctx, cookie)
	assert.ErrorIs(t, err, auth.Unauthorized{})
	require.NoError(t, sessions.Destroy(ctx, "garbage"))
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	creds, cleanup := testutil.AcquireCredStore(ctx, t)
	defer cleanup()
	_, err := creds.Create(ctx, "alice", "hash")
	require.NoError(t, err)

	clock := newClock()
	sessions, err := auth.NewSessionManager(creds, testSessionSecret, clock.Now)
	require.NoError(t, err)

	expiring, _, err := sessions.Create(ctx, "alice")
	require.NoError(t, err)
	clock.Advance(time.Hour)
	fresh, _, err := sessions.Create(ctx, "alice")
	require.NoError(t, err)

	clock.Advance(auth.SessionTTL - time.Hour)
	_, err = sessions.Lookup(ctx, expiring)
	assert.ErrorIs(t, err, auth.Unauthorized{})

	_, err = sessions.Lookup(ctx, fresh)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	n, err := sessions.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = sessions.Lookup(ctx, fresh)
	assert.ErrorIs(t, err, auth.Unauthorized{})
}
