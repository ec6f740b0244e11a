package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	DefaultLockoutThreshold = 5
	DefaultLockoutWindow    = 15 * time.Minute

	guardStripes = 64
)

type (
	// Guard tracks consecutive login failures per username.
	//
	// A username is Clear (no record), Accumulating (record with failures
	// below the threshold) or Locked (record with LockedUntil in the future).
	// An expired lock is treated as Clear the next time it is looked at.
	Guard struct {
		store     AttemptStore
		threshold int
		window    time.Duration
		now       func() time.Time
		stripes   [guardStripes]sync.Mutex
	}
)

// NewGuard locks a username for window once it reaches threshold failures.
// now may be nil.
func NewGuard(store AttemptStore, threshold int, window time.Duration, now func() time.Time) *Guard {
	if threshold < 1 {
		threshold = DefaultLockoutThreshold
	}
	if window <= 0 {
		window = DefaultLockoutWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Guard{store: store, threshold: threshold, window: window, now: now}
}

// Check reports whether username is currently locked and until when.
func (g *Guard) Check(username string) (time.Time, bool, error) {
	mu := g.stripe(username)
	mu.Lock()
	defer mu.Unlock()
	a, found, err := g.load(username)
	if err != nil || !found {
		return time.Time{}, false, err
	}
	if a.LockedUntil.IsZero() {
		return time.Time{}, false, nil
	}
	return a.LockedUntil, true, nil
}

// Fail records a failed attempt. The increment and the threshold check are
// a single step, it returns the lock deadline when this failure locked the
// username (or it was already locked).
func (g *Guard) Fail(username string) (time.Time, bool, error) {
	mu := g.stripe(username)
	mu.Lock()
	defer mu.Unlock()
	a, _, err := g.load(username)
	if err != nil {
		return time.Time{}, false, err
	}
	if !a.LockedUntil.IsZero() {
		return a.LockedUntil, true, nil
	}
	a.Failures++
	if a.Failures >= g.threshold {
		a.LockedUntil = g.now().Add(g.window)
	}
	if err := g.store.Put(username, a); err != nil {
		return time.Time{}, false, fmt.Errorf("unable to record failed login for %v, cause %w", username, err)
	}
	return a.LockedUntil, !a.LockedUntil.IsZero(), nil
}

// Reset clears the record of username after a successful login.
func (g *Guard) Reset(username string) error {
	mu := g.stripe(username)
	mu.Lock()
	defer mu.Unlock()
	return g.store.Delete(username)
}

// Failures returns the current failure count of username.
func (g *Guard) Failures(username string) (int, error) {
	mu := g.stripe(username)
	mu.Lock()
	defer mu.Unlock()
	a, _, err := g.load(username)
	return a.Failures, err
}

// load applies lazy expiry: a lock that already ended is removed and reported
// as not found. Callers must hold the stripe lock.
func (g *Guard) load(username string) (Attempts, bool, error) {
	a, found, err := g.store.Get(username)
	if err != nil || !found {
		return Attempts{}, false, err
	}
	if !a.LockedUntil.IsZero() && !g.now().Before(a.LockedUntil) {
		if err := g.store.Delete(username); err != nil {
			return Attempts{}, false, err
		}
		return Attempts{}, false, nil
	}
	return a, true, nil
}

func (g *Guard) stripe(username string) *sync.Mutex {
	return &g.stripes[xxhash.Sum64String(username)%guardStripes]
}
