package auth

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

type (
	// Attempts is the lockout record of a single username.
	Attempts struct {
		Failures    int
		LockedUntil time.Time
	}

	// AttemptStore keeps lockout records keyed by username. Implementations
	// do not need to be atomic, the Guard serializes access per username.
	AttemptStore interface {
		Get(username string) (Attempts, bool, error)
		Put(username string, a Attempts) error
		Delete(username string) error
	}

	// CacheAttemptStore keeps records in process memory. Nothing survives a
	// restart and nothing is shared with other processes.
	CacheAttemptStore struct {
		cache *bigcache.BigCache
	}
)

const (
	attemptsRecordLen = 12
)

// NewCacheAttemptStore forgets records that were not written for longer than
// memory.
func NewCacheAttemptStore(memory time.Duration) (*CacheAttemptStore, error) {
	cfg := bigcache.DefaultConfig(memory)
	cfg.Shards = 64
	cfg.CleanWindow = time.Minute
	cfg.MaxEntrySize = 64
	cfg.MaxEntriesInWindow = 10_000
	cfg.Verbose = false
	cache, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create attempt cache, cause %w", err)
	}
	return &CacheAttemptStore{cache: cache}, nil
}

func (c *CacheAttemptStore) Get(username string) (Attempts, bool, error) {
	buf, err := c.cache.Get(username)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return Attempts{}, false, nil
	} else if err != nil {
		return Attempts{}, false, fmt.Errorf("unable to read attempts of %v, cause %w", username, err)
	}
	if len(buf) != attemptsRecordLen {
		return Attempts{}, false, fmt.Errorf("corrupted attempts record for %v", username)
	}
	a := Attempts{Failures: int(binary.BigEndian.Uint32(buf[:4]))}
	if until := int64(binary.BigEndian.Uint64(buf[4:])); until != 0 {
		a.LockedUntil = time.Unix(0, until).UTC()
	}
	return a, true, nil
}

func (c *CacheAttemptStore) Put(username string, a Attempts) error {
	var buf [attemptsRecordLen]byte
	binary.BigEndian.PutUint32(buf[:4], uint32(a.Failures))
	if !a.LockedUntil.IsZero() {
		binary.BigEndian.PutUint64(buf[4:], uint64(a.LockedUntil.UnixNano()))
	}
	return c.cache.Set(username, buf[:])
}

func (c *CacheAttemptStore) Delete(username string) error {
	err := c.cache.Delete(username)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (c *CacheAttemptStore) Close() error {
	return c.cache.Close()
}
