package userstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

type (
	// Deck provisions one Store per username. Stores are opened lazily,
	// kept open until Destroy/Close and are safe to share between requests.
	Deck struct {
		dir   string
		lock  sync.Mutex
		slots map[string]*slot
	}

	// slot serializes open and destroy of a single username, so loading
	// one store never holds up the others.
	slot struct {
		sync.Mutex
		store *Store
	}
)

const (
	maxNamePrefix = 32
	storeExt      = ".db"
)

// NewDeck keeps every per-user database under dir.
func NewDeck(dir string) (*Deck, error) {
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return nil, fmt.Errorf("unable to create directory %v to store user data, cause %w", dir, err)
	}
	return &Deck{
		dir:   dir,
		slots: make(map[string]*slot),
	}, nil
}

// Provision makes sure the store for username exists.
func (d *Deck) Provision(ctx context.Context, username string) error {
	_, err := d.Open(ctx, username)
	return err
}

// Open returns the store of username, creating it when absent. Calling Open
// again for the same username returns the same *Store.
func (d *Deck) Open(ctx context.Context, username string) (*Store, error) {
	return d.load(ctx, username, true)
}

// Lookup is Open for stores that were already provisioned, an unknown
// username returns StoreNotFound and nothing is written to disk.
func (d *Deck) Lookup(ctx context.Context, username string) (*Store, error) {
	return d.load(ctx, username, false)
}

func (d *Deck) load(ctx context.Context, username string, create bool) (*Store, error) {
	file, err := d.storeFile(username)
	if err != nil {
		return nil, err
	}
	sl := d.slot(username)
	sl.Lock()
	defer sl.Unlock()
	if sl.store != nil {
		return sl.store, nil
	}
	if !create {
		_, err := os.Stat(file)
		if errors.Is(err, os.ErrNotExist) {
			return nil, StoreNotFound{Username: username}
		} else if err != nil {
			return nil, fmt.Errorf("unable to check store of %v, cause %w", username, err)
		}
	}
	s, err := loadStore(ctx, username, file)
	if err != nil {
		return nil, err
	}
	sl.store = s
	return s, nil
}

// Destroy closes the store of username and removes its files. Destroying a
// store that was never provisioned is not an error.
func (d *Deck) Destroy(ctx context.Context, username string) error {
	file, err := d.storeFile(username)
	if err != nil {
		return err
	}
	sl := d.slot(username)
	sl.Lock()
	defer sl.Unlock()
	if s := sl.store; s != nil {
		sl.store = nil
		if err := s.Close(); err != nil {
			return fmt.Errorf("unable to close store of %v, cause %w", username, err)
		}
	}
	for _, f := range []string{file, file + "-wal", file + "-shm"} {
		err := os.Remove(f)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("unable to remove %v, cause %w", f, err)
		}
	}
	return nil
}

// slot returns the entry of username. Entries are never removed, a caller
// waiting on an old entry must not race a newer one for the same file.
func (d *Deck) slot(username string) *slot {
	d.lock.Lock()
	defer d.lock.Unlock()
	sl := d.slots[username]
	if sl == nil {
		sl = &slot{}
		d.slots[username] = sl
	}
	return sl
}

// snapshot copies the current entries so callers can lock them one by one.
func (d *Deck) snapshot() map[string]*slot {
	d.lock.Lock()
	defer d.lock.Unlock()
	out := make(map[string]*slot, len(d.slots))
	for k, v := range d.slots {
		out[k] = v
	}
	return out
}

// Exists reports whether a database file is present for username.
func (d *Deck) Exists(username string) bool {
	file, err := d.storeFile(username)
	if err != nil {
		return false
	}
	_, err = os.Stat(file)
	return err == nil
}

// List returns the usernames with an open store.
func (d *Deck) List() []string {
	var out []string
	for name, sl := range d.snapshot() {
		sl.Lock()
		if sl.store != nil {
			out = append(out, name)
		}
		sl.Unlock()
	}
	sort.Strings(out)
	return out
}

func (d *Deck) Close() error {
	var errs []error
	for name, sl := range d.snapshot() {
		sl.Lock()
		if sl.store != nil {
			if err := sl.store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("unable to close store of %v, cause %w", name, err))
			}
			sl.store = nil
		}
		sl.Unlock()
	}
	return errors.Join(errs...)
}

// storeFile derives the database path from username. The readable prefix
// only keeps safe characters, the hash suffix keeps distinct usernames apart.
func (d *Deck) storeFile(username string) (string, error) {
	if username == "" || !utf8.ValidString(username) {
		return "", InvalidUsername{Username: username}
	}
	var prefix strings.Builder
	for _, r := range username {
		if prefix.Len() >= maxNamePrefix {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			prefix.WriteRune(r)
		}
	}
	name := fmt.Sprintf("%v_%016x_health%v", prefix.String(), xxhash.Sum64String(username), storeExt)
	return filepath.Join(d.dir, name), nil
}
