// Package credstore keeps the global table of usernames and password hashes
// plus the server side session rows used by the cookie login flow.
package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
)

type (
	// Store is backed by a single sqlite database shared by all users.
	Store struct {
		db *sql.DB
	}

	Credential struct {
		Username     string
		PasswordHash string
		CreatedAt    time.Time
	}
)

const (
	dbFile = "auth.db"
)

func openDatabase(ctx context.Context, dir string) (*sql.DB, error) {
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return nil, fmt.Errorf("unable to create directory %v to store credentials, cause %w", dir, err)
	}
	file := filepath.Join(dir, dbFile)
	connstr := fmt.Sprintf("file:%v?_journal=wal&_busy_timeout=5000&_foreign_keys=1&mode=rwc", file)
	conn, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v, cause %w", file, err)
	}
	err = conn.PingContext(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to ping credential store %v, cause %w", file, err)
	}
	return conn, nil
}

// Open loads (creating if needed) the credential database under dir.
func Open(ctx context.Context, dir string) (*Store, error) {
	conn, err := openDatabase(ctx, dir)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to init credential store at %v, cause %w", dir, err)
	}
	return s, nil
}

// New wraps an already opened database and makes sure the schema exists.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new credential. Usernames are unique, a duplicate
// returns UserExists.
func (s *Store) Create(ctx context.Context, username, passwordHash string) (Credential, error) {
	c := Credential{Username: username, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx, `insert into users(username, password_hash, created_at) values (?, ?, ?)`,
		c.Username, c.PasswordHash, c.CreatedAt)
	if isUniqueViolation(err) {
		return Credential{}, UserExists{Username: username}
	} else if err != nil {
		return Credential{}, fmt.Errorf("unable to store credential for %v, cause %w", username, err)
	}
	return c, nil
}

// Lookup returns UserNotFound when the username is unknown.
func (s *Store) Lookup(ctx context.Context, username string) (Credential, error) {
	var c Credential
	err := s.db.QueryRowContext(ctx, `select username, password_hash, created_at from users where username = ?`, username).
		Scan(&c.Username, &c.PasswordHash, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, UserNotFound{Username: username}
	} else if err != nil {
		return Credential{}, fmt.Errorf("unable to lookup credential for %v, cause %w", username, err)
	}
	return c, nil
}

func (s *Store) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `update users set password_hash = ? where username = ?`, passwordHash, username)
	if err != nil {
		return fmt.Errorf("unable to update password for %v, cause %w", username, err)
	}
	return expectOne(res, username)
}

// Delete removes the credential and every session that belongs to it.
func (s *Store) Delete(ctx context.Context, username string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("unable to start transaction, cause %w", err)
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `delete from sessions where username = ?`, username)
	if err != nil {
		return fmt.Errorf("unable to remove sessions of %v, cause %w", username, err)
	}
	res, err := tx.ExecContext(ctx, `delete from users where username = ?`, username)
	if err != nil {
		return fmt.Errorf("unable to remove credential of %v, cause %w", username, err)
	}
	if err := expectOne(res, username); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `select count(*) from users`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("unable to count users, cause %w", err)
	}
	return n, nil
}

func (s *Store) init(ctx context.Context) error {
	for _, cmd := range []string{
		`create table if not exists users(
			username text not null primary key,
			password_hash text not null,
			created_at timestamp not null
		)`,
		`create table if not exists sessions(
			session_id text not null primary key,
			username text not null,
			issued_at timestamp not null,
			expires_at timestamp not null,
			foreign key (username) references users(username) on delete cascade
		)`,
		`create index if not exists idx_sessions_username on sessions(username)`,
	} {
		_, err := s.db.ExecContext(ctx, cmd)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func expectOne(res sql.Result, username string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to check affected rows, cause %w", err)
	}
	if n == 0 {
		return UserNotFound{Username: username}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqlErr sqlite3.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	return sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
