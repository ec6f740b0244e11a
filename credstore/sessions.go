package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type (
	SessionRow struct {
		ID        string
		Username  string
		IssuedAt  time.Time
		ExpiresAt time.Time
	}
)

func (s *Store) SaveSession(ctx context.Context, row SessionRow) error {
	_, err := s.db.ExecContext(ctx, `insert into sessions(session_id, username, issued_at, expires_at) values (?, ?, ?, ?)`,
		row.ID, row.Username, row.IssuedAt.UTC(), row.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("unable to save session for %v, cause %w", row.Username, err)
	}
	return nil
}

// LoadSession returns SessionNotFound for unknown ids. Expired rows are
// returned as-is, the caller decides what to do with them.
func (s *Store) LoadSession(ctx context.Context, id string) (SessionRow, error) {
	row := SessionRow{ID: id}
	err := s.db.QueryRowContext(ctx, `select username, issued_at, expires_at from sessions where session_id = ?`, id).
		Scan(&row.Username, &row.IssuedAt, &row.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRow{}, SessionNotFound{}
	} else if err != nil {
		return SessionRow{}, fmt.Errorf("unable to load session, cause %w", err)
	}
	return row, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("unable to delete session, cause %w", err)
	}
	return nil
}

// PurgeSessions removes every session that expired before now.
func (s *Store) PurgeSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from sessions where expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("unable to purge sessions, cause %w", err)
	}
	return res.RowsAffected()
}
