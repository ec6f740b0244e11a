package userstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type (
	// Store is the isolated database of a single user. Every record it
	// returns belongs to that user, there is no user column anywhere.
	Store struct {
		db       *sql.DB
		username string
		file     string
	}
)

func openStoreDatabase(ctx context.Context, file string) (*sql.DB, error) {
	connstr := fmt.Sprintf("file:%v?_journal=wal&_busy_timeout=5000&mode=rwc", file)
	conn, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v, cause %v", file, err)
	}
	err = conn.PingContext(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to ping store %v, cause %v", file, err)
	}
	return conn, nil
}

func loadStore(ctx context.Context, username, file string) (*Store, error) {
	conn, err := openStoreDatabase(ctx, file)
	if err != nil {
		return nil, err
	}
	s := &Store{db: conn, username: username, file: file}
	err = s.init(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to init store %v, cause %w", file, err)
	}
	return s, nil
}

// Username returns the owner of the store.
func (s *Store) Username() string {
	return s.username
}

func (s *Store) init(ctx context.Context) error {
	for _, cmd := range []string{
		`create table if not exists weight_entries(
			id integer not null primary key autoincrement,
			date text not null,
			weight real not null,
			unit text not null default 'lbs' check (unit in ('kg', 'lbs')),
			notes text not null default ''
		)`,
		`create index if not exists idx_weight_entries_date on weight_entries(date)`,
		`create table if not exists exercises(
			id integer not null primary key autoincrement,
			date text not null,
			type text not null,
			duration integer not null,
			calories integer,
			distance real,
			notes text not null default ''
		)`,
		`create index if not exists idx_exercises_date on exercises(date)`,
		`create table if not exists meals(
			id integer not null primary key autoincrement,
			date text not null,
			time text not null,
			meal_type text not null check (meal_type in ('breakfast', 'lunch', 'dinner', 'snack')),
			description text not null,
			calories integer,
			protein real,
			carbs real,
			fats real,
			notes text not null default ''
		)`,
		`create index if not exists idx_meals_date on meals(date)`,
		`create table if not exists goals(
			id integer not null primary key autoincrement,
			type text not null check (type in ('weight', 'exercise', 'calories')),
			target_value real not null,
			current_value real,
			deadline text,
			description text not null default '',
			completed integer not null default 0
		)`,
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
