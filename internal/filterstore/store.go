// Package filterstore keeps named filters in Postgres so they can be compiled
// by name and re-checked in the background.
package filterstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNotFound = errors.New("saved filter not found")

const (
	StatusUnchecked = "UNCHECKED"
	StatusOK        = "OK"
	StatusBroken    = "BROKEN"
)

// Schema creates the table the Store reads.
const Schema = `CREATE TABLE IF NOT EXISTS saved_filters (
	id              BIGSERIAL PRIMARY KEY,
	name            TEXT NOT NULL UNIQUE,
	expression      TEXT NOT NULL,
	target          TEXT NOT NULL DEFAULT 'sql',
	status          TEXT NOT NULL DEFAULT 'UNCHECKED',
	last_error      TEXT NOT NULL DEFAULT '',
	last_checked_at TIMESTAMPTZ
)`

type Filter struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Expression    string     `json:"expression"`
	Target        string     `json:"target"`
	Status        string     `json:"status"`
	LastError     string     `json:"last_error,omitempty"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
}

// DB is the part of pgxpool.Pool the store uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	db DB
}

func New(db DB) *Store {
	return &Store{db: db}
}

const selectFilters = `SELECT id, name, expression, target, status, last_error, last_checked_at FROM saved_filters`

func scanFilter(row pgx.Row) (Filter, error) {
	var f Filter
	err := row.Scan(&f.ID, &f.Name, &f.Expression, &f.Target, &f.Status, &f.LastError, &f.LastCheckedAt)
	return f, err
}

func (s *Store) List(ctx context.Context) ([]Filter, error) {
	rows, err := s.db.Query(ctx, selectFilters+" ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list saved filters: %w", err)
	}
	defer rows.Close()

	var filters []Filter
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan saved filter: %w", err)
		}
		filters = append(filters, f)
	}
	return filters, rows.Err()
}

// Due returns filters never checked or last checked before now-every.
func (s *Store) Due(ctx context.Context, every time.Duration) ([]Filter, error) {
	rows, err := s.db.Query(ctx,
		selectFilters+" WHERE last_checked_at IS NULL OR last_checked_at <= NOW() - ($1 * '1 second'::interval) ORDER BY id",
		int64(every.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to list due filters: %w", err)
	}
	defer rows.Close()

	var filters []Filter
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan saved filter: %w", err)
		}
		filters = append(filters, f)
	}
	return filters, rows.Err()
}

func (s *Store) Get(ctx context.Context, name string) (*Filter, error) {
	f, err := scanFilter(s.db.QueryRow(ctx, selectFilters+" WHERE name = $1", name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get saved filter %s: %w", name, err)
	}
	return &f, nil
}

// MarkChecked records the result of the last compile of a saved filter.
func (s *Store) MarkChecked(ctx context.Context, id int64, status, lastError string) error {
	_, err := s.db.Exec(ctx,
		"UPDATE saved_filters SET status = $1, last_error = $2, last_checked_at = NOW() WHERE id = $3",
		status, lastError, id)
	if err != nil {
		return fmt.Errorf("failed to update saved filter %d: %w", id, err)
	}
	return nil
}

// CountByStatus counts saved filters whose last check recorded status.
func (s *Store) CountByStatus(ctx context.Context, status string) (int, error) {
	var n int64
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM saved_filters WHERE status = $1", status).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s saved filters: %w", status, err)
	}
	return int(n), nil
}
