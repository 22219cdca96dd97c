// Package store owns the Postgres connection shared by the order service,
// the scheduler and the menu catalog.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/lib/pq"

	"github.com/joao-fontenele/foodflow/internal/telemetry"
)

var (
	ErrMissingDSN = errors.New("store: missing connection string")
	ErrClosed     = errors.New("store: closed")
)

// Opener opens and verifies a connection pool.
type Opener func(ctx context.Context, dsn string) (*sql.DB, error)

// Store is a lazily opened connection handle. Open is idempotent and safe
// for concurrent use; a failed Open leaves the store closed so a later call
// can retry.
type Store struct {
	dsn    string
	opener Opener

	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

type Option func(*Store)

// WithOpener replaces the default instrumented Postgres opener.
func WithOpener(o Opener) Option {
	return func(s *Store) {
		s.opener = o
	}
}

func New(dsn string, opts ...Option) (*Store, error) {
	if dsn == "" {
		return nil, ErrMissingDSN
	}

	s := &Store{dsn: dsn, opener: openPostgres}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := telemetry.OpenDB("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Open connects if the store is not connected yet.
func (s *Store) Open(ctx context.Context) error {
	_, err := s.DB(ctx)
	return err
}

// DB returns the pool, opening it on first use.
func (s *Store) DB(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.db != nil {
		return s.db, nil
	}

	db, err := s.opener(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s.db = db
	return db, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.DB(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close releases the pool. Calling Close more than once is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
