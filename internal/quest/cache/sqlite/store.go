// Package sqlite provides the SQLite-backed quest goal cache.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/EV081/mysto-mobile-sub000/internal/platform/storage/sqlitemigrate"
	"github.com/EV081/mysto-mobile-sub000/internal/quest/cache"
	"github.com/EV081/mysto-mobile-sub000/internal/quest/cache/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists goal-cache rows in SQLite, one per (museum, day) key. Rows
// for past days are never evicted; the day-scoped key simply stops matching
// them once the date changes.
type Store struct {
	sqlDB *sql.DB
	clock func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock that determines "today" in cache keys.
// Used by tests to cross day boundaries.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Open opens a SQLite goal cache and applies embedded migrations.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	store := &Store{sqlDB: sqlDB, clock: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Read implements cache.Store.
func (s *Store) Read(ctx context.Context, museumID int64) (cache.Entry, error) {
	if err := ctx.Err(); err != nil {
		return cache.Entry{}, err
	}
	if s == nil || s.sqlDB == nil {
		return cache.Entry{}, fmt.Errorf("storage is not configured")
	}

	var goalID, capturedAt int64
	err := s.sqlDB.QueryRowContext(
		ctx,
		"SELECT goal_id, captured_at FROM quest_cache WHERE cache_key = ?",
		s.todayKey(museumID),
	).Scan(&goalID, &capturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cache.Entry{}, cache.ErrNotFound
	}
	if err != nil {
		return cache.Entry{}, fmt.Errorf("read cache entry: %w", err)
	}
	return cache.Entry{
		GoalID:     goalID,
		CapturedAt: time.UnixMilli(capturedAt).UTC(),
	}, nil
}

// Write implements cache.Store. Last writer wins per key.
func (s *Store) Write(ctx context.Context, museumID, goalID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if goalID <= 0 {
		return fmt.Errorf("goal id must be positive")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO quest_cache (cache_key, goal_id, captured_at) VALUES (?, ?, ?)
		 ON CONFLICT (cache_key) DO UPDATE SET goal_id = excluded.goal_id, captured_at = excluded.captured_at`,
		s.todayKey(museumID),
		goalID,
		s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Clear implements cache.Store. It removes the current day's key only.
func (s *Store) Clear(ctx context.Context, museumID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM quest_cache WHERE cache_key = ?", s.todayKey(museumID)); err != nil {
		return fmt.Errorf("clear cache entry: %w", err)
	}
	return nil
}

func (s *Store) todayKey(museumID int64) string {
	return cache.Key(museumID, s.now())
}

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
