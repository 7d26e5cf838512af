// Package sqlite provides a SQLite-backed telemetry store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/EV081/mysto-mobile-sub000/internal/platform/storage/sqlitemigrate"
	"github.com/EV081/mysto-mobile-sub000/internal/telemetry"
	"github.com/EV081/mysto-mobile-sub000/internal/telemetry/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists telemetry events in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite telemetry store and applies embedded migrations.
func Open(path string) (*Store, error) {
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
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AppendEvent implements telemetry.Store.
func (s *Store) AppendEvent(ctx context.Context, evt telemetry.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(evt.ID) == "" {
		return fmt.Errorf("event id is required")
	}
	if strings.TrimSpace(evt.Name) == "" {
		return fmt.Errorf("event name is required")
	}
	createdAt := evt.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO telemetry_events (id, name, severity, museum_id, attempt_id, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.ID,
		evt.Name,
		string(evt.Severity),
		evt.MuseumID,
		evt.AttemptID,
		evt.Detail,
		createdAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert telemetry event: %w", err)
	}
	return nil
}

// EventsSince returns events recorded at or after the given time, oldest first.
func (s *Store) EventsSince(ctx context.Context, since time.Time) ([]telemetry.Event, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, name, severity, museum_id, attempt_id, detail, created_at
		 FROM telemetry_events
		 WHERE created_at >= ?
		 ORDER BY created_at ASC, id ASC`,
		since.UTC().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("query telemetry events: %w", err)
	}
	defer rows.Close()

	var events []telemetry.Event
	for rows.Next() {
		var evt telemetry.Event
		var severity string
		var createdAt int64
		if err := rows.Scan(&evt.ID, &evt.Name, &severity, &evt.MuseumID, &evt.AttemptID, &evt.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan telemetry event: %w", err)
		}
		evt.Severity = telemetry.Severity(severity)
		evt.Timestamp = time.UnixMilli(createdAt).UTC()
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate telemetry events: %w", err)
	}
	return events, nil
}
