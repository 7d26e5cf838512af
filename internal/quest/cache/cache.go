// Package cache persists goal ids per museum and calendar day so repeated
// quest initializations within the same day skip the backend entirely.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates no cache entry exists for the museum today.
var ErrNotFound = errors.New("cache entry not found")

// DayFormat is the calendar-day layout embedded in cache keys.
const DayFormat = "2006-01-02"

// Entry is one cached goal id.
type Entry struct {
	GoalID     int64
	CapturedAt time.Time
}

// Store persists at most one entry per (museum, day) pair. The day is part of
// the storage key itself, so entries for past days become unreachable rather
// than explicitly expired; the cardinality is small enough that nothing
// reclaims them.
type Store interface {
	// Read returns today's entry for the museum, or ErrNotFound.
	Read(ctx context.Context, museumID int64) (Entry, error)
	// Write stores today's goal id for the museum, replacing any previous one.
	Write(ctx context.Context, museumID, goalID int64) error
	// Clear removes today's entry for the museum. Used when a cached id turns
	// out to be stale.
	Clear(ctx context.Context, museumID int64) error
}

// Key builds the storage key for a museum on a given day.
func Key(museumID int64, day time.Time) string {
	return fmt.Sprintf("quest:%d:%s", museumID, day.UTC().Format(DayFormat))
}
