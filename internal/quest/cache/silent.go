package cache

import (
	"context"
	"errors"

	"github.com/EV081/mysto-mobile-sub000/internal/platform/timeouts"
	"github.com/EV081/mysto-mobile-sub000/internal/telemetry"
)

// Silent wraps a Store with the engine's degradation policy: a failing cache
// behaves identically to a cache miss and never blocks quest initialization.
// Faults are recorded as telemetry events, not surfaced to callers.
type Silent struct {
	store   Store
	emitter *telemetry.Emitter
}

// NewSilent wraps store. A nil store degrades every read to a miss.
func NewSilent(store Store, emitter *telemetry.Emitter) *Silent {
	return &Silent{store: store, emitter: emitter}
}

// Read returns today's cached goal id for the museum, or ok=false on miss,
// corrupt value, or any storage fault.
func (s *Silent) Read(ctx context.Context, museumID int64) (goalID int64, ok bool) {
	if s == nil || s.store == nil {
		return 0, false
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.CacheCall)
	defer cancel()

	entry, err := s.store.Read(ctx, museumID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.warn(ctx, "quest_cache_read_failed", museumID, err)
		}
		return 0, false
	}
	if entry.GoalID <= 0 {
		return 0, false
	}
	return entry.GoalID, true
}

// Write stores today's goal id, best-effort.
func (s *Silent) Write(ctx context.Context, museumID, goalID int64) {
	if s == nil || s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.CacheCall)
	defer cancel()

	if err := s.store.Write(ctx, museumID, goalID); err != nil {
		s.warn(ctx, "quest_cache_write_failed", museumID, err)
	}
}

// Clear removes today's entry, best-effort.
func (s *Silent) Clear(ctx context.Context, museumID int64) {
	if s == nil || s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.CacheCall)
	defer cancel()

	if err := s.store.Clear(ctx, museumID); err != nil {
		s.warn(ctx, "quest_cache_clear_failed", museumID, err)
	}
}

func (s *Silent) warn(ctx context.Context, name string, museumID int64, err error) {
	_ = s.emitter.Emit(ctx, telemetry.Event{
		Name:     name,
		Severity: telemetry.SeverityWarn,
		MuseumID: museumID,
		Detail:   err.Error(),
	})
}
