// Package telemetry records operational events from the quest engine:
// cache faults, classification outcomes, and recovery results.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Severity describes the telemetry severity level.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Event is one operational telemetry record.
type Event struct {
	ID        string
	Name      string
	Severity  Severity
	MuseumID  int64
	AttemptID string
	Detail    string
	Timestamp time.Time
}

// Store persists telemetry events.
type Store interface {
	AppendEvent(ctx context.Context, evt Event) error
}

// Emitter records operational telemetry events.
type Emitter struct {
	store Store
	clock func() time.Time
}

// NewEmitter creates a new telemetry emitter.
func NewEmitter(store Store) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// WithClock overrides the emitter's clock. Used by tests.
func (e *Emitter) WithClock(clock func() time.Time) *Emitter {
	if e != nil && clock != nil {
		e.clock = clock
	}
	return e
}

// Emit records a telemetry event. It is a no-op when the emitter or store is nil.
func (e *Emitter) Emit(ctx context.Context, evt Event) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Severity == "" {
		evt.Severity = SeverityInfo
	}
	if evt.Timestamp.IsZero() {
		if e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	return e.store.AppendEvent(ctx, evt)
}
