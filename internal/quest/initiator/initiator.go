// Package initiator turns "I want a quest for museum X today" into a terminal
// status, using the goal cache, a start call, and a recovery read.
package initiator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/EV081/mysto-mobile-sub000/internal/platform/errors"
	"github.com/EV081/mysto-mobile-sub000/internal/quest"
	"github.com/EV081/mysto-mobile-sub000/internal/quest/api"
	"github.com/EV081/mysto-mobile-sub000/internal/quest/cache"
	"github.com/EV081/mysto-mobile-sub000/internal/telemetry"
)

const tracerName = "github.com/EV081/mysto-mobile-sub000/internal/quest/initiator"

// Result is the settled outcome of one start attempt.
type Result struct {
	GoalID int64
	Status quest.Status
	// Quest carries found/target details when the recovery read supplied them.
	// Nil when the attempt settled from the cache or the bare start call.
	Quest        *quest.Quest
	ErrorMessage string
}

// Initiator serializes start attempts per museum. At most one start call is in
// flight per museum at any time; concurrent callers join the pending attempt.
// Museums are fully independent and may interleave arbitrarily.
type Initiator struct {
	backend api.Backend
	cache   *cache.Silent
	emitter *telemetry.Emitter
	clock   func() time.Time
	tracer  trace.Tracer

	mu       sync.Mutex
	attempts map[int64]*attempt
	settled  map[int64]settledEntry
	closed   bool
}

// settledEntry remembers a ready outcome so repeated calls on the same day
// return without any cache or network traffic.
type settledEntry struct {
	goalID int64
	day    string
}

type attempt struct {
	done    chan struct{}
	cancel  context.CancelFunc
	waiters int
	result  Result
}

// Option customizes an Initiator.
type Option func(*Initiator)

// WithEmitter attaches a telemetry emitter.
func WithEmitter(emitter *telemetry.Emitter) Option {
	return func(i *Initiator) { i.emitter = emitter }
}

// WithClock overrides the clock that scopes ready results to a day.
func WithClock(clock func() time.Time) Option {
	return func(i *Initiator) {
		if clock != nil {
			i.clock = clock
		}
	}
}

// New creates an initiator over the backend and goal cache.
func New(backend api.Backend, goalCache *cache.Silent, opts ...Option) *Initiator {
	initiator := &Initiator{
		backend:  backend,
		cache:    goalCache,
		clock:    time.Now,
		tracer:   otel.Tracer(tracerName),
		attempts: make(map[int64]*attempt),
		settled:  make(map[int64]settledEntry),
	}
	for _, opt := range opts {
		opt(initiator)
	}
	return initiator
}

// StartIfNeeded resolves today's quest for the museum.
//
// The fast paths are free of network traffic: a same-day ready result or a
// goal-cache hit settles immediately. Otherwise the backend start call runs,
// its failure is classified, and non-terminal failures fall through to one
// recovery read before the attempt settles.
//
// loc may be nil when no fix is available; initialization is then deferred
// with CodeLocationUnavailable rather than failed (unless the cache already
// holds today's quest, which needs no location).
//
// A caller abandoning ctx stops waiting without observing or causing any
// state change; the shared attempt is aborted once its last waiter leaves.
func (i *Initiator) StartIfNeeded(ctx context.Context, museumID int64, loc *quest.Location) (Result, error) {
	if museumID <= 0 {
		return Result{}, apperrors.New(apperrors.CodeMuseumIDInvalid, "museum id must be positive")
	}

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return Result{}, apperrors.New(apperrors.CodeAttemptAborted, "initiator is closed")
	}
	if entry, ok := i.settled[museumID]; ok && entry.day == i.today() {
		i.mu.Unlock()
		return Result{GoalID: entry.goalID, Status: quest.StatusReady}, nil
	}
	if pending, ok := i.attempts[museumID]; ok {
		pending.waiters++
		i.mu.Unlock()
		return i.await(ctx, museumID, pending)
	}

	attemptCtx, cancel := context.WithCancel(context.Background())
	pending := &attempt{
		done:    make(chan struct{}),
		cancel:  cancel,
		waiters: 1,
	}
	i.attempts[museumID] = pending
	i.mu.Unlock()

	go i.run(attemptCtx, museumID, loc, pending)
	return i.await(ctx, museumID, pending)
}

// SettledToday returns the goal id of a same-day ready outcome, if one exists.
// Callers use it to skip transitional states a repeat call would only flicker
// through.
func (i *Initiator) SettledToday(museumID int64) (int64, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	entry, ok := i.settled[museumID]
	if !ok || entry.day != i.today() {
		return 0, false
	}
	return entry.goalID, true
}

// InFlight reports whether a start attempt is outstanding for the museum.
func (i *Initiator) InFlight(museumID int64) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.attempts[museumID]
	return ok
}

// Close aborts all in-flight attempts. Subsequent calls fail with
// CodeAttemptAborted.
func (i *Initiator) Close() {
	i.mu.Lock()
	i.closed = true
	pending := make([]*attempt, 0, len(i.attempts))
	for _, att := range i.attempts {
		pending = append(pending, att)
	}
	i.mu.Unlock()
	for _, att := range pending {
		att.cancel()
	}
}

// await blocks until the shared attempt settles or the caller's context ends.
func (i *Initiator) await(ctx context.Context, museumID int64, pending *attempt) (Result, error) {
	select {
	case <-pending.done:
		return pending.result, nil
	case <-ctx.Done():
		i.mu.Lock()
		pending.waiters--
		abandoned := pending.waiters <= 0
		i.mu.Unlock()
		if abandoned {
			pending.cancel()
		}
		return Result{}, apperrors.Wrap(apperrors.CodeAttemptAborted, "start attempt abandoned", ctx.Err())
	}
}

func (i *Initiator) run(ctx context.Context, museumID int64, loc *quest.Location, pending *attempt) {
	attemptID := uuid.NewString()
	ctx, span := i.tracer.Start(ctx, "quest.start_if_needed",
		trace.WithAttributes(
			attribute.Int64("museum.id", museumID),
			attribute.String("attempt.id", attemptID),
		))

	result := i.resolve(ctx, museumID, loc, attemptID)

	span.SetAttributes(attribute.String("quest.status", string(result.Status)))
	span.End()

	i.mu.Lock()
	if result.Status == quest.StatusReady && ctx.Err() == nil {
		i.settled[museumID] = settledEntry{goalID: result.GoalID, day: i.today()}
	}
	pending.result = result
	delete(i.attempts, museumID)
	i.mu.Unlock()
	close(pending.done)
	pending.cancel()
}

// resolve walks the state machine: cache, start, classification, recovery.
func (i *Initiator) resolve(ctx context.Context, museumID int64, loc *quest.Location, attemptID string) Result {
	if goalID, ok := i.cache.Read(ctx, museumID); ok {
		return Result{GoalID: goalID, Status: quest.StatusReady}
	}

	if loc == nil {
		return Result{
			Status:       quest.StatusIdle,
			ErrorMessage: apperrors.New(apperrors.CodeLocationUnavailable, "no location fix available").Error(),
		}
	}

	if ctx.Err() != nil {
		return Result{Status: quest.StatusIdle, ErrorMessage: ctx.Err().Error()}
	}

	goalID, startErr := i.backend.StartQuest(ctx, museumID, *loc)
	if startErr == nil {
		i.cache.Write(ctx, museumID, goalID)
		i.emit(ctx, "quest_start_succeeded", telemetry.SeverityInfo, museumID, attemptID, "")
		return Result{GoalID: goalID, Status: quest.StatusReady}
	}

	code := apperrors.CodeOf(startErr)
	i.emit(ctx, "quest_start_failed", telemetry.SeverityWarn, museumID, attemptID, string(code)+": "+startErr.Error())

	if code.Terminal() {
		return Result{Status: quest.StatusForCode(code), ErrorMessage: startErr.Error()}
	}

	// The start call failed for a reason that does not rule out an existing
	// quest: the user may already have one from being in range earlier, the
	// conflict says one exists, or the failure was transient. One recovery
	// read decides.
	if ctx.Err() != nil {
		return Result{Status: quest.StatusIdle, ErrorMessage: ctx.Err().Error()}
	}

	recovered, recoverErr := i.backend.GetQuest(ctx, museumID)
	if recoverErr == nil {
		i.cache.Write(ctx, museumID, recovered.ID)
		i.emit(ctx, "quest_recovered", telemetry.SeverityInfo, museumID, attemptID, "")
		return Result{GoalID: recovered.ID, Status: quest.StatusReady, Quest: &recovered}
	}

	if apperrors.CodeOf(recoverErr) == apperrors.CodeQuestNotFound && code == apperrors.CodeQuestAlreadyActive {
		// The backend contradicted itself: start said a quest exists, the
		// read says none does. Drop any same-day cache row so the next
		// attempt starts clean.
		i.cache.Clear(ctx, museumID)
	}

	status := quest.StatusForCode(code)
	message := startErr.Error()
	if message == "" {
		message = recoverErr.Error()
	}
	return Result{Status: status, ErrorMessage: message}
}

func (i *Initiator) emit(ctx context.Context, name string, severity telemetry.Severity, museumID int64, attemptID, detail string) {
	_ = i.emitter.Emit(ctx, telemetry.Event{
		Name:      name,
		Severity:  severity,
		MuseumID:  museumID,
		AttemptID: attemptID,
		Detail:    detail,
	})
}

func (i *Initiator) today() string {
	return i.clock().UTC().Format(cache.DayFormat)
}
