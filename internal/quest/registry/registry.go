// Package registry holds the shared per-museum quest states so every screen
// observing a museum shares one in-flight request and one cached result.
package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/EV081/mysto-mobile-sub000/internal/platform/errors"
	"github.com/EV081/mysto-mobile-sub000/internal/quest"
	"github.com/EV081/mysto-mobile-sub000/internal/quest/api"
	"github.com/EV081/mysto-mobile-sub000/internal/quest/initiator"
	"github.com/EV081/mysto-mobile-sub000/internal/telemetry"
)

// Observer receives a state snapshot after each mutation of its museum.
type Observer func(quest.State)

// Registry multiplexes quest state per museum. States are created lazily on
// first access and live for the life of the process; only the goal id is
// persisted (by the initiator's cache), never the found set, which is always
// reconciled from the server on refresh.
type Registry struct {
	backend   api.Backend
	initiator *initiator.Initiator
	emitter   *telemetry.Emitter

	refreshGroup singleflight.Group

	mu        sync.Mutex
	states    map[int64]quest.State
	observers map[int64]map[int64]Observer
	nextToken int64
}

// Option customizes a Registry.
type Option func(*Registry)

// WithEmitter attaches a telemetry emitter to the registry and its initiator.
func WithEmitter(emitter *telemetry.Emitter) Option {
	return func(r *Registry) { r.emitter = emitter }
}

// New creates a registry over the backend, with start attempts driven by the
// given initiator.
func New(backend api.Backend, init *initiator.Initiator, opts ...Option) *Registry {
	registry := &Registry{
		backend:   backend,
		initiator: init,
		states:    make(map[int64]quest.State),
		observers: make(map[int64]map[int64]Observer),
	}
	for _, opt := range opts {
		opt(registry)
	}
	return registry
}

// State returns the museum's current state snapshot. It never fails: an
// invalid museum id yields a sentinel error state instead.
func (r *Registry) State(museumID int64) quest.State {
	if museumID <= 0 {
		errState := quest.NewState(museumID)
		errState.Status = quest.StatusError
		errState.ErrorMessage = "museum id must be positive"
		return errState
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked(museumID).Clone()
}

// Completion returns the museum's completion ratio, derived on every read.
func (r *Registry) Completion(museumID int64) float64 {
	return quest.Completion(r.State(museumID))
}

// Subscribe registers an observer for one museum and returns an unsubscribe
// function. Each mutation notifies every registered observer exactly once
// with an independent snapshot, in registration order.
func (r *Registry) Subscribe(museumID int64, fn Observer) (unsubscribe func()) {
	if museumID <= 0 || fn == nil {
		return func() {}
	}

	r.mu.Lock()
	r.nextToken++
	token := r.nextToken
	if r.observers[museumID] == nil {
		r.observers[museumID] = make(map[int64]Observer)
	}
	r.observers[museumID][token] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.observers[museumID], token)
		r.mu.Unlock()
	}
}

// StartIfNeeded drives the museum's initiator state machine and folds its
// result into the shared state. Concurrent calls for the same museum share
// one attempt; the caller's ctx only controls how long this caller waits.
func (r *Registry) StartIfNeeded(ctx context.Context, museumID int64, loc *quest.Location) (quest.State, error) {
	if museumID <= 0 {
		return r.State(museumID), apperrors.New(apperrors.CodeMuseumIDInvalid, "museum id must be positive")
	}

	// A repeat call on an already-settled day is a no-op; publishing a
	// transitional starting state would only flicker observers through
	// ready -> starting -> ready.
	if _, settled := r.initiator.SettledToday(museumID); !settled {
		r.mutate(museumID, func(state *quest.State) bool {
			if state.Status == quest.StatusStarting {
				return false
			}
			state.Status = quest.StatusStarting
			return true
		})
	}

	result, err := r.initiator.StartIfNeeded(ctx, museumID, loc)
	if err != nil {
		// The shared attempt may still settle for other waiters. Only when
		// nobody is left waiting does the state fall back to idle.
		r.mutate(museumID, func(state *quest.State) bool {
			if state.Status != quest.StatusStarting || r.initiator.InFlight(museumID) {
				return false
			}
			state.Status = quest.StatusIdle
			return true
		})
		return r.State(museumID), err
	}

	r.mutate(museumID, func(state *quest.State) bool {
		if state.Status == quest.StatusReady && result.Status == quest.StatusReady &&
			state.GoalID == result.GoalID && result.Quest == nil {
			// Nothing new to publish.
			return false
		}
		applyResult(state, result)
		return true
	})
	return r.State(museumID), nil
}

// Refresh reconciles the museum's state with the backend read, bypassing the
// goal cache. Concurrent refreshes for the same museum collapse into one
// backend call. A not-found answer means "no active quest today", which is a
// normal state, not an error; any other failure records the message without
// discarding previously known found data.
func (r *Registry) Refresh(ctx context.Context, museumID int64) (quest.State, error) {
	if museumID <= 0 {
		return r.State(museumID), apperrors.New(apperrors.CodeMuseumIDInvalid, "museum id must be positive")
	}

	_, err, _ := r.refreshGroup.Do(refreshKey(museumID), func() (any, error) {
		fetched, fetchErr := r.backend.GetQuest(ctx, museumID)
		if fetchErr != nil {
			if apperrors.CodeOf(fetchErr) == apperrors.CodeQuestNotFound {
				r.mutate(museumID, func(state *quest.State) bool {
					state.GoalID = 0
					state.Status = quest.StatusIdle
					state.ErrorMessage = ""
					return true
				})
				return nil, nil
			}
			r.mutate(museumID, func(state *quest.State) bool {
				state.ErrorMessage = fetchErr.Error()
				return true
			})
			return nil, fetchErr
		}

		r.mutate(museumID, func(state *quest.State) bool {
			reconcile(state, fetched)
			return true
		})
		return nil, nil
	})
	return r.State(museumID), err
}

// MarkFound optimistically adds the object to the museum's found set, before
// any server round-trip confirms it. All consumers see the update
// immediately. Re-marking a found object is a no-op and notifies nobody.
func (r *Registry) MarkFound(museumID, objectID int64) quest.State {
	if museumID <= 0 {
		return r.State(museumID)
	}

	added := false
	r.mutate(museumID, func(state *quest.State) bool {
		if state.HasFound(objectID) {
			return false
		}
		state.Found[objectID] = struct{}{}
		added = true
		return true
	})
	if added {
		r.emitFound(museumID, objectID)
	}
	return r.State(museumID)
}

// Close aborts outstanding start attempts.
func (r *Registry) Close() {
	if r.initiator != nil {
		r.initiator.Close()
	}
}

// mutate applies fn to the museum's state under the lock. When fn reports a
// mutation, observers registered at that moment are notified once each with
// an independent snapshot, outside the lock. The snapshot is frozen before
// the lock is released: later mutations touch the live state's maps, never
// the copies handed to watchers.
func (r *Registry) mutate(museumID int64, fn func(*quest.State) bool) {
	r.mu.Lock()
	state := r.stateLocked(museumID)
	mutated := fn(&state)
	if !mutated {
		r.mu.Unlock()
		return
	}
	r.states[museumID] = state
	snapshot := state.Clone()

	watchers := make([]Observer, 0, len(r.observers[museumID]))
	tokens := make([]int64, 0, len(r.observers[museumID]))
	for token := range r.observers[museumID] {
		tokens = append(tokens, token)
	}
	slices.Sort(tokens)
	for _, token := range tokens {
		watchers = append(watchers, r.observers[museumID][token])
	}
	r.mu.Unlock()

	for _, watcher := range watchers {
		watcher(snapshot.Clone())
	}
}

func (r *Registry) stateLocked(museumID int64) quest.State {
	state, ok := r.states[museumID]
	if !ok {
		state = quest.NewState(museumID)
		r.states[museumID] = state
	}
	return state
}

// applyResult folds an initiator outcome into the state.
func applyResult(state *quest.State, result initiator.Result) {
	state.Status = result.Status
	state.ErrorMessage = result.ErrorMessage
	if result.Status != quest.StatusReady {
		return
	}
	if state.GoalID != 0 && state.GoalID != result.GoalID {
		// A different quest means a fresh found set.
		state.Found = map[int64]struct{}{}
		state.TargetObjects = nil
	}
	state.GoalID = result.GoalID
	state.ErrorMessage = ""
	if result.Quest != nil {
		reconcile(state, *result.Quest)
	}
}

// reconcile merges a server quest read into the state. For the same quest the
// found set becomes the union of the server set and the local set, never a
// replacement: an object marked found locally must not un-find itself due to
// server read lag. A different quest id reinitializes the found set.
func reconcile(state *quest.State, fetched quest.Quest) {
	if state.GoalID != 0 && state.GoalID != fetched.ID {
		state.Found = map[int64]struct{}{}
	}
	state.GoalID = fetched.ID
	state.Status = quest.StatusReady
	state.ErrorMessage = ""
	state.TargetObjects = fetched.TargetObjects
	if state.Found == nil {
		state.Found = map[int64]struct{}{}
	}
	for _, objectID := range fetched.Found {
		state.Found[objectID] = struct{}{}
	}
}

func (r *Registry) emitFound(museumID, objectID int64) {
	_ = r.emitter.Emit(context.Background(), telemetry.Event{
		Name:     "quest_object_found",
		Severity: telemetry.SeverityInfo,
		MuseumID: museumID,
		Detail:   fmt.Sprintf("object %d", objectID),
	})
}

func refreshKey(museumID int64) string {
	return fmt.Sprintf("museum:%d", museumID)
}
