package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/EV081/mysto-mobile-sub000/internal/platform/errors"
	"github.com/EV081/mysto-mobile-sub000/internal/quest"
	"github.com/EV081/mysto-mobile-sub000/internal/quest/cache"
	"github.com/EV081/mysto-mobile-sub000/internal/quest/initiator"
)

type fakeBackend struct {
	mu         sync.Mutex
	startID    int64
	startErr   error
	quest      quest.Quest
	getErr     error
	getCalls   atomic.Int64
	getGate    chan struct{}
	startCalls atomic.Int64
}

func (f *fakeBackend) StartQuest(_ context.Context, museumID int64, _ quest.Location) (int64, error) {
	f.startCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return 0, f.startErr
	}
	return f.startID, nil
}

func (f *fakeBackend) GetQuest(ctx context.Context, museumID int64) (quest.Quest, error) {
	f.getCalls.Add(1)
	if f.getGate != nil {
		select {
		case <-f.getGate:
		case <-ctx.Done():
			return quest.Quest{}, apperrors.Wrap(apperrors.CodeTransientFailure, "get quest request failed", ctx.Err())
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return quest.Quest{}, f.getErr
	}
	result := f.quest
	result.MuseumID = museumID
	return result, nil
}

func newRegistry(backend *fakeBackend) *Registry {
	init := initiator.New(backend, cache.NewSilent(nil, nil))
	return New(backend, init)
}

func TestStateLazyDefault(t *testing.T) {
	reg := newRegistry(&fakeBackend{})

	state := reg.State(7)
	if state.Status != quest.StatusIdle {
		t.Fatalf("expected idle default, got %s", state.Status)
	}
	if state.GoalID != 0 {
		t.Fatalf("expected no goal id, got %d", state.GoalID)
	}
	if len(state.Found) != 0 {
		t.Fatalf("expected empty found set")
	}
}

func TestStateInvalidIDReturnsSentinel(t *testing.T) {
	reg := newRegistry(&fakeBackend{})

	for _, museumID := range []int64{0, -3} {
		state := reg.State(museumID)
		if state.Status != quest.StatusError {
			t.Fatalf("expected sentinel error state for id %d, got %s", museumID, state.Status)
		}
		if state.ErrorMessage == "" {
			t.Fatalf("expected sentinel error message for id %d", museumID)
		}
	}
}

func TestMarkFoundIsIdempotent(t *testing.T) {
	// Marking the same object twice leaves the set size unchanged.
	reg := newRegistry(&fakeBackend{})

	first := reg.MarkFound(7, 7)
	if len(first.Found) != 1 {
		t.Fatalf("expected found set size 1, got %d", len(first.Found))
	}
	second := reg.MarkFound(7, 7)
	if len(second.Found) != 1 {
		t.Fatalf("expected found set size to stay 1, got %d", len(second.Found))
	}
}

func TestMarkFoundVisibleBeforeServerConfirms(t *testing.T) {
	reg := newRegistry(&fakeBackend{})

	reg.MarkFound(7, 9)
	if !reg.State(7).HasFound(9) {
		t.Fatalf("expected optimistic update to be visible immediately")
	}
}

func TestRefreshUnionsFoundSets(t *testing.T) {
	// Local {7} union server {9} = {7, 9}.
	backend := &fakeBackend{quest: quest.Quest{ID: 42, Found: []int64{9}}}
	reg := newRegistry(backend)

	reg.MarkFound(3, 7)
	state, err := reg.Refresh(context.Background(), 3)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !state.HasFound(7) || !state.HasFound(9) {
		t.Fatalf("expected union {7,9}, got %v", state.Found)
	}
	if len(state.Found) != 2 {
		t.Fatalf("expected found set size 2, got %d", len(state.Found))
	}
}

func TestRefreshPopulatesQuestDetails(t *testing.T) {
	backend := &fakeBackend{quest: quest.Quest{
		ID:            42,
		Found:         []int64{1},
		TargetObjects: []quest.CulturalObjectRef{{ID: 1, Name: "Amphora"}, {ID: 2, Name: "Mask"}},
	}}
	reg := newRegistry(backend)

	state, err := reg.Refresh(context.Background(), 7)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if state.Status != quest.StatusReady || state.GoalID != 42 {
		t.Fatalf("expected ready/42, got %s/%d", state.Status, state.GoalID)
	}
	if len(state.TargetObjects) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(state.TargetObjects))
	}
	if got := reg.Completion(7); got != 0.5 {
		t.Fatalf("expected completion 0.5, got %v", got)
	}
}

func TestRefreshNotFoundIsNormalState(t *testing.T) {
	backend := &fakeBackend{getErr: apperrors.New(apperrors.CodeQuestNotFound, "no active quest today")}
	reg := newRegistry(backend)

	state, err := reg.Refresh(context.Background(), 7)
	if err != nil {
		t.Fatalf("a missing quest is not an error, got %v", err)
	}
	if state.Status != quest.StatusIdle {
		t.Fatalf("expected idle, got %s", state.Status)
	}
	if state.ErrorMessage != "" {
		t.Fatalf("expected no error message, got %q", state.ErrorMessage)
	}
}

func TestRefreshFailureKeepsFoundData(t *testing.T) {
	backend := &fakeBackend{quest: quest.Quest{ID: 42, Found: []int64{9}}}
	reg := newRegistry(backend)

	if _, err := reg.Refresh(context.Background(), 7); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}
	reg.MarkFound(7, 5)

	backend.mu.Lock()
	backend.getErr = apperrors.New(apperrors.CodeTransientFailure, "upstream down")
	backend.mu.Unlock()

	state, err := reg.Refresh(context.Background(), 7)
	if err == nil {
		t.Fatalf("expected the transient failure to surface")
	}
	if !state.HasFound(5) || !state.HasFound(9) {
		t.Fatalf("expected found data preserved across a failed refresh, got %v", state.Found)
	}
	if state.ErrorMessage == "" {
		t.Fatalf("expected the failure message to be recorded")
	}
}

func TestRefreshNewQuestResetsFoundSet(t *testing.T) {
	backend := &fakeBackend{quest: quest.Quest{ID: 42, Found: []int64{1}}}
	reg := newRegistry(backend)

	if _, err := reg.Refresh(context.Background(), 7); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	reg.MarkFound(7, 2)

	backend.mu.Lock()
	backend.quest = quest.Quest{ID: 43, Found: []int64{3}}
	backend.mu.Unlock()

	state, err := reg.Refresh(context.Background(), 7)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if state.GoalID != 43 {
		t.Fatalf("expected new goal id 43, got %d", state.GoalID)
	}
	if state.HasFound(1) || state.HasFound(2) {
		t.Fatalf("expected the found set reset for a new quest, got %v", state.Found)
	}
	if !state.HasFound(3) {
		t.Fatalf("expected the new server found set, got %v", state.Found)
	}
}

func TestConcurrentRefreshesCollapse(t *testing.T) {
	backend := &fakeBackend{
		quest:   quest.Quest{ID: 42},
		getGate: make(chan struct{}),
	}
	reg := newRegistry(backend)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = reg.Refresh(context.Background(), 7)
		}()
	}

	deadline := time.After(2 * time.Second)
	for backend.getCalls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("refresh call never happened")
		case <-time.After(time.Millisecond):
		}
	}
	close(backend.getGate)
	wg.Wait()

	if calls := backend.getCalls.Load(); calls != 1 {
		t.Fatalf("expected concurrent refreshes to share one backend call, got %d", calls)
	}
}

func TestStartIfNeededFoldsInitiatorResult(t *testing.T) {
	backend := &fakeBackend{startID: 42}
	reg := newRegistry(backend)

	state, err := reg.StartIfNeeded(context.Background(), 7, &quest.Location{})
	if err != nil {
		t.Fatalf("start if needed: %v", err)
	}
	if state.Status != quest.StatusReady || state.GoalID != 42 {
		t.Fatalf("expected ready/42, got %s/%d", state.Status, state.GoalID)
	}
}

func TestStartIfNeededTerminalStatusSurfaces(t *testing.T) {
	backend := &fakeBackend{startErr: apperrors.New(apperrors.CodeInsufficientObjects, "no hay suficientes objetos")}
	reg := newRegistry(backend)

	state, err := reg.StartIfNeeded(context.Background(), 7, &quest.Location{})
	if err != nil {
		t.Fatalf("start if needed: %v", err)
	}
	if state.Status != quest.StatusInsufficientObjects {
		t.Fatalf("expected insufficient_objects, got %s", state.Status)
	}
	if state.ErrorMessage == "" {
		t.Fatalf("expected the backend message to surface for the UI")
	}
}

func TestObserversNotifiedOncePerMutation(t *testing.T) {
	reg := newRegistry(&fakeBackend{})

	var notifications atomic.Int64
	var lastState quest.State
	var mu sync.Mutex
	unsubscribe := reg.Subscribe(7, func(state quest.State) {
		notifications.Add(1)
		mu.Lock()
		lastState = state
		mu.Unlock()
	})
	defer unsubscribe()

	reg.MarkFound(7, 1)
	reg.MarkFound(7, 1) // no-op, no notification
	reg.MarkFound(7, 2)

	if got := notifications.Load(); got != 2 {
		t.Fatalf("expected 2 notifications, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if !lastState.HasFound(1) || !lastState.HasFound(2) {
		t.Fatalf("expected the final snapshot to carry both objects, got %v", lastState.Found)
	}
}

func TestObserversAreMuseumScoped(t *testing.T) {
	reg := newRegistry(&fakeBackend{})

	var seven, eight atomic.Int64
	defer reg.Subscribe(7, func(quest.State) { seven.Add(1) })()
	defer reg.Subscribe(8, func(quest.State) { eight.Add(1) })()

	reg.MarkFound(7, 1)
	reg.MarkFound(8, 1)
	reg.MarkFound(8, 2)

	if seven.Load() != 1 {
		t.Fatalf("expected 1 notification for museum 7, got %d", seven.Load())
	}
	if eight.Load() != 2 {
		t.Fatalf("expected 2 notifications for museum 8, got %d", eight.Load())
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	reg := newRegistry(&fakeBackend{})

	var count atomic.Int64
	unsubscribe := reg.Subscribe(7, func(quest.State) { count.Add(1) })

	reg.MarkFound(7, 1)
	unsubscribe()
	reg.MarkFound(7, 2)

	if count.Load() != 1 {
		t.Fatalf("expected notifications to stop after unsubscribe, got %d", count.Load())
	}
}

func TestObserverSnapshotIsIndependent(t *testing.T) {
	reg := newRegistry(&fakeBackend{})

	var snapshot quest.State
	var mu sync.Mutex
	defer reg.Subscribe(7, func(state quest.State) {
		mu.Lock()
		snapshot = state
		mu.Unlock()
	})()

	reg.MarkFound(7, 1)

	mu.Lock()
	snapshot.Found[99] = struct{}{}
	mu.Unlock()

	if reg.State(7).HasFound(99) {
		t.Fatalf("expected observer snapshot mutations not to leak into the registry")
	}
}

func TestConcurrentMarkFoundSameMuseum(t *testing.T) {
	// Snapshots handed to observers are frozen before the registry lock is
	// released; mutations racing in on the same museum must neither corrupt
	// them nor show up in an earlier snapshot.
	reg := newRegistry(&fakeBackend{})

	const objects = 200
	var first, second atomic.Int64
	defer reg.Subscribe(1, func(state quest.State) {
		if len(state.Found) > objects {
			t.Errorf("snapshot carries %d objects, more than ever marked", len(state.Found))
		}
		first.Add(1)
	})()
	defer reg.Subscribe(1, func(quest.State) { second.Add(1) })()

	var wg sync.WaitGroup
	for objectID := int64(1); objectID <= objects; objectID++ {
		objectID := objectID
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.MarkFound(1, objectID)
		}()
	}
	wg.Wait()

	if got := len(reg.State(1).Found); got != objects {
		t.Fatalf("expected %d found objects, got %d", objects, got)
	}
	if first.Load() != objects || second.Load() != objects {
		t.Fatalf("expected %d notifications per observer, got %d and %d",
			objects, first.Load(), second.Load())
	}
}

func TestRepeatStartIfNeededDoesNotFlickerObservers(t *testing.T) {
	// A repeat call on a settled day is a no-op: the published state must not
	// regress through starting, and observers hear nothing.
	backend := &fakeBackend{startID: 42}
	reg := newRegistry(backend)

	if _, err := reg.StartIfNeeded(context.Background(), 7, &quest.Location{}); err != nil {
		t.Fatalf("first start: %v", err)
	}

	var notifications atomic.Int64
	defer reg.Subscribe(7, func(quest.State) { notifications.Add(1) })()

	state, err := reg.StartIfNeeded(context.Background(), 7, &quest.Location{})
	if err != nil {
		t.Fatalf("repeat start: %v", err)
	}
	if state.Status != quest.StatusReady || state.GoalID != 42 {
		t.Fatalf("expected ready/42 from the repeat call, got %s/%d", state.Status, state.GoalID)
	}
	if got := backend.startCalls.Load(); got != 1 {
		t.Fatalf("expected 1 backend start call, got %d", got)
	}
	if got := notifications.Load(); got != 0 {
		t.Fatalf("expected no notifications for the idempotent repeat, got %d", got)
	}
}

func TestConcurrentMutationsAcrossMuseums(t *testing.T) {
	reg := newRegistry(&fakeBackend{})

	counts := make([]atomic.Int64, 4)
	for museumID := int64(1); museumID <= 4; museumID++ {
		counter := &counts[museumID-1]
		defer reg.Subscribe(museumID, func(quest.State) { counter.Add(1) })()
	}

	var wg sync.WaitGroup
	for museumID := int64(1); museumID <= 4; museumID++ {
		for objectID := int64(1); objectID <= 5; objectID++ {
			museumID, objectID := museumID, objectID
			wg.Add(1)
			go func() {
				defer wg.Done()
				reg.MarkFound(museumID, objectID)
			}()
		}
	}
	wg.Wait()

	for museumID := int64(1); museumID <= 4; museumID++ {
		state := reg.State(museumID)
		if len(state.Found) != 5 {
			t.Fatalf("museum %d: expected 5 found objects, got %d", museumID, len(state.Found))
		}
		if counts[museumID-1].Load() != 5 {
			t.Fatalf("museum %d: expected 5 notifications, got %d", museumID, counts[museumID-1].Load())
		}
	}
}
