// Package backendsim implements a local stand-in for the scavenger-hunt
// backend: the same wire contract, a YAML museum catalog, a haversine
// proximity gate, and per-day in-memory quest state. It exists for local
// development and integration tests.
package backendsim

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/EV081/mysto-mobile-sub000/internal/catalog"
)

// MinQuestObjects is the smallest catalog a museum needs before the simulator
// will hand out a quest for it.
const MinQuestObjects = 3

// Sim holds the simulator's in-memory quest state. Quests are keyed by
// (museum, day); state for past days is simply never matched again.
type Sim struct {
	catalog   catalog.Catalog
	authToken string
	clock     func() time.Time

	mu         sync.Mutex
	quests     map[string]*simQuest
	nextGoalID int64
}

type simQuest struct {
	goalID int64
	found  map[int64]struct{}
}

// Option customizes a Sim.
type Option func(*Sim)

// WithAuthToken requires a bearer token on every request.
func WithAuthToken(token string) Option {
	return func(s *Sim) { s.authToken = token }
}

// WithClock overrides the clock that scopes quests to a day.
func WithClock(clock func() time.Time) Option {
	return func(s *Sim) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates a simulator over the museum catalog.
func New(museums catalog.Catalog, opts ...Option) *Sim {
	sim := &Sim{
		catalog: museums,
		clock:   time.Now,
		quests:  make(map[string]*simQuest),
	}
	for i := range sim.catalog.Museums {
		if sim.catalog.Museums[i].RadiusMeters <= 0 {
			sim.catalog.Museums[i].RadiusMeters = catalog.DefaultRadiusMeters
		}
	}
	for _, opt := range opts {
		opt(sim)
	}
	return sim
}

// Handler returns the simulator's HTTP routes.
func (s *Sim) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet)
	r.HandleFunc("/v1/museums/{museumID}/quests", s.handleStartQuest).Methods(http.MethodPost)
	r.HandleFunc("/v1/museums/{museumID}/quests/today", s.handleGetQuest).Methods(http.MethodGet)
	r.HandleFunc("/v1/museums/{museumID}/quests/today/found", s.handleMarkFound).Methods(http.MethodPost)
	return r
}

type errorEnvelope struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{ErrorCode: code, Message: message})
}

func (s *Sim) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+s.authToken
}

func museumIDFrom(r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["museumID"]
	museumID, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || museumID <= 0 {
		return 0, false
	}
	return museumID, true
}

func (s *Sim) questKey(museumID int64) string {
	return fmt.Sprintf("%d:%s", museumID, s.clock().UTC().Format("2006-01-02"))
}

func (s *Sim) handleStartQuest(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sin sesión válida")
		return
	}
	museumID, ok := museumIDFrom(r)
	if !ok {
		writeError(w, http.StatusNotFound, "MUSEUM_NOT_FOUND", "museo no encontrado")
		return
	}
	museum, ok := s.catalog.ByID(museumID)
	if !ok {
		writeError(w, http.StatusNotFound, "MUSEUM_NOT_FOUND", "museo no encontrado")
		return
	}
	if len(museum.Objects) < MinQuestObjects {
		writeError(w, http.StatusBadRequest, "INSUFFICIENT_OBJECTS", "el museo no tiene suficientes objetos")
		return
	}

	var body struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "", "cuerpo de solicitud inválido")
		return
	}

	distance := haversineMeters(body.Latitude, body.Longitude, museum.Latitude, museum.Longitude)
	if distance > museum.RadiusMeters {
		writeError(w, http.StatusForbidden, "BLOCKED_BY_DISTANCE",
			fmt.Sprintf("debes estar a menos de %.0f metros del museo", museum.RadiusMeters))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.questKey(museumID)
	if _, exists := s.quests[key]; exists {
		writeError(w, http.StatusBadRequest, "QUEST_ALREADY_ACTIVE", "ya tienes una meta activa para este museo")
		return
	}
	s.nextGoalID++
	created := &simQuest{goalID: s.nextGoalID, found: make(map[int64]struct{})}
	s.quests[key] = created

	writeJSON(w, http.StatusCreated, map[string]int64{"goal_id": created.goalID})
}

func (s *Sim) handleGetQuest(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sin sesión válida")
		return
	}
	museumID, ok := museumIDFrom(r)
	if !ok {
		writeError(w, http.StatusNotFound, "MUSEUM_NOT_FOUND", "museo no encontrado")
		return
	}
	museum, ok := s.catalog.ByID(museumID)
	if !ok {
		writeError(w, http.StatusNotFound, "MUSEUM_NOT_FOUND", "museo no encontrado")
		return
	}

	s.mu.Lock()
	active, exists := s.quests[s.questKey(museumID)]
	var found []int64
	var goalID int64
	if exists {
		goalID = active.goalID
		found = make([]int64, 0, len(active.found))
		for objectID := range active.found {
			found = append(found, objectID)
		}
	}
	s.mu.Unlock()

	if !exists {
		writeError(w, http.StatusNotFound, "QUEST_NOT_FOUND", "no tienes una meta activa hoy")
		return
	}

	targets := make([]map[string]any, 0, len(museum.Objects))
	for _, obj := range museum.Objects {
		targets = append(targets, map[string]any{"id": obj.ID, "name": obj.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             goalID,
		"found":          found,
		"target_objects": targets,
	})
}

// handleMarkFound records a server-side discovery. The production backend
// learns these from the image-verification flow; the simulator exposes them
// directly so tests can exercise found-set reconciliation.
func (s *Sim) handleMarkFound(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sin sesión válida")
		return
	}
	museumID, ok := museumIDFrom(r)
	if !ok {
		writeError(w, http.StatusNotFound, "MUSEUM_NOT_FOUND", "museo no encontrado")
		return
	}

	var body struct {
		ObjectID int64 `json:"object_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ObjectID <= 0 {
		writeError(w, http.StatusBadRequest, "", "cuerpo de solicitud inválido")
		return
	}

	s.mu.Lock()
	active, exists := s.quests[s.questKey(museumID)]
	if exists {
		active.found[body.ObjectID] = struct{}{}
	}
	s.mu.Unlock()

	if !exists {
		writeError(w, http.StatusNotFound, "QUEST_NOT_FOUND", "no tienes una meta activa hoy")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
