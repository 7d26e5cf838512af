package quest

// Location is a user position in decimal degrees.
type Location struct {
	Latitude  float64
	Longitude float64
}

// CulturalObjectRef identifies one object the user must discover.
type CulturalObjectRef struct {
	ID   int64
	Name string
}

// Quest is the server-assigned daily mission for one museum.
type Quest struct {
	ID            int64
	MuseumID      int64
	Found         []int64
	TargetObjects []CulturalObjectRef
}

// State is the per-museum view held by the registry. GoalID is zero until a
// quest is known. Found grows monotonically within one quest's lifetime and is
// reset only when the state is reinitialized for a new quest.
type State struct {
	MuseumID      int64
	GoalID        int64
	Status        Status
	Found         map[int64]struct{}
	TargetObjects []CulturalObjectRef
	ErrorMessage  string
}

// NewState returns the default state for a museum before any attempt.
func NewState(museumID int64) State {
	return State{
		MuseumID: museumID,
		Status:   StatusIdle,
		Found:    map[int64]struct{}{},
	}
}

// Clone returns a deep copy safe to hand to observers.
func (s State) Clone() State {
	copied := s
	copied.Found = make(map[int64]struct{}, len(s.Found))
	for id := range s.Found {
		copied.Found[id] = struct{}{}
	}
	if s.TargetObjects != nil {
		copied.TargetObjects = make([]CulturalObjectRef, len(s.TargetObjects))
		copy(copied.TargetObjects, s.TargetObjects)
	}
	return copied
}

// HasFound reports whether the object id is in the found set.
func (s State) HasFound(objectID int64) bool {
	_, ok := s.Found[objectID]
	return ok
}
