package quest

import apperrors "github.com/EV081/mysto-mobile-sub000/internal/platform/errors"

// Status describes the quest lifecycle label for one museum's attempt.
type Status string

const (
	StatusIdle                Status = "idle"
	StatusStarting            Status = "starting"
	StatusReady               Status = "ready"
	StatusBlockedDistance     Status = "blocked_distance"
	StatusInsufficientObjects Status = "insufficient_objects"
	StatusNotFound            Status = "not_found"
	StatusUnauthorized        Status = "unauthorized"
	StatusError               Status = "error"
)

// Terminal reports whether the status ends the current attempt. Soft-terminal
// outcomes (blocked_distance, error) are still reported through here; the
// initiator has already run its one recovery step before settling on them.
func (s Status) Terminal() bool {
	switch s {
	case StatusReady, StatusBlockedDistance, StatusInsufficientObjects,
		StatusNotFound, StatusUnauthorized, StatusError:
		return true
	default:
		return false
	}
}

// Retryable reports whether the UI should offer a manual retry for this
// status. Conditions that cannot change without external action are excluded.
func (s Status) Retryable() bool {
	switch s {
	case StatusBlockedDistance, StatusError:
		return true
	default:
		return false
	}
}

// StatusForCode maps a start-attempt failure code to the status the attempt
// settles on when recovery does not produce a quest.
func StatusForCode(code apperrors.Code) Status {
	switch code {
	case apperrors.CodeBlockedByDistance:
		return StatusBlockedDistance
	case apperrors.CodeInsufficientObjects:
		return StatusInsufficientObjects
	case apperrors.CodeMuseumNotFound:
		return StatusNotFound
	case apperrors.CodeUnauthorized:
		return StatusUnauthorized
	default:
		return StatusError
	}
}
