// Package errors provides structured error handling for the quest engine.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Quest start errors
	CodeBlockedByDistance   Code = "BLOCKED_BY_DISTANCE"
	CodeQuestAlreadyActive  Code = "QUEST_ALREADY_ACTIVE"
	CodeInsufficientObjects Code = "INSUFFICIENT_OBJECTS"
	CodeMuseumNotFound      Code = "MUSEUM_NOT_FOUND"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeTransientFailure    Code = "TRANSIENT_FAILURE"

	// Quest read errors
	CodeQuestNotFound Code = "QUEST_NOT_FOUND"

	// Engine-local errors
	CodeMuseumIDInvalid     Code = "MUSEUM_ID_INVALID"
	CodeLocationUnavailable Code = "LOCATION_UNAVAILABLE"
	CodeCacheUnavailable    Code = "CACHE_UNAVAILABLE"
	CodeAttemptAborted      Code = "ATTEMPT_ABORTED"
)

// HTTPStatus maps domain codes to the backend's HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeBlockedByDistance:
		return http.StatusForbidden
	case CodeQuestAlreadyActive, CodeInsufficientObjects, CodeMuseumIDInvalid:
		return http.StatusBadRequest
	case CodeMuseumNotFound, CodeQuestNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Recoverable reports whether the quest recovery read may still yield an
// active quest after a start attempt failed with this code. Blocked-by-distance
// is recoverable because the user may have started a quest while in range
// earlier the same day.
func (c Code) Recoverable() bool {
	switch c {
	case CodeBlockedByDistance, CodeQuestAlreadyActive, CodeTransientFailure, CodeUnknown:
		return true
	default:
		return false
	}
}

// Terminal reports whether the code represents a condition that cannot change
// without external action (different museum, re-authentication, more catalog
// objects). Terminal codes skip the recovery read entirely.
func (c Code) Terminal() bool {
	switch c {
	case CodeInsufficientObjects, CodeMuseumNotFound, CodeUnauthorized:
		return true
	default:
		return false
	}
}
