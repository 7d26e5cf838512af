package api

import (
	"net/http"
	"strings"

	apperrors "github.com/EV081/mysto-mobile-sub000/internal/platform/errors"
)

// errorBody mirrors the backend's error envelope. ErrorCode is authoritative
// when present; older backend builds only send the human-readable message.
type errorBody struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// classifyStartFailure turns a failed start response into a domain error.
// Structured error codes win; when the backend omits them the classifier
// falls back to matching substrings of the human message, which is the
// contract the legacy mobile clients relied on. The backend emits Spanish
// messages today, so both Spanish and English markers are matched.
func classifyStartFailure(resp *http.Response) *apperrors.Error {
	body := readErrorBody(resp)

	if code, ok := codeFromBackend(body.ErrorCode); ok {
		return apperrors.New(code, body.Message)
	}
	return apperrors.New(codeFromMessage(resp.StatusCode, body.Message), body.Message)
}

func codeFromBackend(raw string) (apperrors.Code, bool) {
	switch apperrors.Code(strings.ToUpper(strings.TrimSpace(raw))) {
	case apperrors.CodeBlockedByDistance:
		return apperrors.CodeBlockedByDistance, true
	case apperrors.CodeQuestAlreadyActive:
		return apperrors.CodeQuestAlreadyActive, true
	case apperrors.CodeInsufficientObjects:
		return apperrors.CodeInsufficientObjects, true
	case apperrors.CodeMuseumNotFound:
		return apperrors.CodeMuseumNotFound, true
	case apperrors.CodeUnauthorized:
		return apperrors.CodeUnauthorized, true
	default:
		return apperrors.CodeUnknown, false
	}
}

// Substring markers carried over from the legacy clients. Fragile against
// message-text changes; kept only as the fallback when error_code is absent.
var (
	distanceMarkers      = []string{"metros", "meters", "radio", "radius"}
	alreadyActiveMarkers = []string{"meta activa", "already active", "active mission", "active quest"}
	objectCountMarkers   = []string{"suficientes objetos", "insufficient objects", "enough objects"}
)

func codeFromMessage(statusCode int, message string) apperrors.Code {
	lowered := strings.ToLower(message)

	switch statusCode {
	case http.StatusForbidden:
		if containsAny(lowered, distanceMarkers) {
			return apperrors.CodeBlockedByDistance
		}
	case http.StatusBadRequest:
		if containsAny(lowered, alreadyActiveMarkers) {
			return apperrors.CodeQuestAlreadyActive
		}
		if containsAny(lowered, objectCountMarkers) {
			return apperrors.CodeInsufficientObjects
		}
	case http.StatusNotFound:
		return apperrors.CodeMuseumNotFound
	case http.StatusUnauthorized:
		return apperrors.CodeUnauthorized
	}
	if statusCode >= http.StatusInternalServerError {
		return apperrors.CodeTransientFailure
	}
	return apperrors.CodeUnknown
}

func containsAny(message string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}
