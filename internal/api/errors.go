package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrAuthRequired is returned before any request is sent when no token is available
	ErrAuthRequired = errors.New("authentication required")

	// ErrNetwork wraps transport failures (DNS, refused connections, reset streams)
	ErrNetwork = errors.New("network error")

	// ErrInvalidData is returned when a response does not have the expected shape
	ErrInvalidData = errors.New("invalid data from server")
)

// Error is a non-2xx response from the backend
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is a backend rejection with the given status
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// IsUnauthorized reports whether the backend rejected the credentials
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

// Message returns the text to show a user for err. Backend messages are used
// verbatim; everything else gets a generic sentence.
func Message(err error, fallback string) string {
	var apiErr *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, ErrNetwork):
		return "Network error, please check your connection and try again"
	case errors.Is(err, ErrAuthRequired):
		return "Please log in first"
	case errors.Is(err, ErrInvalidData):
		return "Received invalid data from the server"
	default:
		return fallback
	}
}

// errorFromBody builds an *Error, taking the message from the usual JSON keys.
func errorFromBody(status int, body []byte) *Error {
	msg := ""

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"error", "message", "detail"} {
			if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
				msg = s
				break
			}
		}
	}

	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", status)
	}
	return &Error{Status: status, Message: msg}
}
