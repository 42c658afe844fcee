package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AuthError indicates that the stored token was rejected (HTTP 401).
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "auth error: " + e.Message
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// APIError is a non-2xx response other than 401 and 429.
type APIError struct {
	StatusCode int
	Method     string
	Path       string

	// Message is the backend's error text, taken from the "error" or
	// "message" field of a JSON body, or the raw body otherwise.
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error (%d) on %s %s: %s",
		e.StatusCode, e.Method, e.Path, e.Message)
}

// errorBody is the error envelope the backend uses.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func newAPIError(status int, method, path string, body []byte) *APIError {
	msg := strings.TrimSpace(string(body))

	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		switch {
		case eb.Error != "":
			msg = eb.Error
		case eb.Message != "":
			msg = eb.Message
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	return &APIError{
		StatusCode: status,
		Method:     method,
		Path:       path,
		Message:    msg,
	}
}

// emitFailureMarker appears in the backend's error text when it stored a
// notification but crashed while pushing it to connected sockets.
const emitFailureMarker = "emit"

// IsEmitFailure reports whether err is the backend's push-emission defect:
// a 5xx whose error text mentions the socket emit. Such a send has been
// persisted and is reported to callers as a soft success.
//
// TODO: match on a structured error code once the backend exposes one.
func IsEmitFailure(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode < 500 || apiErr.StatusCode > 599 {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Message), emitFailureMarker)
}
