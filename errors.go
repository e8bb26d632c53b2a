package luxeapi

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrSessionTerminated is returned when the session can no longer be
	// renewed: the refresh failed, or the retried request was still rejected
	// with 401. The token store has been cleared by the time it is returned.
	ErrSessionTerminated = errors.New("session terminated")
	// ErrClientClosed is returned by calls made after Close.
	ErrClientClosed = errors.New("client closed")
	// ErrInvalidRequest is returned when a Request cannot be encoded.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrMissingBaseURL is returned by Build when Config.BaseURL is empty.
	ErrMissingBaseURL = errors.New("base url required")
	// ErrUnexpectedResponse is returned when a successful response body cannot
	// be decoded into the caller's value.
	ErrUnexpectedResponse = errors.New("unexpected response body")
	// ErrResponseTooLarge is returned when a response body exceeds
	// Config.HTTP.MaxResponseBytes. The body is discarded, never truncated.
	ErrResponseTooLarge = errors.New("response body too large")
	// ErrBuilderUsed is returned when Build is called twice on one Builder.
	ErrBuilderUsed = errors.New("builder already used")
)

// APIError is the normalized form of every non-2xx response other than the
// 401 handled by the refresh cycle.
type APIError struct {
	Status  int
	Message string
	// Body is the decoded JSON object, nil when the body was not a JSON object.
	Body map[string]any
	Raw  []byte
}

func (e *APIError) Error() string {
	return e.Message
}

// IsConflict reports a 409, which the backend uses for "pending resource
// already exists" conditions.
func (e *APIError) IsConflict() bool {
	return e != nil && e.Status == 409
}

// IsUnauthorized reports a 401.
func (e *APIError) IsUnauthorized() bool {
	return e != nil && e.Status == 401
}

// String returns the string value stored under key in Body.
func (e *APIError) String(key string) string {
	if e == nil || e.Body == nil {
		return ""
	}
	v, _ := e.Body[key].(string)
	return v
}

// AsAPIError unwraps err to an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StatusCode returns the HTTP status carried by err, or 0 when err does not
// wrap an *APIError.
func StatusCode(err error) int {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Status
	}
	return 0
}

func newAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{
		Status: status,
		Raw:    raw,
	}

	var body map[string]any
	if len(raw) > 0 && json.Unmarshal(raw, &body) == nil {
		apiErr.Body = body
	}

	for _, key := range []string{"message", "error_description", "error"} {
		if msg := strings.TrimSpace(apiErr.String(key)); msg != "" {
			apiErr.Message = msg
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = "HTTP error! status: " + strconv.Itoa(status)
	}
	return apiErr
}
