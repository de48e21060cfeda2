package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is the normalized failure value for backend HTTP calls.
// The response body text is carried as the human-readable message;
// transport failures and malformed responses are wrapped elsewhere so
// that every caller sees a single error shape.
type APIError struct {
	// StatusCode is the HTTP status returned by the backend.
	StatusCode int
	// Body is the response body text, used as the message when present.
	Body string
	// Method and Path identify the failed request for logging.
	Method string
	Path   string
}

// NewAPIError builds an APIError from a response status and body text.
func NewAPIError(method, path string, status int, body string) *APIError {
	return &APIError{
		StatusCode: status,
		Body:       strings.TrimSpace(body),
		Method:     method,
		Path:       path,
	}
}

// Error returns the body text, falling back to "HTTP <status>" when the
// backend sent an empty body.
func (e *APIError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Is maps well-known status codes onto the package sentinels so callers
// can use errors.Is(err, ErrUnauthorized) without inspecting the code.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrValidation:
		return e.StatusCode == http.StatusBadRequest ||
			e.StatusCode == http.StatusUnprocessableEntity
	}
	return false
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not
// an APIError.
func StatusOf(err error) int {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
