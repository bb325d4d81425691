package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized marks an expired or missing session. Callers route the
	// user back to the login screen whenever they see it.
	ErrUnauthorized = errors.New("apiclient: unauthorized")
	// ErrNotFound marks a 404 response.
	ErrNotFound = errors.New("apiclient: not found")
	// ErrSubscriptionRequired marks a 403 response from a gated endpoint.
	ErrSubscriptionRequired = errors.New("apiclient: active subscription required")
)

// APIError represents an error response from the content API.
type APIError struct {
	Status    int
	Message   string
	Details   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("apiclient: status %d", e.Status)
	}
	return fmt.Sprintf("apiclient: status %d: %s", e.Status, e.Message)
}

// RemoteMessage exposes the server-provided message.
func (e *APIError) RemoteMessage() string {
	return e.Message
}

// Is lets errors.Is match the status-class sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrSubscriptionRequired:
		return e.Status == http.StatusForbidden
	}
	return false
}

// IsAuthError reports whether err means the session is gone.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// IsNotFound reports whether the server had nothing at the requested path.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
