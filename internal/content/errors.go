package content

import (
	"errors"
	"strings"
)

// ValidationError is a local precondition failure. It never reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Failure is a remote call that failed, carrying the message shown to the
// user. It unwraps to the transport error so auth failures stay detectable.
type Failure struct {
	Op      string
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// RemoteMessenger is implemented by transport errors that carry a
// server-provided message.
type RemoteMessenger interface {
	RemoteMessage() string
}

// RemoteMessage returns the server's message for err, or fallback when the
// failure carried none.
func RemoteMessage(err error, fallback string) string {
	var messenger RemoteMessenger
	if errors.As(err, &messenger) {
		if msg := strings.TrimSpace(messenger.RemoteMessage()); msg != "" {
			return msg
		}
	}
	return fallback
}

// NewFailure wraps err with the user-facing message for op.
func NewFailure(op string, err error, fallback string) *Failure {
	return &Failure{Op: op, Message: RemoteMessage(err, fallback), Err: err}
}

// UserMessage picks the text to show for any error returned by the client
// packages.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Message
	}
	return err.Error()
}
