package common

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a mutation is attempted while another one is in flight.
	ErrBusy = errors.New("another operation is in progress")
	// ErrNotAuthenticated is returned by operations that need a current identity.
	ErrNotAuthenticated = errors.New("not logged in")
)

// ValidationError reports bad local input. It is raised before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthError carries the detail string the auth endpoint returned.
type AuthError struct {
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return "authentication failed"
	}
	return e.Detail
}

// TransportError wraps a network, timeout or decode failure of a backend call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteRejection is a non-success status on a call whose body carries nothing useful.
type RemoteRejection struct {
	Op     string
	Status int
}

func (e *RemoteRejection) Error() string {
	return fmt.Sprintf("%s: server returned status %d", e.Op, e.Status)
}

// Kind names the error class for display and metrics labels.
func Kind(err error) string {
	var (
		ve *ValidationError
		ae *AuthError
		te *TransportError
		rr *RemoteRejection
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &ae):
		return "auth"
	case errors.As(err, &rr):
		return "rejected"
	case errors.As(err, &te):
		return "transport"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrNotAuthenticated):
		return "unauthenticated"
	default:
		return "internal"
	}
}
