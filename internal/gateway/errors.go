package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotAuthenticated means no usable credential is available; the caller
	// must log in before retrying.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAuthorizationDenied means the user rejected the step-up prompt.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrAuthorizationCancelled means the step-up prompt was dismissed
	// without a decision.
	ErrAuthorizationCancelled = errors.New("authorization cancelled")

	// ErrUnavailable means the circuit breaker is open and the request was
	// not attempted.
	ErrUnavailable = errors.New("service unavailable")
)

// RemoteError is a non-2xx response from the trading backend.
type RemoteError struct {
	Status int
	Reason string
}

func (e *RemoteError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("remote error: status %d", e.Status)
	}
	return fmt.Sprintf("remote error: status %d: %s", e.Status, e.Reason)
}

// AuthExpired reports whether the backend rejected our credential. The
// session reacts by clearing the vault and requiring re-login.
func (e *RemoteError) AuthExpired() bool {
	return e.Status == http.StatusUnauthorized
}

// IsAuthExpired reports whether err wraps a credential rejection.
func IsAuthExpired(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.AuthExpired()
}
