package scanner

import (
	"errors"
	"fmt"
)

var (
	// ErrLogin is returned when the server rejects the login.
	ErrLogin = errors.New("login refused")

	// ErrTooDeep is matched by every *TooDeepError.
	ErrTooDeep = errors.New("directory tree too deep")

	// ErrReconnect is returned when the session could not be
	// re-established after a transient error.
	ErrReconnect = errors.New("failed to reconnect")

	// ErrReconnectLimit is returned when a scan needed more reconnects
	// than allowed.
	ErrReconnectLimit = errors.New("reconnect limit reached")

	// ErrNoHost is returned by New when host is empty.
	ErrNoHost = errors.New("no host to scan")
)

// TooDeepError reports the directory whose children exceed the maximum
// depth.
type TooDeepError struct {
	Depth int
	Path  string
}

// Error implements error.
func (e *TooDeepError) Error() string {
	return fmt.Sprintf("too deep (%d levels), stopping at %s", e.Depth, e.Path)
}

// Is makes errors.Is(err, ErrTooDeep) true.
func (e *TooDeepError) Is(target error) bool {
	return target == ErrTooDeep
}
