package schemas

import (
	"errors"
	"fmt"
)

// -- Error Types --

var (
	// ErrSessionClosed is returned by page operations after Close.
	ErrSessionClosed = errors.New("browser session is closed")
	// ErrElementNotFound is returned when a locator resolves to nothing.
	ErrElementNotFound = errors.New("element not found")
	// ErrOptionNotFound is returned when no dropdown option matches.
	ErrOptionNotFound = errors.New("no matching option")
)

// SessionError reports a failure to launch the browser or load the target
// page. It is fatal for the task that hit it.
type SessionError struct {
	// Op is the phase that failed: launch, navigate or detect.
	Op  string
	URL string
	Err error
}

func (e *SessionError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("session %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// IsSessionError reports whether err is, or wraps, a *SessionError.
func IsSessionError(err error) bool {
	var se *SessionError
	return errors.As(err, &se)
}
