// Filename: internal/humanoid/interface.go
package humanoid

import (
	"context"
	"time"
)

// Executor is the slice of browser operations the typing model drives.
// The focused element receives the keys, so callers focus it beforehand.
type Executor interface {
	// SendKeys sends the specified keys to the currently active element.
	SendKeys(ctx context.Context, keys string) error
	// Sleep pauses execution, respecting context cancellation.
	Sleep(ctx context.Context, d time.Duration) error
}
