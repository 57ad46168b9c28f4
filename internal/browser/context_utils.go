// internal/browser/context_utils.go
package browser

import (
	"context"
	"errors"
)

// CombineContext returns a context derived from primary (so it keeps the
// CDP target values chromedp stores there) that is also canceled when
// secondary is done. A secondary deadline is copied onto the result, so an
// expired operation timeout reports context.DeadlineExceeded.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	d, hasDeadline := secondary.Deadline()
	if hasDeadline {
		var cancelDeadline context.CancelFunc
		combined, cancelDeadline = context.WithDeadline(combined, d)
		inner := cancel
		cancel = func() {
			cancelDeadline()
			inner()
		}
	}

	go func() {
		select {
		case <-secondary.Done():
			// The copied deadline expires at the same instant. Canceling here
			// could win the race and mask it as context.Canceled.
			if hasDeadline && errors.Is(secondary.Err(), context.DeadlineExceeded) {
				<-combined.Done()
				return
			}
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}
