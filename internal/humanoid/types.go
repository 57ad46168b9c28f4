// internal/humanoid/types.go
package humanoid

import (
	"math/rand"
	"time"
)

// ControlKey defines control characters understood by Executor.SendKeys.
type ControlKey string

const (
	KeyBackspace ControlKey = "\b"
	KeyEnter     ControlKey = "\r"
	KeyTab       ControlKey = "\t"
)

// Config tunes the typing cadence.
type Config struct {
	// MeanDelay is the average inter-key interval before n-gram adjustment.
	MeanDelay time.Duration
	MinDelay  time.Duration
	MaxDelay  time.Duration
	// TypoRate is the per keystroke probability of hitting a neighboring key
	// and correcting it with a backspace.
	TypoRate float64
	// Rng seeds the private randomness source; it is read once by New.
	// A time seeded source is used when nil.
	Rng *rand.Rand
}

// DefaultConfig returns a cadence of roughly 90ms per key, bounded to
// [50ms, 150ms], with no typos.
func DefaultConfig() Config {
	return Config{
		MeanDelay: 90 * time.Millisecond,
		MinDelay:  50 * time.Millisecond,
		MaxDelay:  150 * time.Millisecond,
	}
}
