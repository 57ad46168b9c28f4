// -- internal/humanoid/humanoid.go --
package humanoid

import (
	"math/rand"
	"sync"
	"time"
)

// Humanoid produces human-like keyboard input. It is safe for concurrent
// use; its private random source is guarded by mu.
type Humanoid struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Humanoid. Zero delays in config fall back to DefaultConfig.
func New(config Config) *Humanoid {
	defaults := DefaultConfig()
	if config.MeanDelay <= 0 {
		config.MeanDelay = defaults.MeanDelay
	}
	if config.MinDelay <= 0 {
		config.MinDelay = defaults.MinDelay
	}
	if config.MaxDelay <= 0 || config.MaxDelay < config.MinDelay {
		config.MaxDelay = config.MinDelay + defaults.MaxDelay - defaults.MinDelay
	}
	if config.TypoRate < 0 {
		config.TypoRate = 0
	}

	rng := DeriveRand(config.Rng)
	config.Rng = nil
	return &Humanoid{cfg: config, rng: rng}
}

// DeriveRand returns a private generator seeded from parent. parent is read
// once, so it may be shared with other consumers as long as their
// construction is not concurrent. A nil parent yields a time seeded source.
func DeriveRand(parent *rand.Rand) *rand.Rand {
	if parent == nil {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rand.New(rand.NewSource(parent.Int63()))
}

func (h *Humanoid) float64() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Float64()
}

func (h *Humanoid) normFloat64() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.NormFloat64()
}

func (h *Humanoid) intn(n int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Intn(n)
}
