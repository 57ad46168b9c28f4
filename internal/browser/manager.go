// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/browser/stealth"
	"github.com/xkilldash9x/formpilot/internal/config"
)

const defaultLaunchTimeout = 30 * time.Second

// Manager launches isolated browser sessions. Every session gets its own
// Chrome process and a freshly drawn persona.
type Manager struct {
	logger *zap.Logger
	cfg    config.Interface

	rngMu sync.Mutex
	rng   *rand.Rand

	mu       sync.Mutex
	sessions map[string]*Session
	// wg tracks open sessions for a graceful shutdown.
	wg sync.WaitGroup
}

var _ schemas.SessionOpener = (*Manager)(nil)

// NewManager creates a browser manager. Fingerprint selection draws from a
// private source seeded once from rng, or from the clock when rng is nil.
func NewManager(cfg config.Interface, logger *zap.Logger, rng *rand.Rand) *Manager {
	seed := time.Now().UnixNano()
	if rng != nil {
		seed = rng.Int63()
	}
	return &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(seed)),
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) newPersona() stealth.Persona {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return stealth.NewPersona(m.cfg.Browser(), m.rng)
}

// OpenSession launches a browser bound to ctx and applies the stealth
// persona. Canceling ctx kills the browser. A launch failure is returned as
// *schemas.SessionError with nothing left running.
func (m *Manager) OpenSession(ctx context.Context, opts schemas.SessionOptions) (schemas.Session, error) {
	bcfg := m.cfg.Browser()
	headless := bcfg.Headless
	if opts.Headless != nil {
		headless = *opts.Headless
	}
	opTimeout := opts.OperationTimeout
	if opTimeout <= 0 {
		opTimeout = m.cfg.Automation().OperationTimeout
	}

	persona := m.newPersona()
	id := uuid.New().String()
	logger := m.logger.With(zap.String("session_id", id))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(bcfg, persona, headless)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)

	launchTimeout := bcfg.LaunchTimeout
	if launchTimeout <= 0 {
		launchTimeout = defaultLaunchTimeout
	}
	// The first Run starts the process; it must run on tabCtx itself so the
	// browser is not tied to a short-lived timeout context.
	watchdog := time.AfterFunc(launchTimeout, tabCancel)
	err := chromedp.Run(tabCtx,
		stealth.Apply(persona, logger),
		// Keeps focus events firing in headless and background windows,
		// which focus traversal depends on.
		emulation.SetFocusEmulationEnabled(true),
	)
	timedOut := !watchdog.Stop()
	if err != nil {
		tabCancel()
		allocCancel()
		if timedOut {
			err = fmt.Errorf("launch exceeded %s: %w", launchTimeout, err)
		}
		logger.Error("Failed to launch browser session.", zap.Error(err))
		return nil, &schemas.SessionError{Op: "launch", Err: err}
	}

	s := &Session{
		id:          id,
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		logger:      logger,
		persona:     persona,
		opTimeout:   opTimeout,
	}
	s.onClose = func() {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		m.wg.Done()
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	m.wg.Add(1)

	logger.Info("Browser session opened.",
		zap.Bool("headless", headless),
		zap.String("user_agent", persona.UserAgent),
		zap.Int64("viewport_width", persona.Screen.Width),
		zap.Int64("viewport_height", persona.Screen.Height),
	)
	return s, nil
}

// ActiveSessions returns the number of sessions not yet closed.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown waits for open sessions to be closed by their owners. When ctx
// expires first the remaining sessions are closed forcibly.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Browser manager shutdown initiated.", zap.Int("active_sessions", m.ActiveSessions()))

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions have completed.")
		return nil
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded. Closing remaining sessions.", zap.Error(ctx.Err()))
	}

	m.mu.Lock()
	remaining := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		remaining = append(remaining, s)
	}
	m.mu.Unlock()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, s := range remaining {
		_ = s.Close(closeCtx)
	}
	<-done
	return ctx.Err()
}
