package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/automation"
	"github.com/xkilldash9x/formpilot/internal/browser"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/detector/vision"
	"github.com/xkilldash9x/formpilot/internal/observability"
	"github.com/xkilldash9x/formpilot/internal/store"
)

const shutdownTimeout = 30 * time.Second

// formRunner runs fill tasks and inspects pages.
type formRunner interface {
	schemas.TaskRunner
	Inspect(ctx context.Context, url string, method schemas.Strategy) ([]schemas.DetectedField, error)
}

// runnerProvider creates the automation pipeline. Tests inject a fake to
// avoid launching a browser.
type runnerProvider interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (formRunner, func(), error)
}

type defaultRunnerProvider struct{}

func newRunnerProvider() runnerProvider {
	return &defaultRunnerProvider{}
}

// Create wires the browser manager, the vision model and the pipeline. The
// cleanup function waits for open sessions before returning.
func (p *defaultRunnerProvider) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (formRunner, func(), error) {
	model, err := vision.New(ctx, cfg.Vision(), logger)
	if err != nil {
		return nil, nil, err
	}
	seeds := rand.New(rand.NewSource(time.Now().UnixNano()))
	manager := browser.NewManager(cfg, logger, rand.New(rand.NewSource(seeds.Int63())))
	pipeline := automation.New(cfg, manager, model, rand.New(rand.NewSource(seeds.Int63())), logger)

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser manager did not shut down cleanly.", zap.Error(err))
		}
	}
	return pipeline, cleanup, nil
}

// attemptStore records results and lists past attempts.
type attemptStore interface {
	schemas.ResultRecorder
	RecentAttempts(ctx context.Context, url string, limit int) ([]store.Attempt, error)
}

// storeProvider defines an interface for components that can create the
// attempt store. This allows the injection of a mock store instead of a live
// database connection.
type storeProvider interface {
	Create(ctx context.Context, cfg config.Interface) (attemptStore, func(), error)
}

type defaultStoreProvider struct{}

// NewStoreProvider is a factory function that creates the production store provider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to PostgreSQL, ensures the schema and returns the store
// along with a cleanup function that closes the pool.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg config.Interface) (attemptStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database().URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (FORMPILOT_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database().URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storeService, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}
	if err := storeService.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return storeService, cleanup, nil
}

// openRecorder returns the result recorder when the database is enabled,
// or nil when results are not persisted.
func openRecorder(ctx context.Context, cfg config.Interface, stores storeProvider, logger *zap.Logger) (schemas.ResultRecorder, func()) {
	if !cfg.Database().Enabled {
		return nil, func() {}
	}
	s, cleanup, err := stores.Create(ctx, cfg)
	if err != nil {
		logger.Warn("Result recording disabled.", zap.Error(err))
		return nil, func() {}
	}
	if cleanup == nil {
		cleanup = func() {}
	}
	return s, cleanup
}
