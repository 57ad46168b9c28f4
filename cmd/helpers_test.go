// File: cmd/helpers_test.go
package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/store"
)

// -- Fakes --

type fakeRunner struct{ mock.Mock }

func (f *fakeRunner) Run(ctx context.Context, task schemas.FillTask) (*schemas.FillResult, error) {
	args := f.Called(ctx, task)
	r, _ := args.Get(0).(*schemas.FillResult)
	return r, args.Error(1)
}

func (f *fakeRunner) Inspect(ctx context.Context, url string, method schemas.Strategy) ([]schemas.DetectedField, error) {
	args := f.Called(ctx, url, method)
	fields, _ := args.Get(0).([]schemas.DetectedField)
	return fields, args.Error(1)
}

type fakeRunnerProvider struct {
	runner   formRunner
	err      error
	created  int
	cleanups int
}

func (p *fakeRunnerProvider) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (formRunner, func(), error) {
	p.created++
	if p.err != nil {
		return nil, nil, p.err
	}
	return p.runner, func() { p.cleanups++ }, nil
}

type fakeStore struct{ mock.Mock }

func (f *fakeStore) RecordResult(ctx context.Context, result *schemas.FillResult) error {
	return f.Called(ctx, result).Error(0)
}

func (f *fakeStore) RecentAttempts(ctx context.Context, url string, limit int) ([]store.Attempt, error) {
	args := f.Called(ctx, url, limit)
	a, _ := args.Get(0).([]store.Attempt)
	return a, args.Error(1)
}

type fakeStoreProvider struct {
	store    attemptStore
	err      error
	cleanups int
}

func (p *fakeStoreProvider) Create(ctx context.Context, cfg config.Interface) (attemptStore, func(), error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	return p.store, func() { p.cleanups++ }, nil
}

// -- Helpers --

func newTestConfig() *config.Config {
	return config.NewDefaultConfig()
}

// writeFile creates a file under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const adaProfile = `
name: Ada Lovelace
email: ada@example.com
phone: "+44 20 7946 0000"
`
