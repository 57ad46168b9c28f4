// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/observability"
)

// isolate runs the test in an empty directory with the logger reset, so no
// config file or log file from the working tree is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("FORMPILOT_LOGGER_LOG_FILE", filepath.Join(dir, "test.log"))
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_VersionFlag(t *testing.T) {
	isolate(t)
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestRootCmd_VersionCommand(t *testing.T) {
	isolate(t)
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestRootCmd_InvalidConfigFile(t *testing.T) {
	dir := isolate(t)
	cfgPath := writeFile(t, dir, "bad.yaml", "engine:\n  worker_concurrency: 0\n")

	_, err := execute(t, "--config", cfgPath, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker_concurrency")
}

func TestRootCmd_MissingExplicitConfigFile(t *testing.T) {
	dir := isolate(t)
	_, err := execute(t, "--config", filepath.Join(dir, "nope.yaml"), "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize configuration")
}

func TestRootCmd_HistoryWithoutDatabase(t *testing.T) {
	isolate(t)
	t.Setenv("FORMPILOT_DATABASE_URL", "")

	_, err := execute(t, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is not configured")
}

func TestRootCmd_RequiredFlags(t *testing.T) {
	isolate(t)
	_, err := execute(t, "fill", "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "profile" not set`)

	_, err = execute(t, "fill")
	require.Error(t, err)
}

func TestGetConfigFromContext(t *testing.T) {
	_, err := getConfigFromContext(context.Background())
	assert.Error(t, err)

	cfg := newTestConfig()
	ctx := context.WithValue(context.Background(), configKey, config.Interface(cfg))
	got, err := getConfigFromContext(ctx)
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}
