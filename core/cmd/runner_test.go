package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	coretelegram "github.com/m3rciful/relaybot/core/telegram"
)

type stubApp struct {
	closed bool
	err    error
}

func (a *stubApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, a.err
}

func (a *stubApp) Close() error {
	a.closed = true
	return nil
}

func recordPath(got *string) func(string) (*coreconfig.Config, error) {
	return func(path string) (*coreconfig.Config, error) {
		*got = path
		return &coreconfig.Config{}, nil
	}
}

func TestLoadConfigPathPrecedence(t *testing.T) {
	dir := t.TempDir()
	def := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(def, []byte("{}"), 0o600))

	var got string
	t.Setenv("RELAY_CONFIG", "")

	_, err := LoadConfig(Options{ConfigEnvVar: "RELAY_CONFIG", DefaultConfigPath: def, LoadConfig: recordPath(&got)})
	require.NoError(t, err)
	assert.Equal(t, def, got)

	t.Setenv("RELAY_CONFIG", "/from/env.yaml")
	_, err = LoadConfig(Options{ConfigEnvVar: "RELAY_CONFIG", DefaultConfigPath: def, LoadConfig: recordPath(&got)})
	require.NoError(t, err)
	assert.Equal(t, "/from/env.yaml", got)

	_, err = LoadConfig(Options{ConfigPath: "/from/flag.yaml", ConfigEnvVar: "RELAY_CONFIG", LoadConfig: recordPath(&got)})
	require.NoError(t, err)
	assert.Equal(t, "/from/flag.yaml", got)
}

func TestLoadConfigMissingDefaultFallsBackToEnv(t *testing.T) {
	t.Setenv("RELAY_CONFIG", "")
	got := "unset"
	_, err := LoadConfig(Options{
		ConfigEnvVar:      "RELAY_CONFIG",
		DefaultConfigPath: filepath.Join(t.TempDir(), "absent.yaml"),
		LoadConfig:        recordPath(&got),
	})
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestLoadConfigReadsEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("RELAY_TEST_MARKER=from-dotenv\n"), 0o600))
	t.Setenv("RELAY_TEST_MARKER", "")
	require.NoError(t, os.Unsetenv("RELAY_TEST_MARKER"))

	var got string
	_, err := LoadConfig(Options{
		EnvFiles:   []string{filepath.Join(dir, "missing.env"), envFile},
		LoadConfig: recordPath(&got),
	})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", os.Getenv("RELAY_TEST_MARKER"))
}

func TestRunWrapsHookChainAndClosesApp(t *testing.T) {
	app := &stubApp{}
	var started, stopped, shutdown bool
	err := Run(Options{
		LoadConfig: func(string) (*coreconfig.Config, error) { return &coreconfig.Config{}, nil },
		Bootstrap: func(context.Context, *coreconfig.Config) (TelegramApp, error) {
			return app, nil
		},
		ShutdownLogger: func() error { shutdown = true; return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
			started = true
			require.NoError(t, opts.OnStop(ctx, coretelegram.Runtime{}))
			stopped = true
			return nil
		},
	})
	require.NoError(t, err)
	assert.True(t, started)
	assert.True(t, stopped)
	assert.True(t, app.closed)
	assert.True(t, shutdown)
}

func TestRunReportsBootstrapFailure(t *testing.T) {
	boom := errors.New("boom")
	err := Run(Options{
		LoadConfig: func(string) (*coreconfig.Config, error) { return &coreconfig.Config{}, nil },
		Bootstrap: func(context.Context, *coreconfig.Config) (TelegramApp, error) {
			return nil, boom
		},
		ShutdownLogger: func() error { return nil },
	})
	require.ErrorIs(t, err, boom)

	require.Error(t, Run(Options{}))
}
