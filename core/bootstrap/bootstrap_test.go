package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/relaybot/core/config"
)

type calls struct {
	logger, secret, connect, migrate, redis int
}

func stubbed(cfg *coreconfig.Config, c *calls) Options {
	return Options{
		Config:     cfg,
		LoggerInit: func(*coreconfig.Config) { c.logger++ },
		ResolveSecret: func(_ context.Context, _, name string) (string, error) {
			c.secret++
			return "token-from-" + name, nil
		},
		Connect: func(context.Context, coreconfig.DatabaseConfig) (*sqlx.DB, error) {
			c.connect++
			return nil, nil
		},
		Migrate: func(context.Context, coreconfig.DatabaseConfig) error {
			c.migrate++
			return nil
		},
		ConnectRedis: func(context.Context, coreconfig.RedisConfig) (*redis.Client, error) {
			c.redis++
			return nil, nil
		},
	}
}

func TestRunSkipsDisabledBackends(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Telegram.Token = "t"
	var c calls

	res, err := Run(context.Background(), stubbed(cfg, &c))
	require.NoError(t, err)
	assert.Nil(t, res.DB)
	assert.Nil(t, res.Redis)
	assert.Equal(t, calls{logger: 1}, c)
	assert.NoError(t, res.Close())
}

func TestRunResolvesTokenAndStartsBackends(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Telegram.TokenParam = "/relaybot/token"
	cfg.Database.Host = "db"
	cfg.Redis.Addr = "redis:6379"
	var c calls

	_, err := Run(context.Background(), stubbed(cfg, &c))
	require.NoError(t, err)
	assert.Equal(t, "token-from-/relaybot/token", cfg.Telegram.Token)
	assert.Equal(t, calls{logger: 1, secret: 1, connect: 1, migrate: 1, redis: 1}, c)
}

func TestRunStopsOnFailures(t *testing.T) {
	boom := errors.New("boom")

	t.Run("secret", func(t *testing.T) {
		cfg := &coreconfig.Config{}
		var c calls
		opts := stubbed(cfg, &c)
		opts.ResolveSecret = func(context.Context, string, string) (string, error) { return "", boom }
		_, err := Run(context.Background(), opts)
		require.ErrorIs(t, err, boom)
		assert.Zero(t, c.connect)
	})

	t.Run("migrate", func(t *testing.T) {
		cfg := &coreconfig.Config{}
		cfg.Telegram.Token = "t"
		cfg.Database.Host = "db"
		cfg.Redis.Addr = "redis:6379"
		var c calls
		opts := stubbed(cfg, &c)
		opts.Migrate = func(context.Context, coreconfig.DatabaseConfig) error { return boom }
		_, err := Run(context.Background(), opts)
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "migrations failed")
		assert.Zero(t, c.redis)
	})

	t.Run("redis", func(t *testing.T) {
		cfg := &coreconfig.Config{}
		cfg.Telegram.Token = "t"
		cfg.Redis.Addr = "redis:6379"
		var c calls
		opts := stubbed(cfg, &c)
		opts.ConnectRedis = func(context.Context, coreconfig.RedisConfig) (*redis.Client, error) { return nil, boom }
		_, err := Run(context.Background(), opts)
		require.ErrorIs(t, err, boom)
	})
}

func TestRunRejectsNilConfig(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	require.Error(t, err)
}
