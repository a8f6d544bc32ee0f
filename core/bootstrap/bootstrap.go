// Package bootstrap prepares process-wide infrastructure before the bot
// starts: logging, secrets, the archive database and the event stream.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	coredatabase "github.com/m3rciful/relaybot/core/database"
	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/internal/secrets"
)

const redisPingTimeout = 2 * time.Second

// Options overrides individual steps; nil fields use the real implementations.
type Options struct {
	Config *coreconfig.Config

	LoggerInit    func(*coreconfig.Config)
	ResolveSecret func(ctx context.Context, region, name string) (string, error)
	Connect       func(context.Context, coreconfig.DatabaseConfig) (*sqlx.DB, error)
	Migrate       func(context.Context, coreconfig.DatabaseConfig) error
	ConnectRedis  func(context.Context, coreconfig.RedisConfig) (*redis.Client, error)
}

// Result holds the optional backends. A nil field means the backend is disabled.
type Result struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

// Close releases every opened backend.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	return errors.Join(errs...)
}

// Run initializes the logger, resolves the bot token when it lives in SSM,
// then connects and migrates the archive and connects the event stream when
// they are configured.
func Run(ctx context.Context, opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	loggerInit(cfg)

	if cfg.Telegram.Token == "" {
		resolve := opts.ResolveSecret
		if resolve == nil {
			resolve = ssmSecret
		}
		token, err := resolve(ctx, cfg.AWS.Region, cfg.Telegram.TokenParam)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: bot token: %w", err)
		}
		cfg.Telegram.Token = token
	}

	res := &Result{}
	if cfg.Database.Enabled() {
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		res.DB = db

		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(ctx, cfg.Database); err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	} else {
		logger.Info(ctx, "app", "archive.disabled")
	}

	if cfg.Redis.Enabled() {
		connectRedis := opts.ConnectRedis
		if connectRedis == nil {
			connectRedis = ConnectRedis
		}
		rdb, err := connectRedis(ctx, cfg.Redis)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: redis initialization failed: %w", err)
		}
		res.Redis = rdb
	} else {
		logger.Info(ctx, "app", "events.disabled")
	}
	return res, nil
}

// ConnectRedis creates the event stream client and checks the connection.
func ConnectRedis(ctx context.Context, cfg coreconfig.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		logger.LogEvent(ctx, logger.Events, slog.LevelError, "redis.connect",
			slog.String("status", "fail"),
			slog.String("addr", cfg.Addr),
			logger.Err(err),
		)
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	logger.LogEvent(ctx, logger.Events, slog.LevelInfo, "redis.connect",
		slog.String("status", "ok"),
		slog.String("addr", cfg.Addr),
		slog.String("queue", cfg.Queue),
	)
	return rdb, nil
}

func ssmSecret(ctx context.Context, region, name string) (string, error) {
	store, err := secrets.NewFromEnv(ctx, region)
	if err != nil {
		return "", err
	}
	return store.Get(ctx, name)
}
