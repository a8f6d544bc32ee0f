// Package database opens the submission archive connection and keeps its
// schema current.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/core/logger"
)

const (
	readyTimeout = 30 * time.Second
	waitInterval = 2 * time.Second
)

// KeywordDSN renders the lib/pq keyword form used by Connect.
func KeywordDSN(cfg coreconfig.DatabaseConfig) string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		quoteKeyword(cfg.User), quoteKeyword(cfg.Password), cfg.Host, cfg.Port, quoteKeyword(cfg.Name), cfg.SSLMode,
	)
}

// URLDSN renders the postgres:// form expected by the migration driver.
func URLDSN(cfg coreconfig.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

// quoteKeyword wraps values with spaces or quotes the way libpq expects.
func quoteKeyword(v string) string {
	needs := v == ""
	for _, r := range v {
		if r == ' ' || r == '\'' || r == '\\' {
			needs = true
			break
		}
	}
	if !needs {
		return v
	}
	out := make([]rune, 0, len(v)+2)
	out = append(out, '\'')
	for _, r := range v {
		if r == '\'' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(append(out, '\''))
}

// Connect opens the archive database, sizes the pool and waits until the
// server answers. A database still starting up gets readyTimeout to come up.
func Connect(ctx context.Context, cfg coreconfig.DatabaseConfig) (*sqlx.DB, error) {
	start := time.Now()
	db, err := sqlx.Open("postgres", KeywordDSN(cfg))
	if err == nil {
		if err = WaitReady(ctx, db, readyTimeout); err != nil {
			_ = db.Close()
		}
	}
	took := logger.Took(start)
	if err != nil {
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "db.connect",
			slog.String("status", "fail"),
			slog.String("host", cfg.Host),
			slog.String("port", cfg.Port),
			slog.String("db", cfg.Name),
			slog.Duration("duration", took),
			logger.Err(err),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)

	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect",
		slog.String("status", "ok"),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", took),
	)
	return db, nil
}

// Pinger is satisfied by *sqlx.DB and *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// WaitReady pings until the database answers, ctx ends or timeout elapses.
func WaitReady(ctx context.Context, db Pinger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(waitInterval)
	defer ticker.Stop()
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		case <-ticker.C:
		}
	}
}
