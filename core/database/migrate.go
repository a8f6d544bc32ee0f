package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/core/logger"
)

const previewLimit = 6

// RunMigrations applies every pending up migration from cfg.MigrationsDir.
func RunMigrations(ctx context.Context, cfg coreconfig.DatabaseConfig) error {
	dir, err := filepath.Abs(cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("resolve migrations dir: %w", err)
	}

	files := listMigrationFiles(dir)
	attrs := []slog.Attr{
		slog.String("path", dir),
		slog.Int("files_total", len(files)),
	}
	attrs = appendPreview(attrs, files)
	logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "migrate.resolve", attrs...)

	m, err := migrate.New("file://"+filepath.ToSlash(dir), URLDSN(cfg))
	if err != nil {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "migrate.init",
			slog.String("status", "fail"),
			logger.Err(err),
		)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "migrate.close",
				logger.Err(errors.Join(srcErr, dbErr)),
			)
		}
	}()

	fromVer, dirty, _ := m.Version()
	if dirty {
		return fmt.Errorf("database is dirty at version %d; fix it manually and force the version", fromVer)
	}

	start := time.Now()
	upErr := m.Up()
	took := logger.Took(start)
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "migrate.apply",
			slog.String("status", "fail"),
			slog.Duration("duration", took),
			logger.Err(upErr),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	toVer := fromVer
	if upErr == nil {
		toVer, _, _ = m.Version()
	}
	applied := selectApplied(files, uint64(fromVer), uint64(toVer))
	if len(applied) > 0 {
		logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "migrate.apply",
			appendPreview([]slog.Attr{slog.Int("files_total", len(applied))}, applied)...)
	}
	logger.LogEvent(ctx, logger.MIG, slog.LevelInfo, "migrate.summary",
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func appendPreview(attrs []slog.Attr, names []string) []slog.Attr {
	preview, truncated := logger.SummarizeStrings(names, previewLimit)
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

func listMigrationFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// parseVersion reads the numeric prefix of "0001_name.up.sql"; 0 when absent.
func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

func selectApplied(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
