package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/relaybot/core/buildinfo"
	coreconfig "github.com/m3rciful/relaybot/core/config"
)

var (
	initOnce   sync.Once
	shutdownMu sync.Mutex
	shutdowned bool

	logWriter  *asyncWriter
	logClosers []io.Closer

	levelVar slog.LevelVar

	debugSampler  = newRatioSampler(1, 50)
	traceOverride bool

	// L is the base logger. It discards output until InitLogger runs.
	L = slog.New(slog.NewTextHandler(io.Discard, nil))

	// TG logs Telegram transport events.
	TG = L
	// TWire logs Telegram wiring steps (routes, commands).
	TWire = L
	// DB logs database connectivity.
	DB = L
	// MIG logs database migrations.
	MIG = L
	// Session logs session store activity.
	Session = L
	// Routing logs routing table activity.
	Routing = L
	// Dialogue logs dialogue transitions and relays.
	Dialogue = L
	// Dispatch logs event classification and operator replies.
	Dispatch = L
	// Outbox logs background job execution.
	Outbox = L
	// Archive logs submission archive writes.
	Archive = L
	// Events logs event stream publication.
	Events = L
)

// InitLogger configures the global structured logger. It may be called only once.
func InitLogger(cfg *coreconfig.Config) {
	initOnce.Do(func() {
		var logging coreconfig.LoggingConfig
		if cfg != nil {
			logging = cfg.Logging
		}
		levelVar.Set(parseLevel(logging.Level))
		debugSampler.Set(parseDebugSample(logging.DebugSample))
		traceOverride = isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE"))

		outputs, closers := buildOutputs(logging)
		logClosers = closers
		logWriter = newAsyncWriter(outputs, 64*1024)

		handler := newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   logWriter,
			format:   parseFormat(logging),
			keyOrder: parseKeyOrder(logging.KeysOrder),
		})

		L = slog.New(handler)
		slog.SetDefault(L)

		wireComponents()
		logStartup(logging)
	})
}

func wireComponents() {
	TG = L.With("component", "tg")
	TWire = L.With("component", "tg.wire")
	DB = L.With("component", "db")
	MIG = L.With("component", "db.migrate")
	Session = L.With("component", "relay.session")
	Routing = L.With("component", "relay.routing")
	Dialogue = L.With("component", "relay.dialogue")
	Dispatch = L.With("component", "relay.dispatch")
	Outbox = L.With("component", "outbox")
	Archive = L.With("component", "archive")
	Events = L.With("component", "events")
}

func logStartup(logging coreconfig.LoggingConfig) {
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("cfg_profile", parseProfile(logging.Profile)),
	)
}

// Shutdown flushes buffered log output and closes opened sinks.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if shutdowned {
		return nil
	}
	shutdowned = true

	var errs []error
	if logWriter != nil {
		if err := logWriter.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := logWriter.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range logClosers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func parseFormat(logging coreconfig.LoggingConfig) logFormat {
	switch strings.ToLower(strings.TrimSpace(logging.Format)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	// Human-friendly output for local profiles.
	switch parseProfile(logging.Profile) {
	case "debug", "dev":
		return formatKV
	}
	return formatJSON
}

func parseKeyOrder(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return append([]string(nil), defaultKeyOrder...)
	}
	var order []string
	for _, p := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			order = append(order, trimmed)
		}
	}
	if len(order) == 0 {
		return append([]string(nil), defaultKeyOrder...)
	}
	return order
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseProfile(raw string) string {
	if profile := strings.TrimSpace(raw); profile != "" {
		return strings.ToLower(profile)
	}
	return "prod"
}

func parseDebugSample(spec string) (int, int) {
	if strings.TrimSpace(spec) == "" {
		return 1, 50
	}
	num, den := parseRatioSpec(spec)
	if num == 0 && den == 0 {
		return 0, 0
	}
	if num <= 0 || den <= 0 {
		return 1, 50
	}
	return num, den
}

func buildOutputs(logging coreconfig.LoggingConfig) ([]io.Writer, []io.Closer) {
	writers := []io.Writer{os.Stdout}
	dir := strings.TrimSpace(logging.Dir)
	file := strings.TrimSpace(logging.BotFile)
	if dir == "" || file == "" {
		return writers, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("logger: failed to create log dir %s: %v", dir, err)
		return writers, nil
	}
	path := filepath.Join(dir, file)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: failed to open log file %s: %v", path, err)
		return writers, nil
	}
	return append(writers, f), []io.Closer{f}
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether debug-level details should be logged for high-volume events.
func ShouldSampleDebug() bool {
	if traceOverride {
		return true
	}
	return debugSampler.Allow()
}
