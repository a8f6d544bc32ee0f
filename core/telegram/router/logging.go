package router

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
	"github.com/m3rciful/relaybot/core/telegram/middleware"
	"github.com/m3rciful/relaybot/internal/dispatch"
	"github.com/m3rciful/relaybot/internal/messaging"

	tele "gopkg.in/telebot.v4"
)

// Dispatcher consumes converted events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev messaging.Event) error
}

// dispatchWithSummary runs the dispatcher for ev and writes one
// handler.handled line with timing, send counters and the outcome.
func dispatchWithSummary(c tele.Context, d Dispatcher, handlerName string, ev messaging.Event, extras ...slog.Attr) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, handlerName)
	err := d.Dispatch(ctx, ev)
	logHandlerSummary(c, handlerName, start, err, extras...)
	return err
}

func logHandlerSummary(c tele.Context, handlerName string, start time.Time, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, handlerName)
	msgs, kb := middleware.GetCounters(c)

	status, outcome := "ok", "ok"
	level := slog.LevelInfo
	switch {
	case errors.Is(err, dispatch.ErrUnrecognizedEvent):
		outcome = "stale"
	case err != nil:
		status, outcome = "fail", "fail"
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs,
			logger.Err(err),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	attrs = append(attrs, extras...)
	logger.LogEvent(ctx, logger.TG, level, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

// deriveErrorCode names an error for dashboards: transport errors by kind,
// everything else by its concrete type.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var me *messaging.Error
	if errors.As(err, &me) {
		return strings.ToUpper(me.Kind.String())
	}
	if errors.Is(err, dispatch.ErrUnrecognizedEvent) {
		return "UNRECOGNIZED_EVENT"
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
