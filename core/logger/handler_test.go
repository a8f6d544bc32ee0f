package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, format logFormat) (*slog.Logger, func() string) {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:  slog.LevelDebug,
		writer: aw,
		format: format,
	})
	read := func() string {
		require.NoError(t, aw.Close())
		return strings.TrimSpace(buf.String())
	}
	return slog.New(handler), read
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	log, read := newTestLogger(t, formatKV)
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	LogEvent(ctx, log.With("component", "relay.dialogue"), slog.LevelInfo, "dialogue.transition",
		slog.String("status", "OK"),
		slog.String("dialog", "support"),
		slog.String("cause", "unit"),
	)

	tokens := strings.Split(read(), " ")
	expected := []string{"ts=", "level=INFO", "component=relay.dialogue", "event=dialogue.transition", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "dialog=support"}
	require.GreaterOrEqual(t, len(tokens), len(expected))
	for i, prefix := range expected {
		require.Truef(t, strings.HasPrefix(tokens[i], prefix), "token %d = %s, expected prefix %s", i, tokens[i], prefix)
	}
	require.Equal(t, "cause=unit", tokens[len(tokens)-1])
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	log, read := newTestLogger(t, formatJSON)
	ctx := WithRID(context.Background(), "rid-json")
	ctx = WithUpdateMeta(ctx, 11, 22, 33)

	LogEvent(ctx, log.With("component", "relay.dispatch"), slog.LevelError, "reply.failed",
		slog.String("status", "fail"),
		slog.Int64("relay_message_id", 501),
		slog.String("err", "boom"),
	)

	line := read()
	require.True(t, strings.HasPrefix(line, "{"))
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"relay.dispatch"`, `"event":"reply.failed"`, `"status":"fail"`, `"rid":"rid-json"`, `"relay_message_id":501`, `"err":"boom"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		require.Truef(t, idx > pos, "prefix %s not found in order within %s", pref, line)
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	log, read := newTestLogger(t, formatKV)
	rawRID := BuildRID(123, 456, 789)
	LogEvent(WithRID(context.Background(), rawRID), log, slog.LevelInfo, "rid.test")

	line := read()
	require.Contains(t, line, "rid="+CompactRID(rawRID))
	require.NotContains(t, line, "rid_full=")
	require.Contains(t, line, "component=app")
}

func TestStructuredHandlerCompactRIDJSON(t *testing.T) {
	log, read := newTestLogger(t, formatJSON)
	rawRID := "12:34:56"
	LogEvent(WithRID(context.Background(), rawRID), log, slog.LevelInfo, "rid.test")

	line := read()
	require.Contains(t, line, `"rid":"`+CompactRID(rawRID)+`"`)
	require.Contains(t, line, `"rid_full":"`+rawRID+`"`)
	require.Contains(t, line, `"ts_unix_nano"`)
}

func TestStructuredHandlerDurationsAndEnums(t *testing.T) {
	log, read := newTestLogger(t, formatKV)
	LogEvent(context.Background(), log, slog.LevelWarn, "outbox.retry",
		slog.Duration("duration", 1500*time.Microsecond),
		slog.Duration("backoff", 2*time.Second),
		slog.String("outcome", "bogus"),
		slog.String("queue", ""),
		slog.Group("job", slog.String("name", "archive.save")),
	)

	line := read()
	require.Contains(t, line, "duration_ms=2")
	require.Contains(t, line, "backoff_ms=2000")
	require.Contains(t, line, "job.name=archive.save")
	require.NotContains(t, line, "outcome=")
	require.NotContains(t, line, "queue=")
	require.Contains(t, line, "level=WARN")
}

func TestStructuredHandlerRespectsLevel(t *testing.T) {
	h := newStructuredHandler(handlerConfig{level: slog.LevelWarn, writer: newAsyncWriter(nil, 0)})
	require.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestCompactRID(t *testing.T) {
	require.Equal(t, "z.10.0", CompactRID("35:36:0"))
	require.Equal(t, "not-a-rid", CompactRID("not-a-rid"))
	require.Equal(t, "1:x:3", CompactRID("1:x:3"))
	require.Empty(t, CompactRID("  "))
}

func TestSanitizeLimit(t *testing.T) {
	require.Equal(t, "ab\ncd", Sanitize("a\x00b\ncd\u200b"))
	require.Equal(t, "при", SanitizeLimit("привет", 3))
	require.Empty(t, SanitizeLimit("x", 0))
}

func TestSummarizeStrings(t *testing.T) {
	s, truncated := SummarizeStrings([]string{"start", "menu", "stats"}, 2)
	require.Equal(t, "start, menu", s)
	require.True(t, truncated)

	s, truncated = SummarizeStrings([]string{"start"}, 2)
	require.Equal(t, "start", s)
	require.False(t, truncated)
}

func TestParseDebugSample(t *testing.T) {
	n, d := parseDebugSample("")
	require.Equal(t, [2]int{1, 50}, [2]int{n, d})
	n, d = parseDebugSample("1/10")
	require.Equal(t, [2]int{1, 10}, [2]int{n, d})
	n, d = parseDebugSample("off")
	require.Equal(t, [2]int{0, 0}, [2]int{n, d})
}
