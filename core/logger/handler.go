package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

var errWriterMissing = errors.New("logger: writer not initialized")

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders flat records (groups become dotted keys) in kv or json form.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errWriterMissing
	}
	fields := h.collect(ctx, r)

	var (
		line []byte
		err  error
	)
	if h.cfg.format == formatJSON {
		line, err = encodeJSON(fields, h.cfg.keyOrder)
	} else {
		line = encodeKV(fields, h.cfg.keyOrder)
	}
	if err != nil {
		return err
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// collect builds the field map for one record: bound attrs, record attrs,
// then context metadata that the record did not already set.
func (h *structuredHandler) collect(ctx context.Context, r slog.Record) map[string]any {
	fields := make(map[string]any, 16)
	ts := r.Time.UTC()
	fields["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	fields["level"] = r.Level.String()
	if h.cfg.format == formatJSON {
		fields["ts_unix_nano"] = ts.UnixNano()
	}

	prefix := strings.Join(h.groups, ".")
	put := func(k string, v slog.Value) {
		if key, val, ok := normalizeAttr(k, v); ok {
			fields[key] = val
		}
	}
	for _, a := range h.attrs {
		flattenAttr(prefix, a, put)
	}
	r.Attrs(func(a slog.Attr) bool {
		flattenAttr(prefix, a, put)
		return true
	})
	addContextFields(ctx, fields)

	if rid, ok := stringField(fields, "rid"); ok && rid != "" {
		if compact := CompactRID(rid); compact != rid {
			if h.cfg.format == formatJSON {
				if _, seen := fields["rid_full"]; !seen {
					fields["rid_full"] = rid
				}
			}
			fields["rid"] = compact
		}
	}
	if event, _ := stringField(fields, "event"); event == "" {
		fields["event"] = r.Message
		if r.Message == "" {
			fields["event"] = "unknown"
		}
	}
	if component, _ := stringField(fields, "component"); component == "" {
		fields["component"] = "app"
	}

	sanitizeEnumerations(fields)
	pruneEmpty(fields)
	return fields
}

func flattenAttr(prefix string, attr slog.Attr, fn func(string, slog.Value)) {
	key := attr.Key
	switch {
	case key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}
	val := attr.Value.Resolve()
	if val.Kind() == slog.KindGroup {
		for _, child := range val.Group() {
			flattenAttr(key, child, fn)
		}
		return
	}
	if key != "" {
		fn(key, val)
	}
}

func normalizeAttr(key string, val slog.Value) (string, any, bool) {
	switch val.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(val.String()), true
	case slog.KindBool:
		return key, val.Bool(), true
	case slog.KindInt64:
		return key, val.Int64(), true
	case slog.KindUint64:
		if u := val.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, val.Uint64(), true
	case slog.KindFloat64:
		return key, val.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(val.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, val.Time().UTC().Format(time.RFC3339Nano), true
	}

	switch x := val.Any().(type) {
	case nil:
		return key, nil, false
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

func pruneEmpty(fields map[string]any) {
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
			delete(fields, k)
		case string:
			if val == "" {
				delete(fields, k)
			}
		}
	}
}

// orderedKeys returns the keys listed in order first, then the rest sorted.
func orderedKeys(fields map[string]any, order []string) []string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, key := range order {
		if _, ok := fields[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		keys = append(keys, key)
		seen[key] = struct{}{}
	}
	rest := make([]string, 0, len(fields)-len(keys))
	for key := range fields {
		if _, ok := seen[key]; !ok {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func encodeJSON(fields map[string]any, order []string) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, key := range orderedKeys(fields, order) {
		data, err := json.Marshal(fields[key])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", key, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(key))
		b.WriteByte(':')
		b.Write(data)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func encodeKV(fields map[string]any, order []string) []byte {
	var b strings.Builder
	for i, key := range orderedKeys(fields, order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(kvValue(fields[key]))
	}
	return []byte(b.String())
}

func kvValue(val any) string {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		s = fmt.Sprint(v)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

func stringField(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key]
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

func addContextFields(ctx context.Context, fields map[string]any) {
	if ctx == nil {
		return
	}
	setIfAbsent := func(key string, val any, empty bool) {
		if empty {
			return
		}
		if _, ok := fields[key]; !ok {
			fields[key] = val
		}
	}
	rid := RIDFrom(ctx)
	setIfAbsent("rid", rid, rid == "")
	uid := UserIDFrom(ctx)
	setIfAbsent("user_id", uid, uid == 0)
	updateID := UpdateIDFrom(ctx)
	setIfAbsent("update_id", int64(updateID), updateID == 0)
	cid := ChatIDFrom(ctx)
	setIfAbsent("chat_id", cid, cid == 0)
	handler := HandlerFrom(ctx)
	setIfAbsent("handler", handler, handler == "")
}
