package logger

import (
	"strings"
)

// defaultKeyOrder pins the leading keys of every record; anything else follows alphabetically.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"op",
	"dialog",
	"state",
	"next_state",
	"input",
	"action",
	"result",
	"polarity",
	"content_kind",
	"relay_message_id",
	"target_user_id",
	"route_status",
	"outcome",
	"duration_ms",
	"messages",
	"sessions",
	"routes",
	"evicted",
	"expired",
	"mode",
	"listen",
	"public_url",
	"db",
	"host",
	"queue",
	"job",
	"err",
	"err_kind",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
	"rate_limited",
}

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
	"fatal":   "FATAL",
}

// outcomeValues is closed; an unknown outcome is dropped from the record.
var outcomeValues = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"stale":        {},
	"ignored":      {},
	"cancelled":    {},
	"rate_limited": {},
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if mapped, ok := levelNames[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func sanitizeEnumerations(fields map[string]any) {
	if level, ok := stringField(fields, "level"); ok {
		fields["level"] = normalizeLevel(level)
	}
	if s, ok := stringField(fields, "status"); ok && s != "" {
		fields["status"] = strings.ToLower(strings.TrimSpace(s))
	}
	if o, ok := stringField(fields, "outcome"); ok && o != "" {
		o = strings.ToLower(strings.TrimSpace(o))
		if _, known := outcomeValues[o]; known {
			fields["outcome"] = o
		} else {
			delete(fields, "outcome")
		}
	}
}

// durationKey renames duration attributes so the unit is visible in the key.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	default:
		return key + "_ms"
	}
}
