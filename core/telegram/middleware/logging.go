package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates suppresses duplicate receipt lines when the middleware is
// applied both globally and on a route.
type seenUpdates struct {
	mu   sync.Mutex
	ids  map[int]time.Time
	keep time.Duration
}

var received = &seenUpdates{ids: make(map[int]time.Time), keep: 10 * time.Second}

func (s *seenUpdates) first(updateID int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ts := range s.ids {
		if now.Sub(ts) > s.keep {
			delete(s.ids, id)
		}
	}
	if _, ok := s.ids[updateID]; ok {
		return false
	}
	s.ids[updateID] = now
	return true
}

// LoggerMiddleware assigns the request id, caches the per-update context and
// writes one sampled debug line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		if _, ok := c.Get(tghelpers.RIDKey).(string); !ok {
			var chatID, userID int64
			if chat := c.Chat(); chat != nil {
				chatID = chat.ID
			}
			if user := c.Sender(); user != nil {
				userID = user.ID
			}
			c.Set(tghelpers.RIDKey, logger.BuildRID(upd.ID, chatID, userID))
		}
		ctx := tghelpers.BuildContext(c)

		if logger.ShouldSampleDebug() && received.first(upd.ID, time.Now()) {
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context) []slog.Attr {
	upd := c.Update()
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("kind", UpdateKind(upd)),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	case upd.Message != nil:
		if t := c.Text(); t != "" {
			attrs = append(attrs, slog.Int("text_len", len([]rune(t))))
		}
		if upd.Message.ReplyTo != nil {
			attrs = append(attrs, slog.Int("reply_to", upd.Message.ReplyTo.ID))
		}
	}
	return attrs
}
