package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude lists update kinds ("callback", "message", "inline_query") that bypass the limit.
	Exclude map[string]struct{}
	// Bypass lists chats that are never limited, such as the operator chat.
	Bypass    map[int64]struct{}
	OnLimited tele.HandlerFunc
	Now       func() time.Time
}

// RateLimitMiddleware drops updates from a user that arrive closer together
// than Interval.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var (
		mu       sync.Mutex
		lastSeen = make(map[int64]time.Time)
		lastGC   time.Time
	)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}
			if chat := c.Chat(); chat != nil {
				if _, skip := opts.Bypass[chat.ID]; skip {
					return next(c)
				}
			}

			t := now()
			mu.Lock()
			if t.Sub(lastGC) > time.Minute {
				for id, seen := range lastSeen {
					if t.Sub(seen) > opts.Interval {
						delete(lastSeen, id)
					}
				}
				lastGC = t
			}
			last, ok := lastSeen[user.ID]
			limited := ok && t.Sub(last) < opts.Interval
			if !limited {
				lastSeen[user.ID] = t
			}
			mu.Unlock()

			if limited {
				logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "tg.rate_limit",
					slog.String("outcome", "rate_limited"),
					slog.String("kind", UpdateKind(c.Update())),
				)
				if opts.OnLimited != nil {
					_ = opts.OnLimited(c)
				}
				return nil
			}
			return next(c)
		}
	}
}

// UpdateKind names the update type the way rate limit exclusions spell it.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	default:
		return "other"
	}
}
