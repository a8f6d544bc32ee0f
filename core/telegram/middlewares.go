package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares builds the global chain: recover, rate limit (when
// configured), logger and per-update send counters. The operator chat is
// never rate limited so a busy shift cannot lose replies.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
			}
			opts := middleware.RateLimitOptions{
				Interval:  interval,
				Exclude:   ex,
				OnLimited: onLimited,
			}
			if cfg.Relay.OperatorChatID != 0 {
				opts.Bypass = map[int64]struct{}{cfg.Relay.OperatorChatID: {}}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use:  middleware.RateLimitMiddleware(opts),
			})
		}
	}

	return append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "counters", Use: middleware.CountersMiddleware},
	)
}
