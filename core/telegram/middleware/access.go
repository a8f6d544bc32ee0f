package middleware

import (
	"log/slog"

	"github.com/m3rciful/relaybot/core/logger"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions defines how admin-only checks behave. A zero AdminID rejects
// everyone, so admin commands stay closed until an admin is configured.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// IsAdmin reports whether c was sent by the configured admin.
func (o AdminOptions) IsAdmin(c tele.Context) bool {
	user := c.Sender()
	return o.AdminID != 0 && user != nil && user.ID == o.AdminID
}

// AdminOnlyMiddleware lets only the admin reach next.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.IsAdmin(c) {
				return next(c)
			}
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelInfo, "access.denied",
				slog.String("outcome", "ignored"),
			)
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
