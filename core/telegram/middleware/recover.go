package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/relaybot/core/logger"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware turns a handler panic into a logged failure so one bad
// update cannot take the poller down.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			ctx := tghelpers.BuildContext(c)
			logger.LogEvent(ctx, logger.TG, slog.LevelError, "tg.panic",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(fmt.Sprint(r), 512)),
				slog.String("stack", string(debug.Stack())),
			)
			err = nil
		}()
		return next(c)
	}
}
