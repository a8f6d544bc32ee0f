package middleware

import (
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// CountersMiddleware makes sure the per-update context carries a fresh send
// counter before any handler runs. The transport increments it; the handler
// summary reads it back through GetCounters.
func CountersMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if tghelpers.CountersFrom(ctx) == nil {
			tghelpers.StoreContext(c, tghelpers.WithCounters(ctx))
		}
		return next(c)
	}
}

// GetCounters reads how many messages the update produced and whether any
// carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	ctx, ok := tghelpers.ContextFrom(c)
	if !ok {
		return 0, false
	}
	return tghelpers.CountersFrom(ctx).Snapshot()
}
