package router

import (
	"log/slog"

	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackRoute sends every button press to the dispatcher. The dispatcher
// answers each callback itself, so nothing is acknowledged here.
func CallbackRoute(d Dispatcher) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		ev := SelectionEvent(c)
		name := "callback." + normalizeHandlerName(ev.Action)
		return dispatchWithSummary(c, d, name, ev, slog.String("cb_key", ev.Action))
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
