package router

import (
	"log/slog"

	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// contentEndpoints are the telebot endpoints that deliver user content.
// Games and invoices are routed too so they can be answered as unsupported.
var contentEndpoints = []string{
	tele.OnText,
	tele.OnPhoto,
	tele.OnVideo,
	tele.OnDocument,
	tele.OnAudio,
	tele.OnVoice,
	tele.OnVideoNote,
	tele.OnAnimation,
	tele.OnSticker,
	tele.OnContact,
	tele.OnLocation,
	tele.OnVenue,
	tele.OnPoll,
	tele.OnDice,
	tele.OnGame,
	tele.OnInvoice,
}

// ContentRoutes sends every content message to the dispatcher.
func ContentRoutes(d Dispatcher) []tg.Route {
	handler := func(c tele.Context) error {
		ev := ContentEvent(c)
		extras := []slog.Attr{slog.String("content_kind", string(ev.Content))}
		if ev.ReplyTo != 0 {
			extras = append(extras, slog.Int("reply_to", ev.ReplyTo))
		}
		return dispatchWithSummary(c, d, "content."+string(ev.Content), ev, extras...)
	}
	wrapped := middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler))

	routes := make([]tg.Route, 0, len(contentEndpoints))
	for _, endpoint := range contentEndpoints {
		routes = append(routes, tg.Route{Endpoint: endpoint, Handler: wrapped})
	}
	return routes
}
