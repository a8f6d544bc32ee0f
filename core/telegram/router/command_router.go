package router

import (
	"log/slog"

	"github.com/m3rciful/relaybot/core/logger"
	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures admin gating of commands.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes binds every registered command and alias to the dispatcher.
// Aliases dispatch under the canonical name.
func CommandRoutes(reg *tg.Registry, d Dispatcher, opts CommandRouteOptions) []tg.Route {
	if reg == nil || d == nil {
		return nil
	}
	adminOpts := middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	}

	endpoints := reg.Endpoints()
	routes := make([]tg.Route, 0, len(endpoints))
	for _, endpoint := range endpoints {
		key, def, ok := reg.LookupCommand(endpoint)
		if !ok {
			continue
		}
		name := "command." + normalizeHandlerName(key)
		var h tele.HandlerFunc = func(c tele.Context) error {
			return dispatchWithSummary(c, d, name, CommandEvent(c, key))
		}
		h = middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
		if def.AdminOnly {
			h = middleware.AdminOnlyMiddleware(adminOpts)(h)
		}
		routes = append(routes, tg.Route{Endpoint: endpoint, Handler: h})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "commands"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("endpoints", len(routes)),
	)
	return routes
}
