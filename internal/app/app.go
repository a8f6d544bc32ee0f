// Package app assembles the relay bot from its parts.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/m3rciful/relaybot/core/bootstrap"
	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/outbox"
	coretelegram "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/commands"
	"github.com/m3rciful/relaybot/core/telegram/router"
	"github.com/m3rciful/relaybot/core/telegram/transport"
	"github.com/m3rciful/relaybot/internal/archive"
	"github.com/m3rciful/relaybot/internal/dialogue"
	"github.com/m3rciful/relaybot/internal/dispatch"
	"github.com/m3rciful/relaybot/internal/events"
	"github.com/m3rciful/relaybot/internal/routing"
	"github.com/m3rciful/relaybot/internal/session"
	"github.com/m3rciful/relaybot/internal/submission"

	tele "gopkg.in/telebot.v4"
)

// App owns the in-memory relay state and the optional backends.
type App struct {
	cfg      *coreconfig.Config
	infra    *bootstrap.Result
	registry *coretelegram.Registry
	sessions *session.Store
	routes   *routing.Table
	queue    *outbox.Queue
	sink     submission.Sink

	stopSweep context.CancelFunc
	sweepDone chan struct{}
	closeOnce sync.Once
}

// New wires the stores and the submission recorder. infra may be nil.
func New(cfg *coreconfig.Config, infra *bootstrap.Result) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config provided")
	}
	a := &App{
		cfg:      cfg,
		infra:    infra,
		registry: NewRegistry(),
		sessions: session.NewStore(),
		routes: routing.NewTable(routing.Options{
			TTL:           cfg.Relay.RouteTTL,
			MaxEntries:    cfg.Relay.RouteMaxEntries,
			SweepInterval: cfg.Relay.RouteSweepInterval,
		}),
		sink: submission.Nop{},
	}

	var (
		arch submission.Archive
		pub  submission.Publisher
	)
	if infra != nil && infra.DB != nil {
		arch = archive.New(infra.DB)
	}
	if infra != nil && infra.Redis != nil {
		p, err := events.NewPublisher(infra.Redis, cfg.Redis.Queue)
		if err != nil {
			return nil, err
		}
		pub = p
	}
	if arch != nil || pub != nil {
		a.queue = outbox.New(outbox.Options{
			QueueSize:    cfg.Outbox.QueueSize,
			Workers:      cfg.Outbox.Workers,
			MaxRetries:   cfg.Outbox.MaxRetries,
			RetryBackoff: cfg.Outbox.RetryBackoff,
			MaxDuration:  cfg.Outbox.MaxDuration,
		})
		a.sink = submission.NewRecorder(a.queue, arch, pub)
	}
	return a, nil
}

// NewRegistry declares the bot's slash commands.
func NewRegistry() *coretelegram.Registry {
	reg := coretelegram.NewRegistry()
	reg.RegisterCommand("/"+dispatch.CommandStart, commands.Command{Description: "Запустить бота"})
	reg.RegisterCommand("/"+dispatch.CommandMenu, commands.Command{Description: "Главное меню"})
	reg.RegisterCommand("/"+dispatch.CommandStats, commands.Command{
		Description: "Статистика бота",
		AdminOnly:   true,
		Hidden:      true,
	})
	return reg
}

// Dispatcher builds the event dispatcher on top of m.
func (a *App) Dispatcher(m *transport.Messenger) *dispatch.Dispatcher {
	operator := a.cfg.Relay.OperatorChatID
	engine := dialogue.New(dialogue.Config{
		Messenger:      m,
		Sessions:       a.sessions,
		Routes:         a.routes,
		Sink:           a.sink,
		OperatorChatID: operator,
	})
	cfg := dispatch.Config{
		Messenger:      m,
		Engine:         engine,
		Sessions:       a.sessions,
		Routes:         a.routes,
		Sink:           a.sink,
		OperatorChatID: operator,
	}
	if a.queue != nil {
		cfg.Jobs = a.queue
	}
	return dispatch.New(cfg)
}

// Routes binds commands, button presses and content to d.
func (a *App) Routes(d router.Dispatcher) []coretelegram.Route {
	routes := router.CommandRoutes(a.registry, d, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
	})
	routes = append(routes, router.CallbackRoute(d))
	return append(routes, router.ContentRoutes(d)...)
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    a.registry,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, acknowledgeLimited),
		Routes: func(bot *tele.Bot) []coretelegram.Route {
			return a.Routes(a.Dispatcher(transport.New(bot)))
		},
		OnStart: func(ctx context.Context, _ coretelegram.Runtime) error {
			a.startSweeper(ctx)
			return nil
		},
		OnStop: func(ctx context.Context, _ coretelegram.Runtime) error {
			a.stopSweeper()
			if a.queue != nil {
				a.queue.Close()
				logger.Info(ctx, "app", "outbox.drained",
					slog.Uint64("jobs_done", a.queue.DoneCount()),
					slog.Uint64("jobs_failed", a.queue.ErrorCount()),
				)
			}
			return nil
		},
	}, nil
}

// acknowledgeLimited answers a throttled button press so the client stops
// its spinner. Throttled messages are dropped silently.
func acknowledgeLimited(c tele.Context) error {
	if c.Callback() == nil {
		return nil
	}
	return c.Respond(&tele.CallbackResponse{})
}

func (a *App) startSweeper(ctx context.Context) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopSweep = cancel
	a.sweepDone = make(chan struct{})
	go func() {
		defer close(a.sweepDone)
		a.routes.Run(ctx)
	}()
}

func (a *App) stopSweeper() {
	if a.stopSweep == nil {
		return
	}
	a.stopSweep()
	<-a.sweepDone
	a.stopSweep = nil
}

// Close stops background work and closes the backends.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.stopSweeper()
		if a.queue != nil {
			a.queue.Close()
		}
		err = a.infra.Close()
	})
	return err
}
