package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/core/logger"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// ErrLiveness is returned when the token or the operator chat fails the startup check.
var ErrLiveness = errors.New("telegram: liveness check failed")

// Middleware describes a global bot middleware registered via bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to a telebot endpoint.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	Middlewares []Middleware
	// Routes is called once the bot exists, since handlers send through it.
	Routes func(bot *tele.Bot) []Route

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot      *tele.Bot
	Registry *Registry
}

// NewBot creates the bot. telebot calls getMe here, so a bad token fails fast.
func NewBot(cfg *coreconfig.Config) (*tele.Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram: nil config provided")
	}
	opts := PollerOptionsFrom(cfg)
	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: BuildPoller(opts),
		Client: BuildHTTPClient(longPollTimeout(opts.LongPollTimeoutSeconds)),
		OnError: func(err error, c tele.Context) {
			ctx := context.Background()
			if c != nil {
				ctx = tghelpers.BuildContext(c)
			}
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "tg.handler.error", logger.Err(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: getMe: %w", ErrLiveness, err)
	}
	logger.LogEvent(context.Background(), logger.TG, slog.LevelInfo, "tg.bot.ready",
		slog.String("username", bot.Me.Username),
		slog.Duration("duration", logger.Took(start)),
	)
	return bot, nil
}

// Notifier is the part of *tele.Bot used to post the startup notice.
type Notifier interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// CheckOperatorChat posts the startup notice to the operator chat. Failure
// means relayed requests would be lost, so callers treat it as fatal.
func CheckOperatorChat(ctx context.Context, bot Notifier, chatID int64, notice string) error {
	if chatID == 0 {
		return fmt.Errorf("%w: operator chat id is not set", ErrLiveness)
	}
	if _, err := bot.Send(tele.ChatID(chatID), notice); err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelError, "tg.liveness",
			slog.String("status", "fail"),
			slog.Int64("target_chat_id", chatID),
			logger.Err(err),
		)
		return fmt.Errorf("%w: operator chat %d: %w", ErrLiveness, chatID, err)
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "tg.liveness",
		slog.String("status", "ok"),
		slog.Int64("target_chat_id", chatID),
	)
	return nil
}

// RunTelegram builds the bot, performs the liveness check, wires middleware
// and routes, and serves updates until ctx is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	bot, err := NewBot(cfg)
	if err != nil {
		return err
	}
	if err := CheckOperatorChat(ctx, bot, cfg.Relay.OperatorChatID, cfg.Relay.StartupNotice); err != nil {
		return err
	}
	rt := Runtime{Bot: bot, Registry: reg}

	switch p := bot.Poller.(type) {
	case *tele.Webhook:
		logger.TG.Info("webhook mode",
			slog.String("event", "mode"),
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
		)
	default:
		logger.TG.Info("polling mode",
			slog.String("event", "mode"),
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("timeout", longPollTimeout(cfg.Telegram.LongPollTimeoutSeconds)),
		)
		if !opts.DisableWebhookCleanup && strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeLongpoll) {
			if err := bot.RemoveWebhook(false); err != nil {
				logger.TG.Warn("failed to delete webhook",
					slog.String("event", "delete_webhook"),
					logger.Err(err),
				)
			}
		}
	}

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	var routes []Route
	if opts.Routes != nil {
		routes = opts.Routes(bot)
	}
	for _, route := range routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}
	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("middlewares", len(opts.Middlewares)),
		slog.Int("routes", len(routes)),
	)

	InitBotCommands(bot, reg)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		runErr = ctx.Err()
	case <-runDone:
	}

	if opts.OnStop != nil {
		if err := opts.OnStop(context.WithoutCancel(ctx), rt); err != nil {
			return err
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
