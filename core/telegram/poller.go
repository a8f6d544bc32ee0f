package telegram

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/relaybot/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10 * time.Second

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
}

// PollerOptionsFrom extracts poller settings from the application config.
func PollerOptionsFrom(cfg *coreconfig.Config) PollerOptions {
	return PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
	}
}

// BuildPoller returns a webhook poller in webhook mode and a long poller otherwise.
func BuildPoller(opts PollerOptions) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(opts.RunMode), coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", opts.Webhook.Listen, opts.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
		}
	}
	return &tele.LongPoller{Timeout: longPollTimeout(opts.LongPollTimeoutSeconds)}
}

func longPollTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return defaultLongPollTimeout
	}
	return time.Duration(seconds) * time.Second
}
