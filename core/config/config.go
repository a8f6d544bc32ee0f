package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// TokenParam names an SSM parameter holding the token; used when Token is empty.
	TokenParam string `yaml:"token_param" envconfig:"BOT_TOKEN_PARAM"`
	AdminID    int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode    string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// RelayConfig configures the operator channel and the routing table bounds.
type RelayConfig struct {
	// OperatorChatID is the single chat receiving relayed requests and reviews.
	// Supergroup identifiers are negative (-100...).
	OperatorChatID     int64         `yaml:"operator_chat_id" envconfig:"LOG_GROUP_ID"`
	RouteTTL           time.Duration `yaml:"route_ttl" envconfig:"RELAY_ROUTE_TTL"`
	RouteMaxEntries    int           `yaml:"route_max_entries" envconfig:"RELAY_ROUTE_MAX_ENTRIES"`
	RouteSweepInterval time.Duration `yaml:"route_sweep_interval" envconfig:"RELAY_ROUTE_SWEEP_INTERVAL"`
	// StartupNotice is posted to the operator chat once the bot is up; it doubles as a liveness check.
	StartupNotice string `yaml:"startup_notice" envconfig:"RELAY_STARTUP_NOTICE"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// OutboxConfig tunes the background job queue used for archive and event writes.
type OutboxConfig struct {
	QueueSize    int           `yaml:"queue_size" envconfig:"OUTBOX_QUEUE_SIZE"`
	Workers      int           `yaml:"workers" envconfig:"OUTBOX_WORKERS"`
	MaxRetries   int           `yaml:"max_retries" envconfig:"OUTBOX_MAX_RETRIES"`
	RetryBackoff time.Duration `yaml:"retry_backoff" envconfig:"OUTBOX_RETRY_BACKOFF"`
	MaxDuration  time.Duration `yaml:"max_duration" envconfig:"OUTBOX_MAX_DURATION"`
}

// DatabaseConfig holds Postgres settings for the submission archive.
// The archive is disabled when Host is empty.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// Enabled reports whether the archive database is configured.
func (c DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

// RedisConfig holds settings for the event stream. Disabled when Addr is empty.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	Queue    string `yaml:"queue" envconfig:"REDIS_QUEUE"`
}

// Enabled reports whether the event stream is configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// AWSConfig is only consulted when a secret has to be fetched from SSM.
type AWSConfig struct {
	Region string `yaml:"region" envconfig:"AWS_REGION"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

const (
	defaultRouteTTL           = 7 * 24 * time.Hour
	defaultRouteMaxEntries    = 10000
	defaultRouteSweepInterval = 10 * time.Minute
	defaultRedisQueue         = "relaybot:events"
	defaultMigrationsDir      = "migrations"
	defaultStartupNotice      = "✅ Бот успешно запущен и имеет доступ к этой группе для логирования запросов."
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the whole application configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Relay     RelayConfig     `yaml:"relay"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Outbox    OutboxConfig    `yaml:"outbox"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AWS       AWSConfig       `yaml:"aws"`
}

// Load reads configuration from an optional YAML file and environment variables.
// An empty path skips the file so the bot can be configured from env alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}

	if cfg.Telegram.Token == "" && strings.TrimSpace(cfg.Telegram.TokenParam) == "" {
		return errors.New("telegram token is required (telegram.token or telegram.token_param)")
	}
	if cfg.Relay.OperatorChatID == 0 {
		return errors.New("relay.operator_chat_id is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return errors.New("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return errors.New("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return errors.New("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if err := normalizeRelay(&cfg.Relay); err != nil {
		return err
	}
	normalizeDatabase(&cfg.Database)
	if cfg.Redis.Enabled() && strings.TrimSpace(cfg.Redis.Queue) == "" {
		cfg.Redis.Queue = defaultRedisQueue
	}

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}

func normalizeRelay(r *RelayConfig) error {
	if r.RouteTTL < 0 {
		return errors.New("relay.route_ttl must be >= 0")
	}
	if r.RouteMaxEntries < 0 {
		return errors.New("relay.route_max_entries must be >= 0")
	}
	if r.RouteTTL == 0 {
		r.RouteTTL = defaultRouteTTL
	}
	if r.RouteMaxEntries == 0 {
		r.RouteMaxEntries = defaultRouteMaxEntries
	}
	if r.RouteSweepInterval <= 0 {
		r.RouteSweepInterval = defaultRouteSweepInterval
	}
	if strings.TrimSpace(r.StartupNotice) == "" {
		r.StartupNotice = defaultStartupNotice
	}
	return nil
}

func normalizeDatabase(db *DatabaseConfig) {
	if !db.Enabled() {
		return
	}
	if db.Port == "" {
		db.Port = "5432"
	}
	if db.SSLMode == "" {
		db.SSLMode = "disable"
	}
	if db.MaxConnections <= 0 {
		db.MaxConnections = 5
	}
	if db.MigrationsDir == "" {
		db.MigrationsDir = defaultMigrationsDir
	}
}
