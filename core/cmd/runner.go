// Package cmd drives the process lifecycle: environment, configuration,
// bootstrap, the bot runtime and shutdown.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/core/logger"
	coretelegram "github.com/m3rciful/relaybot/core/telegram"
)

// TelegramApp is an assembled application ready to serve updates.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
	// Close releases what the app owns once the runtime has stopped.
	Close() error
}

// Options describe how to load configuration, bootstrap the app and run the bot.
type Options struct {
	// ConfigPath wins over ConfigEnvVar and DefaultConfigPath. An empty
	// result configures the bot from the environment alone.
	ConfigPath        string
	ConfigEnvVar      string
	DefaultConfigPath string
	// EnvFiles are loaded into the environment first; missing files are skipped.
	EnvFiles []string

	LoadConfig func(path string) (*coreconfig.Config, error)
	Bootstrap  func(ctx context.Context, cfg *coreconfig.Config) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// LoadConfig applies EnvFiles and reads the configuration.
func LoadConfig(opts Options) (*coreconfig.Config, error) {
	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return nil, err
	}

	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv(env)
	}
	// The default file is optional; explicit paths must exist.
	if cfgPath == "" && opts.DefaultConfigPath != "" {
		if _, err := os.Stat(opts.DefaultConfigPath); err == nil {
			cfgPath = opts.DefaultConfigPath
		}
	}

	load := opts.LoadConfig
	if load == nil {
		load = coreconfig.Load
	}
	if cfgPath != "" {
		log.Printf("loading config: %s", cfgPath)
	}
	cfg, err := load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("cmd: failed to load config: %w", err)
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("cmd: load env file %s: %w", f, err)
		}
	}
	return nil
}

// Run loads configuration, bootstraps the Telegram app and serves updates
// until SIGINT or SIGTERM.
func Run(opts Options) error {
	if opts.Bootstrap == nil {
		return fmt.Errorf("cmd: Bootstrap is required")
	}
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	startedAt := time.Now()
	application, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn(context.Background(), "app", "app.close", logger.Err(err))
		}
	}()

	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}

	prevStart := runOpts.OnStart
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready",
			slog.Duration("startup_duration", logger.Took(startedAt)),
		)
		return nil
	}

	prevStop := runOpts.OnStop
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown")
		if prevStop != nil {
			return prevStop(ctx, rt)
		}
		return nil
	}

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}
