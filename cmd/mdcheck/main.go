// Command mdcheck polls one or more maildir mailboxes and reports message
// counts and new-mail status.
//
// Usage:
//
//	mdcheck [flags] <maildir> [<maildir>...]
//
// Configuration comes from the environment (optionally via a .env file):
//
//	MDCHECK_LOG_LEVEL      debug|info|warn|error  (default info)
//	MDCHECK_LOG_FORMAT     text|json              (default text)
//	MDCHECK_WATCH          keep polling           (default false)
//	MDCHECK_POLL_INTERVAL  poll pacing            (default 30s)
//	MDCHECK_CHECK_CUR      also scan cur/ for new (default false)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/LarsHaalck/neomutt/mailbox"
	"github.com/LarsHaalck/neomutt/maildir"
)

type config struct {
	LogLevel     string        `env:"MDCHECK_LOG_LEVEL" envDefault:"info"`
	LogFormat    string        `env:"MDCHECK_LOG_FORMAT" envDefault:"text"` // "json" or "text"
	Watch        bool          `env:"MDCHECK_WATCH" envDefault:"false"`
	PollInterval time.Duration `env:"MDCHECK_POLL_INTERVAL" envDefault:"30s"`
	CheckCur     bool          `env:"MDCHECK_CHECK_CUR" envDefault:"false"`
}

func main() {
	// Load .env file if present (ignore error if not found).
	_ = godotenv.Load()

	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		slog.Error("failed to parse config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)

	flag.Parse()
	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: mdcheck [flags] <maildir> [<maildir>...]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, paths); err != nil {
		logger.Error("mdcheck failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger, paths []string) error {
	opts := maildir.DefaultOptions()
	opts.CheckCur = cfg.CheckCur
	opts.Logger = logger

	// One pass immediately, then paced polling in watch mode.
	limiter := rate.NewLimiter(rate.Every(cfg.PollInterval), 1)

	for {
		g, _ := errgroup.WithContext(ctx)
		for _, path := range paths {
			path := path
			g.Go(func() error {
				return checkOne(logger, path, opts)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if !cfg.Watch {
			return nil
		}
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil // interrupted, not an error
			}
			return err
		}
	}
}

func checkOne(logger *slog.Logger, path string, opts maildir.Options) error {
	name, ok := mailbox.Detect(path)
	if !ok {
		return fmt.Errorf("%s: unknown mailbox format", path)
	}
	logger.Debug("probing mailbox", "path", path, "type", name)

	mb := maildir.New(path, opts)
	status, stats := mb.CheckStats(true)

	logger.Info("mailbox status",
		"path", path,
		"status", status.String(),
		"count", stats.Count,
		"unread", stats.Unread,
		"flagged", stats.Flagged,
		"new", stats.New,
	)
	return nil
}

func setupLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: lvl})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
