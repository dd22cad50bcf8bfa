package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/config"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/tracing"
)

const serviceName = "grants-insights"

const usage = `usage: grants-insights [serve|export|sync] [flags]

  serve                  run the HTTP API (default)
  export [-program X]    write report tables to EXPORT_BUCKET_URL
  sync   [-program X]    fetch from the indexer and persist a snapshot to DB_URL
`

func main() {
	cmd, args := parseCommand(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cmd, args, cfg, logger); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Error("grants-insights exited with error", "command", cmd, "error", err)
		os.Exit(1)
	}
}

// parseCommand splits the subcommand from its flags. A leading flag or no
// argument selects serve.
func parseCommand(args []string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "serve", args
	}
	return args[0], args[1:]
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(ctx context.Context, cmd string, args []string, cfg *config.Config, logger *slog.Logger) error {
	var program string
	switch cmd {
	case "serve":
	case "export", "sync":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.StringVar(&program, "program", "", "program to process (default: every program in the catalog)")
		if err := fs.Parse(args); err != nil {
			return err
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}

	tracingEndpoint := ""
	if cfg.Tracing.Enabled {
		tracingEndpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Init(ctx, serviceName, tracingEndpoint, cfg.Tracing.Insecure, cfg.Tracing.SampleRatio)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info("starting "+serviceName,
		"command", cmd,
		"source", cfg.Source.Kind,
		"blocktime_strategy", cfg.BlockTime.Strategy,
		"programs", len(app.pipeline.Programs()),
		"redis_cache", app.redis != nil,
		"tracing", cfg.Tracing.Enabled,
	)

	switch cmd {
	case "export":
		return exportPrograms(ctx, cfg, app, program, logger)
	case "sync":
		return syncPrograms(ctx, cfg, app, program, logger)
	default:
		return serve(ctx, cfg, app, logger)
	}
}
