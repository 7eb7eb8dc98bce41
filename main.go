package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pollfetch/internal/config"
	"pollfetch/internal/daemon"
)

func initLogger(cfg *config.Config) {
	var logLevel slog.Level
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <url> <output file>\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML)")
	envPath := flag.String("env-file", ".env", "Path to environment variables file")
	flag.Usage = usage
	flag.Parse()

	opts := config.Options{
		ConfigPath: *configPath,
		EnvPath:    *envPath,
	}
	switch flag.NArg() {
	case 0:
		// url and output come from config
	case 2:
		opts.URL = flag.Arg(0)
		opts.Output = flag.Arg(1)
	default:
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load(opts)
	if err != nil {
		// Logger isn't initialized yet
		basicLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		basicLogger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	initLogger(cfg)

	d, err := daemon.New(daemon.Config{
		URL:            cfg.URL,
		Output:         cfg.Output,
		Interval:       cfg.Interval,
		Resolution:     cfg.Resolution,
		RequestTimeout: cfg.RequestTimeout,
		DBPath:         cfg.DBPath,
	})
	if err != nil {
		slog.Error("Failed to initialize daemon", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runErr := d.Run(ctx)
	if err := d.Close(); err != nil {
		slog.Error("Error closing daemon", "error", err)
	}
	if runErr != nil {
		slog.Error("Daemon exited with error", "error", runErr)
		cancel()
		os.Exit(1)
	}

	slog.Info("Shutdown complete")
}
