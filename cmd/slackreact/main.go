// Package main implements the entry point for the slackreact bot runtime:
// a long-running gateway connection that evaluates pluggable rules against
// incoming events and posts their responses.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/hauntsaninja/slackreact/bot"
	"github.com/hauntsaninja/slackreact/config"
	"github.com/hauntsaninja/slackreact/directory"
	"github.com/hauntsaninja/slackreact/dispatch"
	"github.com/hauntsaninja/slackreact/errors"
	"github.com/hauntsaninja/slackreact/metric"
	"github.com/hauntsaninja/slackreact/rule"
	"github.com/hauntsaninja/slackreact/rules"
	"github.com/hauntsaninja/slackreact/slack"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "slackreact"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting slackreact",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	registry := rule.NewRegistry()
	if err := rules.RegisterAll(registry); err != nil {
		return fmt.Errorf("register rules: %w", err)
	}
	slog.Info("Rule factories registered", "count", len(registry.Names()), "rules", registry.Names())

	client := slack.New(cfg.Token, slack.WithLogger(logger))
	cache := directory.NewCache()
	reporter := dispatch.NewReporter(client, cfg.ReportTo, logger)

	var metricsRegistry *metric.Registry
	if cfg.Metrics.Enabled {
		metricsRegistry = metric.NewRegistry()
	}
	botMetrics := metric.NewBotMetrics(metricsRegistry)

	b := bot.New(client, cache, reporter, logger, botMetrics)

	built, err := registry.Build(b, cfg.Rules)
	if err != nil {
		return fmt.Errorf("build rules: %w", err)
	}

	dispatcher := dispatch.New(client, cache, built, reporter, logger, botMetrics, metricsRegistry,
		dispatch.Config{Workers: cfg.Dispatch.Workers, QueueSize: cfg.Dispatch.QueueSize})

	return runWithSignalHandling(cfg, b, dispatcher, metricsRegistry, logger, cliCfg.ShutdownTimeout)
}

// runWithSignalHandling starts the runtime and drives it until a shutdown
// signal or a fatal error.
func runWithSignalHandling(
	cfg config.Config,
	b *bot.Bot,
	dispatcher *dispatch.Dispatcher,
	metricsRegistry *metric.Registry,
	logger *slog.Logger,
	shutdownTimeout time.Duration,
) error {
	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := dispatcher.Start(signalCtx); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}
	defer func() {
		if err := dispatcher.Stop(shutdownTimeout); err != nil {
			slog.Error("Dispatcher did not drain cleanly", "error", err)
		}
	}()

	if cfg.Metrics.Enabled {
		metricServer := metric.NewServer(cfg.Metrics.Port, metricsRegistry, logger)
		go func() {
			if err := metricServer.Start(); err != nil {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = metricServer.Stop(shutdownCtx)
		}()
	}

	err := b.Run(signalCtx, dispatcher)
	if signalCtx.Err() != nil {
		slog.Info("Received shutdown signal")
		slog.Info("slackreact shutdown complete")
		return nil
	}
	if errors.IsFatal(err) {
		return fmt.Errorf("gateway connection: %w", err)
	}
	return err
}
