// Package main implements the magicportal command, a bridge between IP
// multicast groups and NATS. In forwarder mode it publishes multicast
// datagrams to NATS; in agent mode it re-emits NATS messages over UDP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/c360/magicportal/config"
	"github.com/c360/magicportal/health"
	"github.com/c360/magicportal/metric"
	"github.com/c360/magicportal/natsclient"
	"github.com/c360/magicportal/relay"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "magicportal"
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

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, logger, shouldExit, err := initializeCLI(args)
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		logger.Info("Configuration is valid",
			"mode", cfg.Mode,
			"groups", len(cfg.MulticastGroups))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsRegistry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()

	natsClient, err := createNATSClient(cfg, logger, metricsRegistry, monitor)
	if err != nil {
		return err
	}

	logger.Info("Connecting to NATS", "urls", natsClient.URL(), "name", natsClient.Name())
	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	monitor.UpdateHealthy("nats", "connected")
	defer closeNATS(natsClient, cliCfg.ShutdownTimeout, logger)

	healthPort := cfg.Health.Port
	if cliCfg.HealthPort != 0 {
		healthPort = cliCfg.HealthPort
	}
	if healthPort > 0 {
		server := metric.NewServer(healthPort, "/metrics", metricsRegistry, monitor)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("Health server failed", "error", err)
			}
		}()
		logger.Info("Serving health and metrics", "address", server.Address())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
			defer cancel()
			if err := server.Stop(shutdownCtx); err != nil {
				logger.Warn("Health server shutdown failed", "error", err)
			}
		}()
	}

	return runRelay(ctx, cfg, natsClient, metricsRegistry, monitor, logger)
}

// initializeCLI parses flags and sets up logging
func initializeCLI(args []string) (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg, err := parseFlags(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil, nil, true, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("Starting magicportal",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// loadConfig loads and validates configuration from path
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	loader.EnableValidation(true)

	cfg, err := loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// createNATSClient builds the bus client from configuration
func createNATSClient(
	cfg *config.Config,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
	monitor *health.Monitor,
) (*natsclient.Client, error) {
	name := cfg.NATS.Name
	if name == "" {
		name = fmt.Sprintf("%s-%s-%s", appName, cfg.Mode, uuid.NewString())
	}

	opts := []natsclient.ClientOption{
		natsclient.WithName(name),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithLogger(natsclient.NewSlogLogger(logger)),
		natsclient.WithMetrics(metricsRegistry),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			if healthy {
				monitor.UpdateHealthy("nats", "connected")
				return
			}
			monitor.UpdateUnhealthy("nats", "disconnected")
		}),
	}
	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}
	if cfg.NATS.Timeout > 0 {
		opts = append(opts, natsclient.WithTimeout(cfg.NATS.Timeout))
	}
	if cfg.NATS.AuthEnabled {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}
	if tls := cfg.NATS.TLS; tls.Enabled {
		opts = append(opts, natsclient.WithTLS(tls.CertFile, tls.KeyFile, tls.CAFile))
	}

	client, err := natsclient.NewClient(strings.Join(cfg.NATS.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}
	return client, nil
}

// runRelay starts one relay task per configured group and blocks until
// they have all returned
func runRelay(
	ctx context.Context,
	cfg *config.Config,
	bus relay.Bus,
	metricsRegistry *metric.MetricsRegistry,
	monitor *health.Monitor,
	logger *slog.Logger,
) error {
	policy, err := relay.ParseFailurePolicy(cfg.FailurePolicy)
	if err != nil {
		return err
	}

	relayMetrics, err := relay.NewMetrics(metricsRegistry)
	if err != nil {
		return fmt.Errorf("register relay metrics: %w", err)
	}

	tasks, err := relay.NewTasks(cfg, relay.TaskDeps{
		Bus:     bus,
		Metrics: relayMetrics,
		Logger:  logger.With("component", "relay"),
	})
	if err != nil {
		return err
	}

	supervisor := relay.NewSupervisor(relay.SupervisorDeps{
		Policy:          policy,
		Monitor:         monitor,
		MetricsRegistry: metricsRegistry,
		Logger:          logger.With("component", "supervisor"),
	})

	logger.Info("magicportal started", "mode", cfg.Mode, "groups", len(tasks))

	report, err := supervisor.Run(ctx, tasks)
	if report != nil {
		logReport(logger, report)
	}
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}

	logger.Info("magicportal shutdown complete")
	return nil
}

func logReport(logger *slog.Logger, report *relay.Report) {
	counts := make(map[relay.Outcome]int)
	for _, res := range report.Results {
		counts[res.Outcome]++
	}
	logger.Info("Relay tasks finished",
		"cancelled", counts[relay.OutcomeCancelled],
		"completed", counts[relay.OutcomeCompleted],
		"failed", counts[relay.OutcomeFailed])
}

func closeNATS(client *natsclient.Client, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Close(ctx); err != nil {
		logger.Warn("NATS close failed", "error", err)
	}
}
