// Package main implements the alertstream daemon. It loads alert rules from
// a YAML file, subscribes to a NATS event feed and delivers matched alerts
// through a webhook or gateway bridge.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/c360/alertstream/bridge"
	"github.com/c360/alertstream/config"
	"github.com/c360/alertstream/engine"
	"github.com/c360/alertstream/input/natsevents"
	"github.com/c360/alertstream/metric"
	"github.com/c360/alertstream/natsclient"
)

const (
	Version = engine.Version
	appName = "alertstream"
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
		slog.Error("application failed", "error", err)
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
	slog.Info("starting alertstream", "version", Version, "config_path", cliCfg.ConfigPath)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cliCfg.Validate {
		slog.Info("configuration is valid", "alerts", cfg.AlertCount())
		return nil
	}

	ctx := context.Background()

	var registry *metric.MetricsRegistry
	var metricsServer *metric.Server
	if cliCfg.MetricsPort > 0 {
		registry = metric.NewMetricsRegistry()
		metricsServer = metric.NewServer(cliCfg.MetricsPort, "/metrics", registry)
		if err := metricsServer.Start(); err != nil {
			return err
		}
		defer func() { _ = metricsServer.Stop() }()
	}

	resolver := buildResolver(cfg)
	deliverer, stopDeliverer, err := buildDeliverer(ctx, cfg)
	if err != nil {
		return err
	}
	defer stopDeliverer()

	engineOpts := []engine.Option{
		engine.WithConfigPath(cliCfg.ConfigPath),
	}
	if registry != nil {
		engineOpts = append(engineOpts, engine.WithMetricsRegistry(registry))
	}
	if workers, ok := cfg.GetOptionalInt("Dispatch.Workers"); ok {
		queue, _ := cfg.GetOptionalInt("Dispatch.QueueSize")
		engineOpts = append(engineOpts, engine.WithWorkers(workers, queue))
	}

	eng, err := engine.New(cfg, resolver, deliverer, engineOpts...)
	if err != nil {
		return err
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = eng.Stop(cliCfg.ShutdownTimeout) }()

	natsClient, input, err := startEventFeed(ctx, cfg, eng, registry)
	if err != nil {
		return err
	}
	if natsClient != nil {
		defer func() { _ = natsClient.Close(ctx) }()
	}
	if input != nil {
		defer func() { _ = input.Stop(cliCfg.ShutdownTimeout) }()
	}

	return waitForSignals(eng)
}

// buildResolver assembles the channel resolution chain from the Bridge
// section: configured alias map first, then raw channel IDs.
func buildResolver(cfg *config.Config) *bridge.Resolver {
	mapping := make(map[string]string)
	if raw, ok := cfg.GetOptional("Bridge.Channels"); ok {
		if channels, ok := raw.(map[string]any); ok {
			for name, id := range channels {
				mapping[strings.ToLower(name)] = fmt.Sprintf("%v", id)
			}
		}
	}
	return bridge.NewResolver(
		bridge.MappedNames(mapping),
		bridge.RawIDs(),
	)
}

// buildDeliverer picks the transport: a websocket gateway when one is
// configured, otherwise the webhook HTTP client.
func buildDeliverer(ctx context.Context, cfg *config.Config) (bridge.Deliverer, func(), error) {
	if gatewayURL, ok := cfg.GetOptionalString("Bridge.Gateway.Url"); ok && gatewayURL != "" {
		gateway, err := bridge.NewGateway(bridge.GatewayConfig{URL: gatewayURL})
		if err != nil {
			return nil, nil, err
		}
		if err := gateway.Start(ctx); err != nil {
			return nil, nil, err
		}
		return gateway, func() { _ = gateway.Stop(10 * time.Second) }, nil
	}

	var opts []bridge.WebhookOption
	if url, ok := cfg.GetOptionalString("Bridge.Webhook.Url"); ok {
		opts = append(opts, bridge.WithDefaultURL(url))
	}
	if perSecond, ok := cfg.GetOptionalInt("Bridge.Webhook.RateLimit"); ok && perSecond > 0 {
		opts = append(opts, bridge.WithRateLimit(float64(perSecond), perSecond))
	}
	return bridge.NewWebhookClient(opts...), func() {}, nil
}

// startEventFeed connects the NATS feed when one is configured. A missing
// Feed section is fine for embedded deployments that publish to the bus
// directly.
func startEventFeed(ctx context.Context, cfg *config.Config, eng *engine.Engine, registry *metric.MetricsRegistry) (*natsclient.Client, *natsevents.Input, error) {
	url, ok := cfg.GetOptionalString("Feed.Url")
	if !ok || url == "" {
		slog.Info("no event feed configured, bus is local only")
		return nil, nil, nil
	}

	clientOpts := []natsclient.ClientOption{
		natsclient.WithClientName(appName),
	}
	if username, ok := cfg.GetOptionalString("Feed.Username"); ok {
		password, _ := cfg.GetOptionalString("Feed.Password")
		clientOpts = append(clientOpts, natsclient.WithCredentials(username, password))
	}
	if token, ok := cfg.GetOptionalString("Feed.Token"); ok {
		clientOpts = append(clientOpts, natsclient.WithToken(token))
	}

	client, err := natsclient.NewClient(url, clientOpts...)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, nil, err
	}

	inputOpts := []natsevents.InputOption{}
	if subject, ok := cfg.GetOptionalString("Feed.Subject"); ok {
		inputOpts = append(inputOpts, natsevents.WithSubject(subject))
	}
	if registry != nil {
		inputOpts = append(inputOpts, natsevents.WithMetrics(registry.CoreMetrics()))
	}

	input, err := natsevents.NewInput(client, eng.Bus(), inputOpts...)
	if err != nil {
		_ = client.Close(ctx)
		return nil, nil, err
	}
	if err := input.Start(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, nil, err
	}
	return client, input, nil
}

// waitForSignals blocks until shutdown, reloading alerts on SIGHUP.
func waitForSignals(eng *engine.Engine) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	for sig := range signals {
		switch sig {
		case syscall.SIGHUP:
			slog.Info("reload requested")
			if _, err := eng.ReloadAlerts(); err != nil {
				slog.Error("reload failed", "error", err)
			}
		default:
			slog.Info("shutting down", "signal", sig.String())
			return nil
		}
	}
	return nil
}
