// Command gatekit runs the UDP command gateway: it accepts JSON commands
// on a control port, fans them out to configured MSC endpoints, aggregates
// their replies under a timeout, and returns one consolidated response to
// the original sender.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/gatekit/config"
	"github.com/c360/gatekit/gateway"
	"github.com/c360/gatekit/health"
	"github.com/c360/gatekit/metric"
)

const (
	Version          = "0.1.0"
	shutdownWatchdog = time.Second
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
		_, _ = fmt.Fprintf(os.Stderr, "gatekit: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, err := parseFlags(args)
	if err != nil {
		return err
	}

	level := cliCfg.LogLevel
	if cliCfg.TestMode {
		level = "debug"
	}
	logger := setupLogger(level, cliCfg.LogFormat)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cliCfg.TestMode {
		cfg.LogFields(logger)
	}

	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()
	metricsServer := metric.NewServer(cliCfg.HealthPort, "/metrics", registry, monitor)

	gw, err := gateway.Build(cfg, cliCfg.TestMode, metricsServer, registry.CoreMetrics(), monitor, logger)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	logger.Info("gatekit starting", "config", cliCfg.ConfigPath, "msc_agents", len(cfg.MSCAgents))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- gw.Run(ctx) }()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("gatekit shutting down")
	go func() {
		time.Sleep(shutdownWatchdog)
		os.Exit(1)
	}()

	err = <-runErr
	logger.Info("gatekit shutdown complete")
	return err
}
