package main

import (
	"fmt"
	"os"
)

// CLIConfig holds the parsed command line for one run of the gateway.
type CLIConfig struct {
	ConfigPath string
	TestMode   bool
	LogLevel   string
	LogFormat  string
	HealthPort int
}

func parseFlags(args []string) (CLIConfig, error) {
	cfg := CLIConfig{
		LogLevel:   getEnv("GATEKIT_LOG_LEVEL", "info"),
		LogFormat:  getEnv("GATEKIT_LOG_FORMAT", "json"),
		HealthPort: getEnvInt("GATEKIT_HEALTH_PORT", 9090),
	}

	var positional []string
	for _, arg := range args {
		switch arg {
		case "--test-mode":
			cfg.TestMode = true
		case "-h", "--help":
			printHelp()
			os.Exit(0)
		default:
			positional = append(positional, arg)
		}
	}

	if len(positional) != 1 {
		return CLIConfig{}, fmt.Errorf("usage: %s <config.json> [--test-mode]", os.Args[0])
	}
	cfg.ConfigPath = positional[0]

	return cfg, nil
}

func printHelp() {
	fmt.Fprintf(os.Stdout, `gatekit - UDP command gateway and fan-out dispatcher

Usage:
  gatekit <config.json> [--test-mode]

Flags:
  --test-mode   log the fully parsed configuration and per-command trace detail
  -h, --help    show this help text

Environment:
  GATEKIT_LOG_LEVEL   debug|info|warn|error (default info)
  GATEKIT_LOG_FORMAT  json|text (default json)
  GATEKIT_HEALTH_PORT metrics/health HTTP port (default 9090)
`)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}
