package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	DataPath        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("TFTGATEWAY_CONFIG", ""),
		"Path to configuration file, empty for defaults (env: TFTGATEWAY_CONFIG)")

	flag.StringVar(&cfg.DataPath, "data",
		getEnv("TFTGATEWAY_DATA", ""),
		"Path to the JSON dataset file (env: TFTGATEWAY_DATA)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("TFTGATEWAY_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error (env: TFTGATEWAY_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("TFTGATEWAY_LOG_FORMAT", "json"),
		"Log format: json, text (env: TFTGATEWAY_LOG_FORMAT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		30*time.Second,
		"Graceful shutdown timeout")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printDetailedHelp
	flag.Parse()

	return cfg
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - TFT statistics query gateway

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with defaults (in-memory cache, empty dataset)
  %s

  # Run with a config file and dataset
  %s --config=/etc/tftgateway/config.json --data=/var/lib/tftgateway/set14.json

  # Validate configuration only
  %s --config=config.json --validate

Version: %s
`, os.Args[0], os.Args[0], os.Args[0], Version)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
