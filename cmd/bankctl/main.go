// Package main is the command line client for the banking API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/avabank/internal/config"
	"github.com/vyrodovalexey/avabank/internal/gateway"
	"github.com/vyrodovalexey/avabank/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
	args        []string
}

func main() {
	flags := parseFlags(flag.CommandLine, os.Args[1:])

	if flags.showVersion {
		printVersion(os.Stdout)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", describeError(err))
		os.Exit(1)
	}
}

// parseFlags parses command line flags. Remaining arguments name the
// command and its own flags.
func parseFlags(fs *flag.FlagSet, args []string) cliFlags {
	configPath := fs.String("config", getEnvOrDefault("BANK_CONFIG_PATH", ""),
		"Path to configuration file")
	logLevel := fs.String("log-level", getEnvOrDefault(config.EnvLogLevel, ""),
		"Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", getEnvOrDefault(config.EnvLogFormat, ""),
		"Log format (json, console)")
	showVersion := fs.Bool("version", false, "Show version information")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: bankctl [flags] <command> [command flags]\n\ncommands:\n")
		printCommands(fs.Output())
		fmt.Fprintf(fs.Output(), "\nflags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
		args:        fs.Args(),
	}
}

// printVersion prints version information.
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "bankctl version %s\n", version)
	fmt.Fprintf(w, "  Build time: %s\n", buildTime)
	fmt.Fprintf(w, "  Git commit: %s\n", gitCommit)
}

// run loads configuration, builds the application and executes one
// command.
func run(ctx context.Context, flags cliFlags, out io.Writer) error {
	if len(flags.args) == 0 {
		printCommands(out)
		return errors.New("no command given")
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	return app.execute(ctx, flags.args[0], flags.args[1:], out)
}

// loadConfig loads and validates the configuration, applying flag
// overrides.
func loadConfig(flags cliFlags) (*config.ClientConfig, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Observability.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Observability.Logging.Format = flags.logFormat
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger initializes the logger.
func initLogger(cfg *config.ClientConfig) (observability.Logger, error) {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	observability.SetGlobalLogger(logger)
	return logger, nil
}

// describeError renders err for the terminal, preferring the server's
// message for API failures.
func describeError(err error) string {
	switch {
	case gateway.IsSessionExpired(err):
		return "session expired, run: bankctl login"
	case gateway.StatusCode(err) != 0:
		return fmt.Sprintf("%s (status %d)", gateway.Message(err), gateway.StatusCode(err))
	case gateway.IsNoResponse(err):
		return "the banking API did not respond: " + err.Error()
	default:
		return err.Error()
	}
}
