// Package main runs an in-memory banking API for local development and
// demos of bankctl.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/avabank/internal/observability"
	"github.com/vyrodovalexey/avabank/internal/stubapi"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

const shutdownTimeout = 10 * time.Second

// cliFlags holds command line flags.
type cliFlags struct {
	addr         string
	signingKey   string
	seedPassword string
	tokenTTL     time.Duration
	logLevel     string
	logFormat    string
	showVersion  bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		fmt.Printf("bankstub version %s\n", version)
		fmt.Printf("  Build time: %s\n", buildTime)
		fmt.Printf("  Git commit: %s\n", gitCommit)
		return
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	observability.SetGlobalLogger(logger)

	if flags.signingKey == "" {
		flags.signingKey = uuid.NewString()
		logger.Warn("no signing key configured, tokens will not survive a restart")
	}

	srv, err := stubapi.New(
		stubapi.WithLogger(logger),
		stubapi.WithSigningKey([]byte(flags.signingKey)),
		stubapi.WithTokenTTL(flags.tokenTTL),
	)
	if err != nil {
		fatalWithSync(logger, "failed to create stub API", observability.Error(err))
	}
	if err := srv.Seed(stubapi.DefaultSeedUsers(flags.seedPassword)); err != nil {
		fatalWithSync(logger, "failed to seed stub API", observability.Error(err))
	}

	addr, err := srv.Start(flags.addr)
	if err != nil {
		fatalWithSync(logger, "failed to start stub API", observability.Error(err))
	}
	logger.Info("stub API listening",
		observability.String("address", addr),
		observability.Duration("token_ttl", flags.tokenTTL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop stub API gracefully", observability.Error(err))
	}
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	addr := flag.String("addr", getEnvOrDefault("BANKSTUB_ADDR", "127.0.0.1:5000"), "Listen address")
	signingKey := flag.String("signing-key", getEnvOrDefault("BANKSTUB_SIGNING_KEY", ""),
		"HMAC key for session tokens, at least 16 bytes (random when empty)")
	seedPassword := flag.String("seed-password", getEnvOrDefault("BANKSTUB_SEED_PASSWORD", "password1"),
		"Password of the seeded users")
	tokenTTL := flag.Duration("token-ttl", stubapi.DefaultTokenTTL, "Session token lifetime")
	logLevel := flag.String("log-level", getEnvOrDefault("BANKSTUB_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("BANKSTUB_LOG_FORMAT", "console"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		addr:         *addr,
		signingKey:   *signingKey,
		seedPassword: *seedPassword,
		tokenTTL:     *tokenTTL,
		logLevel:     *logLevel,
		logFormat:    *logFormat,
		showVersion:  *showVersion,
	}
}

// fatalWithSync logs a fatal message after flushing buffered entries.
func fatalWithSync(logger observability.Logger, msg string, fields ...observability.Field) {
	_ = logger.Sync()
	logger.Fatal(msg, fields...)
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
