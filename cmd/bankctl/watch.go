package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/text/language"

	"github.com/vyrodovalexey/avabank/internal/bank"
	"github.com/vyrodovalexey/avabank/internal/config"
	"github.com/vyrodovalexey/avabank/internal/observability"
)

const defaultWatchInterval = 30 * time.Second

// runWatch prints the balance whenever it changes until ctx is cancelled
// or the session ends. With -metrics the gateway metrics are served while
// watching.
func runWatch(ctx context.Context, a *application, args []string, out io.Writer) error {
	fs := newFlagSet("watch")
	interval := fs.Duration("interval", defaultWatchInterval, "poll interval")
	count := fs.Int("count", 0, "stop after this many polls (0 polls until interrupted)")
	serveMetrics := fs.Bool("metrics",
		getEnvBool("BANK_METRICS_ENABLED", a.config.Observability.Metrics.Enabled),
		"serve Prometheus metrics while watching")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *interval <= 0 {
		return errors.New("interval must be positive")
	}

	if *serveMetrics {
		stop, err := a.startMetrics()
		if err != nil {
			return err
		}
		defer stop()
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	var last *bank.Account
	for polls := 0; ; {
		user, acct, err := a.currentAccount(ctx)
		if err != nil {
			return err
		}
		if last == nil || last.Deposit != acct.Deposit {
			fmt.Fprintf(out, "%s %s %s\n", time.Now().Format(time.TimeOnly), acct.AccountNumber,
				bank.FormatAmount(language.English, acct.Deposit))
			a.logger.Debug("balance changed",
				observability.String("email", user.Email),
				observability.Float64("balance", acct.Deposit),
			)
			last = &acct
		}

		polls++
		if *count > 0 && polls >= *count {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// startMetrics serves the gateway registry on the configured address and
// returns a function that stops the listener.
func (a *application) startMetrics() (func(), error) {
	addr := a.config.Observability.Metrics.Address
	if addr == "" {
		addr = config.DefaultMetricsAddr
	}
	srv := observability.NewMetricsServer(addr, a.metrics.Registry(), a.logger)

	bound, err := srv.Start()
	if err != nil {
		return nil, fmt.Errorf("start metrics server: %w", err)
	}
	a.logger.Info("serving metrics", observability.String("address", bound))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			a.logger.Warn("failed to stop metrics server", observability.Error(err))
		}
	}, nil
}
