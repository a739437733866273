// Worker runs the mirror sync on a Temporal schedule instead of the
// in-process ticker.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"
	"go.temporal.io/sdk/client"
	temporalworker "go.temporal.io/sdk/worker"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/molehill/hnmirror/internal/hnclient"
	"github.com/molehill/hnmirror/internal/logger"
	"github.com/molehill/hnmirror/internal/migrations"
	"github.com/molehill/hnmirror/internal/reconcile"
	"github.com/molehill/hnmirror/internal/sqlite"
	"github.com/molehill/hnmirror/internal/worker"
)

type config struct {
	Database         string `env:"DATABASE, required"`
	TemporalHostPort string `env:"TEMPORAL_HOST_PORT, required"`

	HNBaseURL    string        `env:"HN_BASE_URL, default=https://hacker-news.firebaseio.com/v0"`
	PollInterval time.Duration `env:"POLL_INTERVAL, default=15m"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT, default=10s"`
	FetchRetries int           `env:"FETCH_RETRIES, default=3"`
	SyncWorkers  int           `env:"SYNC_WORKERS, default=8"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	l := slog.New(logger.NewContextHandler(slog.NewTextHandler(os.Stdout, nil)))
	slog.SetDefault(l)

	// Connect to the sqlite db
	dbx, err := sqlite.Open(cfg.Database)
	if err != nil {
		log.Fatalf("error opening database: %s", err)
	}
	defer dbx.Close()

	// Run all migrations
	if err := migrations.Run(dbx); err != nil {
		log.Fatalf("error running migrations: %s", err)
	}

	repo := sqlite.New(dbx)
	cli := hnclient.New(cfg.HNBaseURL, cfg.FetchTimeout)
	rec := reconcile.New(reconcile.Config{
		FetchRetries: cfg.FetchRetries,
		Workers:      cfg.SyncWorkers,
	}, cli, repo)

	// Retry until temporal is ready
	var temporalCli client.Client
	if err := retry.Fibonacci(ctx, 1*time.Second, func(ctx context.Context) error {
		c, err := client.Dial(client.Options{
			HostPort: cfg.TemporalHostPort,
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		temporalCli = c

		return nil
	}); err != nil {
		log.Fatalln("Unable to create Temporal client:", err)
	}
	defer temporalCli.Close()

	if err := worker.EnsureDefaultNamespace(ctx, temporalCli.WorkflowService()); err != nil {
		log.Fatalf("error ensuring namespace: %s", err)
	}

	w, err := worker.NewWorker(ctx, rec, temporalCli, cfg.PollInterval)
	if err != nil {
		log.Fatalf("error setting up worker: %s", err)
	}

	if err := w.Run(temporalworker.InterruptCh()); err != nil {
		log.Fatalf("error running worker: %s", err)
	}
}
