// Hnmirror keeps a local copy of the public Hacker News corpus.
//
// It polls the recent-changes feed on an interval, fetches every changed
// item and profile, and upserts them into sqlite. A small ops API serves
// the mirrored entities and the last batch report.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/sethvargo/go-envconfig"
	"golang.org/x/sync/errgroup"

	"github.com/molehill/hnmirror/internal/hnclient"
	"github.com/molehill/hnmirror/internal/logger"
	"github.com/molehill/hnmirror/internal/migrations"
	"github.com/molehill/hnmirror/internal/reconcile"
	"github.com/molehill/hnmirror/internal/server"
	"github.com/molehill/hnmirror/internal/sqlite"
)

type config struct {
	Database  string `env:"DATABASE, required"`
	HNBaseURL string `env:"HN_BASE_URL, default=https://hacker-news.firebaseio.com/v0"`

	PollInterval time.Duration `env:"POLL_INTERVAL, default=15m"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT, default=10s"`
	FetchRetries int           `env:"FETCH_RETRIES, default=3"`
	SyncWorkers  int           `env:"SYNC_WORKERS, default=8"`

	Port int `env:"PORT, default=4444"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	// Determine which logger format to use
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, nil)
	if cfg.LoggerFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	l := slog.New(logger.NewContextHandler(handler))
	slog.SetDefault(l)

	// Start the application
	if err := run(ctx, cfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	slog.Info("running", "config", cfg)

	// Connect to the db
	dbx, err := sqlite.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("error opening database: %s", err)
	}
	defer dbx.Close()

	// Migrate, always
	if err := migrations.Run(dbx); err != nil {
		return fmt.Errorf("error migrating: %s", err)
	}

	repo := sqlite.New(dbx)
	cli := hnclient.New(cfg.HNBaseURL, cfg.FetchTimeout)
	rec := reconcile.New(reconcile.Config{
		FetchRetries: cfg.FetchRetries,
		Workers:      cfg.SyncWorkers,
	}, cli, repo)
	srv := server.New(server.Config{Port: cfg.Port}, repo, rec)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Start the ops server
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %s", err)
		}

		return nil
	})
	g.Go(func() error {
		// Block from shutting down until the group is canceled
		<-gCtx.Done()

		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(downCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}

		return nil
	})
	g.Go(func() error {
		// Run batches on the poll interval, starting with one right away
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()

		for {
			if _, err := rec.Run(gCtx); err != nil {
				slog.Error("error running batch", "error", err)
			}

			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("error running: %s", err)
	}

	return nil
}
