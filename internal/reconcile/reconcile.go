// Package reconcile contains the batch engine that keeps the mirror in
// step with the source: it polls the recent-changes feed, fetches every
// changed entity through a bounded worker pool, classifies and validates
// it, and upserts it through the storage gateway. One bad record never
// aborts a batch.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/molehill/hnmirror/internal/hnclient"
	"github.com/molehill/hnmirror/internal/hnmirror"
	"github.com/molehill/hnmirror/internal/logger"
)

type (
	// Source is the slice of the external API the engine consumes: one
	// changes poll plus per-entity fetches.
	Source interface {
		Updates(ctx context.Context) (hnmirror.Changes, error)
		Item(ctx context.Context, id int64) (hnclient.ItemPayload, error)
		User(ctx context.Context, handle string) (hnclient.UserPayload, error)
	}

	Config struct {
		// FetchRetries is the total number of attempts per record for
		// transient fetch failures.
		FetchRetries int
		// Workers bounds how many records are fetched concurrently.
		Workers int
		// RetryBase is the initial backoff between fetch attempts.
		RetryBase time.Duration
	}

	// Reconciler runs one batch at a time against a source and a
	// repository.
	Reconciler struct {
		cfg  Config
		src  Source
		repo hnmirror.Repository

		// Held for the duration of a run; an overlapping trigger skips
		// instead of double-processing.
		running sync.Mutex

		last atomic.Pointer[Report]
	}
)

func New(cfg Config, src Source, repo hnmirror.Repository) *Reconciler {
	if cfg.FetchRetries <= 0 {
		cfg.FetchRetries = 3
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 250 * time.Millisecond
	}

	return &Reconciler{
		cfg:  cfg,
		src:  src,
		repo: repo,
	}
}

// LastReport returns the report of the most recently finished run, or nil
// if no run has completed yet.
func (r *Reconciler) LastReport() *Report {
	return r.last.Load()
}

// Run executes one batch and returns its report.
//
// The scheduler that triggers runs is allowed to misfire and overlap; a
// run that finds a previous one still in progress returns a skipped report
// without touching storage. A feed failure is a no-op batch, never an
// error to the caller: the next tick retries.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	if !r.running.TryLock() {
		slog.Warn("previous run still in progress, skipping")
		rep := newReportBuilder()
		rep.rep.Skipped = true
		return rep.finish(), nil
	}
	defer r.running.Unlock()

	rep := newReportBuilder()
	ctx = logger.Ctx(ctx, slog.String("batch_id", rep.rep.BatchID))
	slog.InfoContext(ctx, "starting batch")

	changes, err := r.src.Updates(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "changes feed unavailable, emitting empty batch", "error", err)
		report := rep.finish()
		r.last.Store(&report)
		return report, nil
	}

	// Profiles first, then items: an item's author has a better chance of
	// already being mirrored when the item lands.
	r.forEach(ctx, len(changes.Profiles), func(ctx context.Context, i int) {
		r.syncProfile(ctx, rep, changes.Profiles[i])
	})
	r.forEach(ctx, len(changes.Items), func(ctx context.Context, i int) {
		r.syncItem(ctx, rep, changes.Items[i])
	})

	report := rep.finish()
	r.last.Store(&report)
	slog.InfoContext(ctx, "batch finished",
		"upserted", len(report.Upserted),
		"failed", len(report.Failures),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)

	return report, nil
}

// forEach fans n independent records out over the bounded worker pool.
// Cancellation is honored between records: nothing new is scheduled once
// the context is done, and in-flight fetches are abandoned safely because
// upserts are atomic.
func (r *Reconciler) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)

	for i := range n {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fn(ctx, i)
			return nil
		})
	}

	// Workers never return errors; they record outcomes on the report.
	_ = g.Wait()
}

func (r *Reconciler) syncProfile(ctx context.Context, rep *reportBuilder, handle string) {
	payload, err := r.fetchUser(ctx, handle)
	if errors.Is(err, hnclient.ErrNotFound) {
		// Users have no tombstone on the source side; a vanished profile
		// is just not updated.
		slog.Debug("profile gone at source, skipping", "handle", handle)
		return
	}
	if err != nil {
		rep.failed(handle, "user", fetchReason(err), err)
		return
	}

	user, err := classifyUser(handle, payload)
	if err != nil {
		rep.failed(handle, "user", ReasonInvalid, err)
		return
	}

	if err := r.upsertUser(ctx, user); err != nil {
		rep.failed(handle, "user", ReasonStorage, err)
		return
	}
	rep.upserted(handle, "user")
}

func (r *Reconciler) syncItem(ctx context.Context, rep *reportBuilder, id int64) {
	recID := strconv.FormatInt(id, 10)

	payload, err := r.fetchItem(ctx, id)
	if errors.Is(err, hnclient.ErrNotFound) {
		r.tombstone(ctx, rep, id, recID)
		return
	}
	if err != nil {
		rep.failed(recID, "unknown", fetchReason(err), err)
		return
	}

	item, err := classifyItem(id, payload)
	if errors.Is(err, ErrUnknownKind) {
		rep.failed(recID, "unknown", ReasonUnknownKind, err)
		return
	}
	if err != nil {
		rep.failed(recID, payload.Type, ReasonInvalid, err)
		return
	}

	err = r.upsertItem(ctx, item)
	if errors.Is(err, hnmirror.ErrKindChanged) {
		// Kind is immutable; the stored record wins.
		rep.failed(recID, string(item.Kind), ReasonInvalid, err)
		return
	}
	if err != nil {
		rep.failed(recID, string(item.Kind), ReasonStorage, err)
		return
	}
	rep.upserted(recID, string(item.Kind))
}

// tombstone soft-deletes a record the source no longer serves, but only if
// we ever mirrored it; an id that was never fetched successfully is just
// skipped.
func (r *Reconciler) tombstone(ctx context.Context, rep *reportBuilder, id int64, recID string) {
	var exists bool
	err := r.storageRetry(func() error {
		var err error
		exists, err = r.repo.ItemExists(ctx, id)
		return err
	})
	if err != nil {
		rep.failed(recID, "tombstone", ReasonStorage, err)
		return
	}
	if !exists {
		slog.Debug("gone at source and never mirrored, skipping", "id", id)
		return
	}

	if err := r.storageRetry(func() error {
		return r.repo.MarkItemDeleted(ctx, id)
	}); err != nil {
		rep.failed(recID, "tombstone", ReasonStorage, err)
		return
	}
	rep.upserted(recID, "tombstone")
}

func (r *Reconciler) fetchItem(ctx context.Context, id int64) (hnclient.ItemPayload, error) {
	var payload hnclient.ItemPayload
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		p, err := r.src.Item(ctx, id)
		if hnclient.IsTransient(err) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}

		payload = p
		return nil
	})

	return payload, err
}

func (r *Reconciler) fetchUser(ctx context.Context, handle string) (hnclient.UserPayload, error) {
	var payload hnclient.UserPayload
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		p, err := r.src.User(ctx, handle)
		if hnclient.IsTransient(err) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}

		payload = p
		return nil
	})

	return payload, err
}

// backoff returns a fresh per-record backoff: exponential, bounded at the
// configured number of total attempts.
func (r *Reconciler) backoff() retry.Backoff {
	return retry.WithMaxRetries(uint64(r.cfg.FetchRetries-1), retry.NewExponential(r.cfg.RetryBase))
}

func (r *Reconciler) upsertItem(ctx context.Context, item hnmirror.Item) error {
	return r.storageRetry(func() error {
		return r.repo.UpsertItem(ctx, item)
	})
}

func (r *Reconciler) upsertUser(ctx context.Context, user hnmirror.User) error {
	return r.storageRetry(func() error {
		return r.repo.UpsertUser(ctx, user)
	})
}

// storageRetry runs a storage operation, treating any failure as transient
// and retrying it once before giving up on the record. A kind conflict is
// deterministic and never retried.
func (r *Reconciler) storageRetry(fn func() error) error {
	err := fn()
	if err == nil || errors.Is(err, hnmirror.ErrKindChanged) {
		return err
	}

	slog.Warn("retrying storage operation", "error", err)
	return fn()
}

func fetchReason(err error) Reason {
	if hnclient.IsPermanent(err) {
		return ReasonFetchPermanent
	}
	return ReasonFetchTransient
}
