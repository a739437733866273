package worker

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/molehill/hnmirror/internal/reconcile"
)

type workflows struct{}

// Instance to make the workflow a bit more readable
var acts = activities{}

// SyncAll runs one reconciliation batch. The activity carries its own
// per-record retry and overlap protection, so Temporal only retries when
// the whole activity dies.
func (workflows) SyncAll(ctx workflow.Context) error {
	options := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3, // 0 is unlimited retries
		},
	}
	ctx = workflow.WithActivityOptions(ctx, options)

	var report reconcile.Report
	if err := workflow.ExecuteActivity(ctx, acts.RunBatch).Get(ctx, &report); err != nil {
		return err
	}

	workflow.GetLogger(ctx).Info("batch finished",
		"batch_id", report.BatchID,
		"upserted", len(report.Upserted),
		"failed", len(report.Failures),
		"skipped", report.Skipped,
	)

	return nil
}
