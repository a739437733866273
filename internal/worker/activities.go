package worker

import (
	"context"
	"fmt"

	"github.com/molehill/hnmirror/internal/reconcile"
)

type activities struct {
	rec *reconcile.Reconciler
}

// RunBatch executes one reconciliation batch and hands the report back to
// the workflow.
func (a *activities) RunBatch(ctx context.Context) (reconcile.Report, error) {
	report, err := a.rec.Run(ctx)
	if err != nil {
		return reconcile.Report{}, fmt.Errorf("error running batch: %s", err)
	}

	return report, nil
}
