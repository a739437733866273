// Package worker runs the mirror's sync on a Temporal schedule, for
// deployments that already have a Temporal server around. The schedule
// skips overlapping triggers; the reconciler's own run lock backs that up
// in-process.
package worker

import (
	"context"
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/molehill/hnmirror/internal/reconcile"
)

const TaskQueue = "hnmirror"

// NewWorker sets up the worker with registration of workflows, activities,
// and the sync schedule.
func NewWorker(ctx context.Context, rec *reconcile.Reconciler, cli client.Client, interval time.Duration) (worker.Worker, error) {
	a := activities{
		rec: rec,
	}

	w := worker.New(cli, TaskQueue, worker.Options{})

	if err := registerEverything(ctx, w, a, cli, interval); err != nil {
		return nil, fmt.Errorf("error registering workflows and activities: %s", err)
	}

	return w, nil
}

func registerEverything(ctx context.Context, w worker.Worker, a activities, cli client.Client, interval time.Duration) error {
	// Workflows
	wfs := workflows{}
	w.RegisterWorkflow(wfs.SyncAll)

	// Activities
	w.RegisterActivity(&a)

	// Schedule the periodic sync unless it already exists.
	handle := cli.ScheduleClient().GetHandle(ctx, "sync_all")
	if _, err := handle.Describe(ctx); err != nil {
		_, err = cli.ScheduleClient().Create(ctx, client.ScheduleOptions{
			ID: "sync_all",
			Spec: client.ScheduleSpec{
				Intervals: []client.ScheduleIntervalSpec{{Every: interval}},
			},
			Action: &client.ScheduleWorkflowAction{
				ID:        "sync_all",
				Workflow:  wfs.SyncAll,
				TaskQueue: TaskQueue,
			},
			// A slow batch must not stack a second one on top of it.
			Overlap:            enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
			TriggerImmediately: true,
		})
		if err != nil {
			return fmt.Errorf("error creating sync schedule: %s", err)
		}
	}

	return nil
}
