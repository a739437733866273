package reconcile

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Reason buckets a per-record failure for the batch report.
type Reason string

const (
	ReasonFetchTransient Reason = "fetch_transient"
	ReasonFetchPermanent Reason = "fetch_permanent"
	ReasonInvalid        Reason = "invalid"
	ReasonUnknownKind    Reason = "unknown_kind"
	ReasonStorage        Reason = "storage"
)

type (
	// Failure is one record that did not make it into storage. Every
	// failure keeps its id and reason; nothing is dropped silently.
	Failure struct {
		ID     string `json:"id"`
		Reason Reason `json:"reason"`
		Error  string `json:"error"`
	}

	// Counts tallies outcomes for one kind within a batch.
	Counts struct {
		Upserted int `json:"upserted"`
		Failed   int `json:"failed"`
	}

	// Report summarizes one reconciler run.
	Report struct {
		BatchID    string    `json:"batch_id"`
		StartedAt  time.Time `json:"started_at"`
		FinishedAt time.Time `json:"finished_at"`

		// Skipped is set when the run found a previous run still in
		// progress and backed off without touching storage.
		Skipped bool `json:"skipped"`

		Upserted []string          `json:"upserted"`
		Failures []Failure         `json:"failures"`
		Counts   map[string]Counts `json:"counts"`
	}
)

// reportBuilder accumulates a report while workers record outcomes
// concurrently.
type reportBuilder struct {
	mu  sync.Mutex
	rep Report
}

func newReportBuilder() *reportBuilder {
	return &reportBuilder{
		rep: Report{
			BatchID:   uuid.NewString(),
			StartedAt: time.Now().UTC(),
			Upserted:  []string{},
			Failures:  []Failure{},
			Counts:    map[string]Counts{},
		},
	}
}

func (b *reportBuilder) upserted(id, kind string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rep.Upserted = append(b.rep.Upserted, id)
	c := b.rep.Counts[kind]
	c.Upserted++
	b.rep.Counts[kind] = c
}

func (b *reportBuilder) failed(id, kind string, reason Reason, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	f := Failure{ID: id, Reason: reason}
	if err != nil {
		f.Error = err.Error()
	}
	b.rep.Failures = append(b.rep.Failures, f)

	c := b.rep.Counts[kind]
	c.Failed++
	b.rep.Counts[kind] = c
}

// finish stamps the end time and returns a copy safe to hand out.
func (b *reportBuilder) finish() Report {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rep.FinishedAt = time.Now().UTC()

	out := b.rep
	out.Upserted = append([]string{}, b.rep.Upserted...)
	out.Failures = append([]Failure{}, b.rep.Failures...)
	out.Counts = make(map[string]Counts, len(b.rep.Counts))
	for k, v := range b.rep.Counts {
		out.Counts[k] = v
	}

	return out
}
