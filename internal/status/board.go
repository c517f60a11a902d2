package status

import (
	"sort"
	"sync"

	"ledgersync/internal/reconcile"
	"ledgersync/pkg/api"
)

// Board keeps the latest run summary per variant. It is safe for concurrent use.
type Board struct {
	mu   sync.RWMutex
	last map[string]api.RunSummary
}

func NewBoard() *Board {
	return &Board{last: make(map[string]api.RunSummary)}
}

// Record stores the outcome of a run. r may be nil when the run failed before
// producing a report, in which case variant identifies it.
func (b *Board) Record(variant reconcile.Variant, r *reconcile.Report, runErr error, notified bool) {
	summary := api.RunSummary{Variant: string(variant), Notified: notified}
	if r != nil {
		summary.RunID = r.RunID
		summary.DryRun = r.DryRun
		summary.StartedAt = r.StartedAt
		summary.FinishedAt = r.FinishedAt
		summary.DurationSeconds = r.Duration().Seconds()
		summary.Inserted = r.Inserted()
		summary.NotFound = len(r.NotFound)
		summary.AlreadyExisting = r.AlreadyExisting
		summary.Failed = r.Failed
		summary.CoursesChecked = r.CoursesChecked
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}

	b.mu.Lock()
	b.last[summary.Variant] = summary
	b.mu.Unlock()
}

// Snapshot returns the stored summaries ordered by variant.
func (b *Board) Snapshot() []api.RunSummary {
	b.mu.RLock()
	defer b.mu.RUnlock()

	runs := make([]api.RunSummary, 0, len(b.last))
	for _, s := range b.last {
		runs = append(runs, s)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Variant < runs[j].Variant })
	return runs
}
