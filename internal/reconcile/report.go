package reconcile

import (
	"time"

	"ledgersync/internal/completion"
)

// Variant names the completion signal a run reconciled.
type Variant string

const (
	VariantAssignments Variant = "assignments"
	VariantCourses     Variant = "courses"
)

// AddedRecord is a candidate that was (or, in dry-run, would have been) inserted.
type AddedRecord struct {
	completion.Candidate
	UserID int64
}

// Report is the outcome of one run. The engine fills it in as it goes.
type Report struct {
	RunID           string
	Variant         Variant
	DryRun          bool
	StartedAt       time.Time
	FinishedAt      time.Time
	Added           []AddedRecord
	NotFound        []completion.Candidate
	CoursesChecked  int
	AlreadyExisting int
	Failed          int

	courses map[int64]struct{}
}

func newReport(runID string, variant Variant, dryRun bool, started time.Time) *Report {
	return &Report{
		RunID:     runID,
		Variant:   variant,
		DryRun:    dryRun,
		StartedAt: started,
		courses:   make(map[int64]struct{}),
	}
}

func (r *Report) checkCourse(courseID int64) {
	if _, ok := r.courses[courseID]; ok {
		return
	}
	r.courses[courseID] = struct{}{}
	r.CoursesChecked = len(r.courses)
}

// Inserted is the number of new ledger rows.
func (r *Report) Inserted() int {
	return len(r.Added)
}

// Empty reports whether there is nothing worth notifying about.
func (r *Report) Empty() bool {
	return len(r.Added) == 0 && len(r.NotFound) == 0
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
