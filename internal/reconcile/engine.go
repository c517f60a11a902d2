// Package reconcile compares Canvas completions against the faculty_program ledger
// and inserts the rows that are missing.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata"

	"ledgersync/internal/canvas"
	"ledgersync/internal/completion"
	"ledgersync/internal/logger"
	"ledgersync/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultTimezone is the zone grading timestamps are recorded in.
const DefaultTimezone = "America/Los_Angeles"

// Remote is the subset of the Canvas API the engine reads.
type Remote interface {
	Submissions(ctx context.Context, courseID, assignmentID int64) ([]canvas.Submission, error)
	Profile(ctx context.Context, userID int64) (canvas.Profile, error)
	Enrollments(ctx context.Context, courseID int64) ([]canvas.Enrollment, error)
}

// Config holds the engine settings.
type Config struct {
	// DryRun suppresses every ledger write; the report is still complete.
	DryRun bool
	// ProfileWorkers bounds concurrent profile lookups (default: 10).
	ProfileWorkers int
	// Location is the zone grading timestamps are converted to (default: America/Los_Angeles).
	Location *time.Location
}

// Engine runs reconciliation sweeps. A sweep is best-effort: a failing rule or
// candidate is logged and skipped.
type Engine struct {
	sessions store.SessionFactory
	remote   Remote
	config   Config
	logger   *slog.Logger
	metrics  *engineMetrics
	tracer   trace.Tracer
	now      func() time.Time
}

// New creates an engine.
func New(sessions store.SessionFactory, remote Remote, config Config, log *slog.Logger) *Engine {
	if config.ProfileWorkers <= 0 {
		config.ProfileWorkers = 10
	}

	if config.Location == nil {
		loc, err := time.LoadLocation(DefaultTimezone)
		if err != nil {
			loc = time.UTC
		}
		config.Location = loc
	}

	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		sessions: sessions,
		remote:   remote,
		config:   config,
		logger:   log,
		metrics:  newEngineMetrics(),
		tracer:   otel.Tracer(instrumentationName),
		now:      time.Now,
	}
}

// run is the state of a single sweep.
type run struct {
	report   *Report
	ledger   store.Ledger
	resolver *Resolver
	log      *slog.Logger
	// written holds pairs inserted (or that would have been, in dry-run) during this sweep.
	written map[pair]struct{}
}

type pair struct {
	userID    int64
	programID int64
}

// RunAssignments reconciles every active grader rule.
func (e *Engine) RunAssignments(ctx context.Context) (*Report, error) {
	return e.sweep(ctx, VariantAssignments, func(ctx context.Context, sess store.Session, r *run) error {
		rules, err := sess.GraderRules(ctx)
		if err != nil {
			return fmt.Errorf("load grader rules: %w", err)
		}
		r.log.Info("Loaded grader rules", "count", len(rules))

		for _, rule := range rules {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.graderRule(ctx, r, rule)
		}
		return nil
	})
}

// RunCourses reconciles every course rule.
func (e *Engine) RunCourses(ctx context.Context) (*Report, error) {
	return e.sweep(ctx, VariantCourses, func(ctx context.Context, sess store.Session, r *run) error {
		rules, err := sess.CourseRules(ctx)
		if err != nil {
			return fmt.Errorf("load course rules: %w", err)
		}
		r.log.Info("Loaded course rules", "count", len(rules))

		for _, rule := range rules {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.courseRule(ctx, r, rule)
		}
		return nil
	})
}

func (e *Engine) sweep(ctx context.Context, variant Variant, body func(context.Context, store.Session, *run) error) (*Report, error) {
	runID := logger.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logger.WithRunID(ctx, runID)
	}
	log := logger.FromContext(ctx, e.logger).With("variant", string(variant))

	report := newReport(runID, variant, e.config.DryRun, e.now())
	log.Info("Reconciliation started", "dry_run", e.config.DryRun)
	if e.config.DryRun {
		log.Info("Running in dry-run mode. No records will be inserted into the database.")
	}

	ctx, span := e.tracer.Start(ctx, "reconcile."+string(variant),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Bool("dry_run", e.config.DryRun),
		),
	)
	defer span.End()

	sess, err := e.sessions.Session(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session")
		return nil, fmt.Errorf("open ledger session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("Failed to release ledger session", "error", err)
		}
	}()

	r := &run{
		report:   report,
		ledger:   sess,
		resolver: NewResolver(sess),
		log:      log,
		written:  make(map[pair]struct{}),
	}

	err = body(ctx, sess, r)
	report.FinishedAt = e.now()

	log.Info("Reconciliation finished",
		"courses_checked", report.CoursesChecked,
		"already_existing", report.AlreadyExisting,
		"inserted", report.Inserted(),
		"not_found", len(report.NotFound),
		"failed", report.Failed,
		"duration", report.Duration().String(),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}
	return report, nil
}

func (e *Engine) graderRule(ctx context.Context, r *run, rule store.GraderRule) {
	ctx, span := e.tracer.Start(ctx, "reconcile.grader_rule", trace.WithAttributes(
		attribute.Int64("rule.id", rule.ID),
		attribute.Int64("course.id", rule.CourseID),
		attribute.Int64("assignment.id", rule.AssignmentID),
		attribute.Int64("program.id", rule.ProgramID),
	))
	defer span.End()

	log := r.log.With("assignment_id", rule.AssignmentID, "course_id", rule.CourseID, "program_id", rule.ProgramID)
	log.Debug("Checking assignment", "name", rule.Name, "min_points", rule.MinPoints)

	r.report.checkCourse(rule.CourseID)
	e.metrics.rule(ctx, VariantAssignments)

	subs, err := e.remote.Submissions(ctx, rule.CourseID, rule.AssignmentID)
	if err != nil {
		span.RecordError(err)
		e.metrics.fetchError(ctx, VariantAssignments)
		log.Warn("Skipping assignment after fetch error", "error", err)
		return
	}

	candidates := completion.FromSubmissions(subs, rule, e.config.Location)
	if len(candidates) == 0 {
		return
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ExternalUserID
	}
	profiles := e.fetchProfiles(ctx, log, ids)

	for i, c := range candidates {
		c.Login = completion.NormalizeLogin(profiles[i].LoginID)
		c.Name = profiles[i].ShortName
		e.reconcile(ctx, r, VariantAssignments, c)
	}
}

func (e *Engine) courseRule(ctx context.Context, r *run, rule store.CourseRule) {
	ctx, span := e.tracer.Start(ctx, "reconcile.course_rule", trace.WithAttributes(
		attribute.Int64("course.id", rule.CourseID),
		attribute.Int64("program.id", rule.ProgramID),
	))
	defer span.End()

	log := r.log.With("course_id", rule.CourseID, "program_id", rule.ProgramID)

	r.report.checkCourse(rule.CourseID)
	e.metrics.rule(ctx, VariantCourses)

	enrollments, err := e.remote.Enrollments(ctx, rule.CourseID)
	if err != nil {
		span.RecordError(err)
		e.metrics.fetchError(ctx, VariantCourses)
		log.Warn("Skipping course after fetch error", "error", err)
		return
	}

	candidates := completion.FromEnrollments(enrollments, rule)
	log.Info("Checked course", "enrollments", len(enrollments), "completed", len(candidates))

	for _, c := range candidates {
		e.reconcile(ctx, r, VariantCourses, c)
	}
}

// fetchProfiles looks up profiles concurrently. profiles[i] belongs to ids[i];
// a failed lookup leaves the zero Profile, whose empty login is later excluded.
func (e *Engine) fetchProfiles(ctx context.Context, log *slog.Logger, ids []int64) []canvas.Profile {
	profiles := make([]canvas.Profile, len(ids))

	var g errgroup.Group
	g.SetLimit(e.config.ProfileWorkers)
	for i, id := range ids {
		g.Go(func() error {
			p, err := e.remote.Profile(ctx, id)
			if err != nil {
				log.Warn("Skipping user after profile error", "canvas_user_id", id, "error", err)
				return nil
			}
			profiles[i] = p
			return nil
		})
	}
	_ = g.Wait()

	return profiles
}

// reconcile moves one candidate through resolve → exists → insert.
func (e *Engine) reconcile(ctx context.Context, r *run, variant Variant, c completion.Candidate) {
	log := r.log.With("email", c.Login, "program_id", c.ProgramID)

	userID, outcome, err := r.resolver.Resolve(ctx, c.Login)
	if err != nil {
		r.report.Failed++
		e.metrics.outcome(ctx, variant, "failed")
		log.Error("User lookup failed", "error", err)
		return
	}

	switch outcome {
	case OutcomeExcluded:
		e.metrics.outcome(ctx, variant, OutcomeExcluded.String())
		log.Debug("Skipping login without @", "canvas_user_id", c.ExternalUserID)
		return
	case OutcomeNotFound:
		r.report.NotFound = append(r.report.NotFound, c)
		e.metrics.outcome(ctx, variant, OutcomeNotFound.String())
		log.Info("No user found with email")
		return
	}

	key := pair{userID: userID, programID: c.ProgramID}
	count, err := r.ledger.CountCompletions(ctx, userID, c.ProgramID)
	if err != nil {
		r.report.Failed++
		e.metrics.outcome(ctx, variant, "failed")
		log.Error("Existence check failed", "user_id", userID, "error", err)
		return
	}
	if _, seen := r.written[key]; count > 0 || seen {
		r.report.AlreadyExisting++
		e.metrics.outcome(ctx, variant, "already_exists")
		log.Info("Record already exists", "user_id", userID)
		return
	}

	record := store.Completion{
		UserID:    userID,
		ProgramID: c.ProgramID,
		Completed: true,
		DateTaken: c.CompletedAt,
	}

	if e.config.DryRun {
		log.Info("Dry run: record not inserted", "user_id", userID, "sql", record.InsertPreview())
	} else {
		if err := r.ledger.InsertCompletion(ctx, record); err != nil {
			r.report.Failed++
			e.metrics.outcome(ctx, variant, "failed")
			log.Error("Insert failed", "user_id", userID, "error", err)
			return
		}
		log.Info("Inserted record",
			"user_id", userID,
			"program_name", c.ProgramName,
			"date_taken", c.CompletedAt.Format(store.DateTimeLayout),
		)
	}

	r.written[key] = struct{}{}
	r.report.Added = append(r.report.Added, AddedRecord{Candidate: c, UserID: userID})
	e.metrics.outcome(ctx, variant, "inserted")
}
