package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"ledgersync/internal/canvas"
	"ledgersync/internal/config"
	"ledgersync/internal/logger"
	"ledgersync/internal/notify"
	"ledgersync/internal/observability"
	"ledgersync/internal/reconcile"
	"ledgersync/internal/report"
	"ledgersync/internal/status"
	"ledgersync/internal/store/sqlstore"
)

// newMailer builds the email sink. Tests replace it.
var newMailer = func(cfg *config.Config) (notify.Mailer, error) {
	return notify.NewSendGrid(cfg.Email.SendGridAPIKey, cfg.Email.From, cfg.Email.To)
}

// app wires the components a reconciliation command needs.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	store    *sqlstore.Store
	engine   *reconcile.Engine
	notifier *notify.Notifier
	out      io.Writer

	shutdownTracer func(context.Context) error
}

func newApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateCanvas(); err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	var mailer notify.Mailer
	if err := cfg.ValidateEmail(); err != nil {
		if !cfg.DryRun {
			return nil, err
		}
		log.Warn("Email settings incomplete, reports will only be logged", "error", err)
	} else {
		mailer, err = newMailer(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create mailer: %w", err)
		}
	}

	st, err := sqlstore.Open(ctx, sqlstore.Dialect(cfg.Database.Driver), cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	shutdownTracer, err := observability.InitTracer(ctx, "ledgersync", cfg.OTELEndpoint)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	client := canvas.New(canvas.Config{
		BaseURL:   cfg.Canvas.BaseURL,
		Token:     cfg.Canvas.Token,
		Timeout:   cfg.Canvas.Timeout,
		RateLimit: cfg.Canvas.RateLimit,
	})

	engine := reconcile.New(st, client, reconcile.Config{
		DryRun:         cfg.DryRun,
		ProfileWorkers: cfg.Canvas.ProfileWorkers,
		Location:       loc,
	}, log)

	return &app{
		cfg:            cfg,
		log:            log,
		store:          st,
		engine:         engine,
		notifier:       notify.New(mailer, report.Options{AdminBaseURL: cfg.Report.AdminBaseURL}, log),
		out:            cmd.OutOrStdout(),
		shutdownTracer: shutdownTracer,
	}, nil
}

func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.shutdownTracer(ctx); err != nil {
		a.log.Warn("Failed to shutdown tracer", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close database", "error", err)
	}
}

// reconcile runs one variant, notifies staff and records the outcome on board when set.
// A report that is returned together with an error is partial but its rows were written,
// so it is still delivered.
func (a *app) reconcile(ctx context.Context, variant reconcile.Variant, board *status.Board) error {
	var (
		r   *reconcile.Report
		err error
	)
	switch variant {
	case reconcile.VariantAssignments:
		r, err = a.engine.RunAssignments(ctx)
	case reconcile.VariantCourses:
		r, err = a.engine.RunCourses(ctx)
	default:
		return fmt.Errorf("unknown variant %q", variant)
	}

	if err != nil {
		a.log.Error("Reconciliation failed", "variant", string(variant), "error", err)
	}

	notified := false
	if r != nil {
		// Mail goes out even when the run was cancelled; use a fresh context for it.
		notified = a.notifier.Deliver(context.WithoutCancel(ctx), r)
		fmt.Fprintf(a.out, "%s: %d inserted, %d not found, %d already existing, %d courses checked%s\n",
			variant, r.Inserted(), len(r.NotFound), r.AlreadyExisting, r.CoursesChecked, dryRunSuffix(r.DryRun))
	}

	if board != nil {
		board.Record(variant, r, err, notified)
	}
	return err
}

// reconcileAll runs both variants; a failure in one does not stop the other.
func (a *app) reconcileAll(ctx context.Context, board *status.Board) error {
	var errs []error
	for _, variant := range []reconcile.Variant{reconcile.VariantAssignments, reconcile.VariantCourses} {
		if err := a.reconcile(ctx, variant, board); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", variant, err))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

func dryRunSuffix(dryRun bool) string {
	if dryRun {
		return " (dry run)"
	}
	return ""
}
