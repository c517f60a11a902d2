package notify

import (
	"context"
	"log/slog"

	"ledgersync/internal/reconcile"
	"ledgersync/internal/report"
)

// Notifier renders reports and hands them to a Mailer.
type Notifier struct {
	mailer  Mailer
	options report.Options
	logger  *slog.Logger
}

// New creates a notifier. A nil mailer disables delivery.
func New(mailer Mailer, options report.Options, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{mailer: mailer, options: options, logger: logger}
}

// Deliver sends the report for r unless there is nothing to report.
// It returns whether a message was handed to the mailer. Errors are logged, not returned:
// ledger writes are already committed and a failed email does not fail the run.
func (n *Notifier) Deliver(ctx context.Context, r *reconcile.Report) bool {
	log := n.logger.With("run_id", r.RunID, "variant", string(r.Variant))

	if r.Empty() {
		log.Info("Nothing to report, skipping notification")
		return false
	}
	if n.mailer == nil {
		log.Warn("No mailer configured, skipping notification")
		return false
	}

	body, err := report.Render(r, n.options)
	if err != nil {
		log.Error("Failed to render report", "error", err)
		return false
	}

	subject := report.Subject(r)
	if err := n.mailer.Send(ctx, subject, body); err != nil {
		log.Error("Error sending email", "error", err)
		return false
	}

	log.Info("Email sent", "subject", subject)
	return true
}
