// Package report renders a reconciliation report into the staff notification email.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"ledgersync/internal/reconcile"
	"ledgersync/internal/store"
)

//go:embed report.html.tmpl
var reportTemplate string

var tmpl = template.Must(template.New("report").Parse(reportTemplate))

// Options controls presentation details that are not part of the report data.
type Options struct {
	// AdminBaseURL, when set, turns emails and program ids into links to the admin pages.
	AdminBaseURL string
}

var descriptions = map[reconcile.Variant]string{
	reconcile.VariantAssignments: "Canvas assignment grades were checked against the canvas_grader table, which maps specific Canvas assignments to programs.",
	reconcile.VariantCourses:     "Canvas course completions were checked against the canvas_grader_courses table, which maps Canvas courses to programs.",
}

type view struct {
	Variant         reconcile.Variant
	Description     string
	DryRun          bool
	CoursesChecked  int
	AlreadyExisting int
	Inserted        int
	Added           []row
	NotFound        []row
}

type row struct {
	Email       string
	Name        string
	ProgramID   int64
	ProgramName string
	DateTaken   string
	UserURL     string
	ProgramURL  string
}

// Subject is the email subject line for r.
func Subject(r *reconcile.Report) string {
	subject := fmt.Sprintf("%d New Records Inserted (Canvas to Database)", r.Inserted())
	if r.DryRun {
		subject = "[DRY RUN] " + subject
	}
	return subject
}

// Render produces the HTML body for r. The summary is always present; the added and
// not-found tables appear only when they have rows.
func Render(r *reconcile.Report, opts Options) (string, error) {
	base := strings.TrimRight(opts.AdminBaseURL, "/")

	v := view{
		Variant:         r.Variant,
		Description:     descriptions[r.Variant],
		DryRun:          r.DryRun,
		CoursesChecked:  r.CoursesChecked,
		AlreadyExisting: r.AlreadyExisting,
		Inserted:        r.Inserted(),
	}

	for _, a := range r.Added {
		rw := row{
			Email:       a.Login,
			Name:        a.Name,
			ProgramID:   a.ProgramID,
			ProgramName: a.ProgramName,
			DateTaken:   a.CompletedAt.Format(store.DateTimeLayout),
		}
		if base != "" {
			rw.UserURL = fmt.Sprintf("%s/reports/faculty_transcript.php?id=%d", base, a.UserID)
			rw.ProgramURL = programURL(base, a.ProgramID)
		}
		v.Added = append(v.Added, rw)
	}

	for _, c := range r.NotFound {
		rw := row{
			Email:       c.Login,
			Name:        c.Name,
			ProgramID:   c.ProgramID,
			ProgramName: c.ProgramName,
		}
		if base != "" {
			rw.ProgramURL = programURL(base, c.ProgramID)
		}
		v.NotFound = append(v.NotFound, rw)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

func programURL(base string, programID int64) string {
	return fmt.Sprintf("%s/program_participants.php?id=%d", base, programID)
}
