package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"ledgersync/internal/config"
	"ledgersync/internal/notify"
	"ledgersync/internal/store/sqlstore"
)

// resetFlags clears flag state left over from earlier Execute calls.
func resetFlags() {
	cfgFile = ""
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

type sentMail struct {
	subject string
	body    string
}

type mockMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *mockMailer) Send(ctx context.Context, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{subject: subject, body: htmlBody})
	return nil
}

// useMockMailer swaps the SendGrid sink for the duration of the test.
func useMockMailer(t *testing.T) *mockMailer {
	t.Helper()
	mailer := &mockMailer{}
	orig := newMailer
	newMailer = func(cfg *config.Config) (notify.Mailer, error) { return mailer, nil }
	t.Cleanup(func() { newMailer = orig })
	return mailer
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// newCanvas serves one grader rule's submissions and the matching profiles.
func newCanvas(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/courses/9001/assignments/501/submissions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `[
			{"id": 1, "user_id": 1, "score": 85, "graded_at": "2024-01-10T08:00:00Z"},
			{"id": 2, "user_id": 2, "score": 70, "graded_at": "2024-01-10T08:00:00Z"},
			{"id": 3, "user_id": 3, "score": 95, "graded_at": "2024-01-11T20:00:00Z"}
		]`)
	})
	mux.HandleFunc("GET /api/v1/users/{id}/profile", func(w http.ResponseWriter, r *http.Request) {
		logins := map[string]string{"1": "A@X.edu", "2": "b@x.edu", "3": "nobody@x.edu"}
		json.NewEncoder(w).Encode(map[string]any{
			"login_id":   logins[r.PathValue("id")],
			"short_name": "User " + r.PathValue("id"),
		})
	})
	mux.HandleFunc("GET /api/v1/courses/{id}/enrollments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// setupLedger points the config at a fresh sqlite ledger, migrates it through the
// CLI and seeds one grader rule.
func setupLedger(t *testing.T, canvasURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")

	t.Setenv("LEDGERSYNC_DATABASE_DRIVER", "sqlite")
	t.Setenv("LEDGERSYNC_DATABASE_PATH", path)
	t.Setenv("LEDGERSYNC_CANVAS_BASE_URL", canvasURL+"/api/v1")
	t.Setenv("LEDGERSYNC_CANVAS_TOKEN", "test-token")
	t.Setenv("LEDGERSYNC_EMAIL_SENDGRID_API_KEY", "SG.test")
	t.Setenv("LEDGERSYNC_EMAIL_FROM", "noreply@x.edu")
	t.Setenv("LEDGERSYNC_EMAIL_TO", "ops@x.edu")
	t.Setenv("LEDGERSYNC_LOG_FORMAT", "text")

	out, err := execute(t, "migrate")
	if err != nil {
		t.Fatalf("migrate failed: %v\n%s", err, out)
	}

	st, err := sqlstore.Open(context.Background(), sqlstore.SQLite, path)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	defer st.Close()
	for _, stmt := range []string{
		"INSERT INTO users (id, email) VALUES (42, 'a@x.edu')",
		"INSERT INTO programs (id, Long_Name) VALUES (5, 'Online Teaching Certificate')",
		"INSERT INTO canvas_grader (name, assignment_id, course_id, points, program_id, active) VALUES ('Final Quiz', 501, 9001, 80, 5, 1)",
	} {
		if _, err := st.DB().Exec(stmt); err != nil {
			t.Fatalf("failed to seed ledger: %v", err)
		}
	}
	return path
}

func countCompletions(t *testing.T, path string) int {
	t.Helper()
	st, err := sqlstore.Open(context.Background(), sqlstore.SQLite, path)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	defer st.Close()

	var n int
	if err := st.DB().QueryRow("SELECT COUNT(*) FROM faculty_program").Scan(&n); err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	return n
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	want := map[string]bool{"assignments": false, "courses": false, "run": false, "watch": false, "migrate": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected %q subcommand to be registered with root command", name)
		}
	}
}

func TestRootCommand_Help(t *testing.T) {
	out, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("root command should execute without error: %v", err)
	}
	if !strings.Contains(out, "LEDGERSYNC_CANVAS_TOKEN") {
		t.Errorf("expected help to document env vars, got: %s", out)
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	resetFlags()
	rootCmd.SetArgs([]string{"unknown-command-xyz"})
	if err := Execute(); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestAssignmentsCommand_MissingToken(t *testing.T) {
	t.Setenv("LEDGERSYNC_DATABASE_DRIVER", "sqlite")
	t.Setenv("LEDGERSYNC_DATABASE_PATH", filepath.Join(t.TempDir(), "ledger.db"))
	t.Setenv("LEDGERSYNC_CANVAS_TOKEN", "")

	_, err := execute(t, "assignments")
	if err == nil || !strings.Contains(err.Error(), "LEDGERSYNC_CANVAS_TOKEN") {
		t.Errorf("expected missing token error, got %v", err)
	}
}

func TestAssignmentsCommand_RequiresEmailUnlessDryRun(t *testing.T) {
	srv := newCanvas(t)
	setupLedger(t, srv.URL)
	t.Setenv("LEDGERSYNC_EMAIL_TO", "")

	_, err := execute(t, "assignments")
	if err == nil || !strings.Contains(err.Error(), "email.to is required") {
		t.Errorf("expected missing recipients error, got %v", err)
	}
}

func TestAssignmentsCommand_EndToEnd(t *testing.T) {
	mailer := useMockMailer(t)
	srv := newCanvas(t)
	path := setupLedger(t, srv.URL)

	out, err := execute(t, "assignments")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "assignments: 1 inserted, 1 not found, 0 already existing, 1 courses checked") {
		t.Errorf("unexpected summary: %s", out)
	}
	if n := countCompletions(t, path); n != 1 {
		t.Errorf("expected 1 ledger row, got %d", n)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(mailer.sent))
	}
	if mailer.sent[0].subject != "1 New Records Inserted (Canvas to Database)" {
		t.Errorf("unexpected subject: %s", mailer.sent[0].subject)
	}
	if !strings.Contains(mailer.sent[0].body, "nobody@x.edu") {
		t.Error("expected not-found login in email body")
	}

	// A second run finds the row and still reports the unmatched login.
	out, err = execute(t, "assignments")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "assignments: 0 inserted, 1 not found, 1 already existing") {
		t.Errorf("unexpected summary on second run: %s", out)
	}
	if n := countCompletions(t, path); n != 1 {
		t.Errorf("expected ledger to stay at 1 row, got %d", n)
	}
}

func TestAssignmentsCommand_DryRun(t *testing.T) {
	mailer := useMockMailer(t)
	srv := newCanvas(t)
	path := setupLedger(t, srv.URL)

	out, err := execute(t, "assignments", "--dry-run")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 inserted") || !strings.Contains(out, "(dry run)") {
		t.Errorf("unexpected summary: %s", out)
	}
	if !strings.Contains(out, "INSERT INTO faculty_program") {
		t.Errorf("expected insert preview in log output: %s", out)
	}
	if n := countCompletions(t, path); n != 0 {
		t.Errorf("dry run must not write, got %d rows", n)
	}
	if len(mailer.sent) != 1 || !strings.HasPrefix(mailer.sent[0].subject, "[DRY RUN] ") {
		t.Errorf("expected dry-run email, got %+v", mailer.sent)
	}
}

func TestRunCommand_BothVariants(t *testing.T) {
	mailer := useMockMailer(t)
	srv := newCanvas(t)
	setupLedger(t, srv.URL)

	out, err := execute(t, "run")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "assignments: 1 inserted") {
		t.Errorf("expected assignments summary: %s", out)
	}
	if !strings.Contains(out, "courses: 0 inserted, 0 not found, 0 already existing, 0 courses checked") {
		t.Errorf("expected courses summary: %s", out)
	}
	// The courses report is empty, so only one email goes out.
	if len(mailer.sent) != 1 {
		t.Errorf("expected 1 email, got %d", len(mailer.sent))
	}
}

func TestMigrateCommand_Idempotent(t *testing.T) {
	t.Setenv("LEDGERSYNC_DATABASE_DRIVER", "sqlite")
	t.Setenv("LEDGERSYNC_DATABASE_PATH", filepath.Join(t.TempDir(), "ledger.db"))

	for i := 0; i < 2; i++ {
		out, err := execute(t, "migrate")
		if err != nil {
			t.Fatalf("migrate run %d failed: %v", i+1, err)
		}
		if !strings.Contains(out, "Migrations completed successfully") {
			t.Errorf("unexpected output: %s", out)
		}
	}
}

func TestEvery_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan struct{})
	go func() {
		every(ctx, time.Hour, func(context.Context) {
			calls++
			cancel()
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("every did not return after cancel")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
