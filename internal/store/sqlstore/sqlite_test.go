package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ledgersync/internal/store"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	s, err := Open(ctx, SQLite, filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := Migrate(s.DB(), SQLite); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return s
}

func TestSQLite_MigrateIsRepeatable(t *testing.T) {
	s := newSQLiteStore(t)

	if err := Migrate(s.DB(), SQLite); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
}

func TestSQLite_LedgerRoundTrip(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	for _, stmt := range []string{
		"INSERT INTO users (id, email) VALUES (42, 'A@X.edu')",
		"INSERT INTO programs (id, Long_Name) VALUES (5, 'Online Teaching Certificate')",
		"INSERT INTO canvas_grader (name, assignment_id, course_id, points, program_id, active) VALUES ('Quiz', 501, 9001, 80, 5, 1)",
		"INSERT INTO canvas_grader (name, assignment_id, course_id, points, program_id, active) VALUES ('Retired', 502, 9001, 80, 5, 0)",
		"INSERT INTO canvas_grader_courses (course_id, program_id) VALUES (9100, 5)",
	} {
		if _, err := s.DB().ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}

	session, err := s.Session(ctx)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	defer session.Close()

	rules, err := session.GraderRules(ctx)
	if err != nil {
		t.Fatalf("GraderRules failed: %v", err)
	}
	if len(rules) != 1 || rules[0].AssignmentID != 501 || rules[0].ProgramName != "Online Teaching Certificate" {
		t.Fatalf("unexpected grader rules: %+v", rules)
	}

	courses, err := session.CourseRules(ctx)
	if err != nil {
		t.Fatalf("CourseRules failed: %v", err)
	}
	if len(courses) != 1 || courses[0].CourseID != 9100 {
		t.Fatalf("unexpected course rules: %+v", courses)
	}

	id, err := session.UserIDByEmail(ctx, "a@x.edu")
	if err != nil {
		t.Fatalf("UserIDByEmail failed: %v", err)
	}
	if id != 42 {
		t.Errorf("got id %d, want 42", id)
	}

	if err := session.InsertCompletion(ctx, store.Completion{
		UserID: 42, ProgramID: 5, Completed: true,
		DateTaken: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("InsertCompletion failed: %v", err)
	}

	count, err := session.CountCompletions(ctx, 42, 5)
	if err != nil {
		t.Fatalf("CountCompletions failed: %v", err)
	}
	if count != 1 {
		t.Errorf("got count %d, want 1", count)
	}
}
