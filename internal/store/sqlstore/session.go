package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"ledgersync/internal/store"
)

// Session runs ledger queries on one pinned connection.
type Session struct {
	exec    store.DBTransaction
	release func() error
	dialect Dialect
}

// Close returns the connection to the pool. It is safe to call more than once.
func (s *Session) Close() error {
	if s.release == nil {
		return nil
	}
	release := s.release
	s.release = nil
	return release()
}

func (s *Session) GraderRules(ctx context.Context) ([]store.GraderRule, error) {
	query := `
		SELECT cg.id, cg.name, cg.assignment_id, cg.course_id, cg.points, cg.program_id, p.Long_Name
		FROM canvas_grader cg
		JOIN programs p ON cg.program_id = p.id
		WHERE cg.active = 1
		ORDER BY cg.id
	`

	rows, err := s.exec.QueryContext(ctx, s.dialect.Rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []store.GraderRule
	for rows.Next() {
		var rule store.GraderRule
		var name sql.NullString
		if err := rows.Scan(
			&rule.ID, &name, &rule.AssignmentID, &rule.CourseID,
			&rule.MinPoints, &rule.ProgramID, &rule.ProgramName,
		); err != nil {
			return nil, err
		}
		rule.Name = name.String
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

func (s *Session) CourseRules(ctx context.Context) ([]store.CourseRule, error) {
	rows, err := s.exec.QueryContext(ctx, "SELECT course_id, program_id FROM canvas_grader_courses ORDER BY course_id, program_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []store.CourseRule
	for rows.Next() {
		var rule store.CourseRule
		if err := rows.Scan(&rule.CourseID, &rule.ProgramID); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

func (s *Session) UserIDByEmail(ctx context.Context, email string) (int64, error) {
	var id int64
	err := s.exec.QueryRowContext(ctx, s.dialect.Rebind("SELECT id FROM users WHERE LOWER(email) = ?"), email).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return id, nil
}

func (s *Session) CountCompletions(ctx context.Context, userID, programID int64) (int64, error) {
	var count int64
	err := s.exec.QueryRowContext(ctx,
		s.dialect.Rebind("SELECT COUNT(*) FROM faculty_program WHERE user_id = ? AND program_id = ?"),
		userID, programID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Session) InsertCompletion(ctx context.Context, c store.Completion) error {
	completed := 0
	if c.Completed {
		completed = 1
	}

	_, err := s.exec.ExecContext(ctx,
		s.dialect.Rebind("INSERT INTO faculty_program (user_id, program_id, completed, DateTaken) VALUES (?, ?, ?, ?)"),
		c.UserID, c.ProgramID, completed, c.DateTaken.Format(store.DateTimeLayout),
	)
	return err
}
