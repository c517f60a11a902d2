// Package store contains the ledger database layer for ledgersync.
package store

import (
	"fmt"
	"time"
)

// DateTimeLayout is the wall-clock format written to faculty_program.DateTaken.
const DateTimeLayout = "2006-01-02 15:04:05"

// GraderRule maps one Canvas assignment to a program.
// A submission scoring at least MinPoints counts as a completion.
type GraderRule struct {
	ID           int64
	Name         string
	AssignmentID int64
	CourseID     int64
	MinPoints    float64
	ProgramID    int64
	ProgramName  string
}

// CourseRule maps a whole Canvas course to a program.
type CourseRule struct {
	CourseID  int64
	ProgramID int64
}

// Completion is one row of the faculty_program ledger.
type Completion struct {
	UserID    int64
	ProgramID int64
	Completed bool
	DateTaken time.Time
}

// InsertPreview renders the statement that would record c, with values inlined.
// It is only meant for console output in dry-run mode.
func (c Completion) InsertPreview() string {
	completed := 0
	if c.Completed {
		completed = 1
	}
	return fmt.Sprintf(
		"INSERT INTO faculty_program (user_id, program_id, completed, DateTaken) VALUES (%d, %d, %d, '%s');",
		c.UserID, c.ProgramID, completed, c.DateTaken.Format(DateTimeLayout),
	)
}
