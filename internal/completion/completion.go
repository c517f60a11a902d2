// Package completion turns fetched Canvas records into completion candidates.
// Everything here is a pure function over already-fetched data.
package completion

import (
	"strings"
	"time"

	"ledgersync/internal/canvas"
	"ledgersync/internal/store"
)

// Marker is the final_grade value Canvas reports for a completed pass/fail course.
const Marker = "Complete"

// Candidate is a completion event that has not been written to the ledger yet.
type Candidate struct {
	ExternalUserID int64
	Login          string // normalized; empty until the profile is known
	Name           string
	CourseID       int64
	ProgramID      int64
	ProgramName    string
	CompletedAt    time.Time
}

// FromSubmissions keeps submissions whose score is present and at least rule.MinPoints.
// A missing score is never treated as zero. GradedAt is converted to loc.
func FromSubmissions(subs []canvas.Submission, rule store.GraderRule, loc *time.Location) []Candidate {
	if loc == nil {
		loc = time.UTC
	}

	var candidates []Candidate
	for _, sub := range subs {
		if sub.Score == nil || *sub.Score < rule.MinPoints {
			continue
		}
		if sub.GradedAt == nil {
			continue
		}
		candidates = append(candidates, Candidate{
			ExternalUserID: sub.UserID,
			CourseID:       rule.CourseID,
			ProgramID:      rule.ProgramID,
			ProgramName:    rule.ProgramName,
			CompletedAt:    sub.GradedAt.In(loc),
		})
	}
	return candidates
}

// FromEnrollments keeps enrollments whose final grade is the completion marker.
// CompletedAt is the calendar date of last_activity_at at midnight.
func FromEnrollments(enrollments []canvas.Enrollment, rule store.CourseRule) []Candidate {
	var candidates []Candidate
	for _, e := range enrollments {
		if e.Grades.FinalGrade != Marker || e.LastActivityAt == nil {
			continue
		}

		name := e.User.ShortName
		if name == "" {
			name = e.User.Name
		}

		candidates = append(candidates, Candidate{
			ExternalUserID: e.UserID,
			Login:          NormalizeLogin(e.User.LoginID),
			Name:           name,
			CourseID:       rule.CourseID,
			ProgramID:      rule.ProgramID,
			CompletedAt:    DateOnly(*e.LastActivityAt),
		})
	}
	return candidates
}

// NormalizeLogin trims and lowercases a Canvas login.
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// DateOnly drops the time of day, keeping the date as written in t's own offset.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
