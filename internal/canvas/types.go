package canvas

import "time"

// Submission is one entry of /courses/:course_id/assignments/:id/submissions.
type Submission struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	AssignmentID int64      `json:"assignment_id"`
	Score        *float64   `json:"score"`
	GradedAt     *time.Time `json:"graded_at"`
}

// Profile is the response of /users/:id/profile.
type Profile struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ShortName    string `json:"short_name"`
	LoginID      string `json:"login_id"`
	PrimaryEmail string `json:"primary_email"`
}

// EnrollmentUser is the user stub embedded in an enrollment.
type EnrollmentUser struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	LoginID   string `json:"login_id"`
}

// Grades holds the course grade fields of an enrollment.
type Grades struct {
	FinalGrade   string   `json:"final_grade"`
	CurrentGrade string   `json:"current_grade"`
	FinalScore   *float64 `json:"final_score"`
}

// Enrollment is one entry of /courses/:course_id/enrollments.
type Enrollment struct {
	ID             int64          `json:"id"`
	CourseID       int64          `json:"course_id"`
	UserID         int64          `json:"user_id"`
	Type           string         `json:"type"`
	User           EnrollmentUser `json:"user"`
	Grades         Grades         `json:"grades"`
	LastActivityAt *time.Time     `json:"last_activity_at"`
}
