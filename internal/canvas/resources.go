package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Submissions lists every submission for an assignment.
func (c *Client) Submissions(ctx context.Context, courseID, assignmentID int64) ([]Submission, error) {
	path := fmt.Sprintf("/courses/%d/assignments/%d/submissions", courseID, assignmentID)
	return fetchAs[Submission](ctx, c, path, nil)
}

// Enrollments lists the student enrollments of a course.
func (c *Client) Enrollments(ctx context.Context, courseID int64) ([]Enrollment, error) {
	query := url.Values{}
	query.Add("type[]", "StudentEnrollment")
	return fetchAs[Enrollment](ctx, c, fmt.Sprintf("/courses/%d/enrollments", courseID), query)
}

// Profile returns the profile of a single user.
func (c *Client) Profile(ctx context.Context, userID int64) (Profile, error) {
	var p Profile
	if err := c.getJSON(ctx, fmt.Sprintf("/users/%d/profile", userID), &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func fetchAs[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	raw, err := c.FetchAll(ctx, path, query)
	if err != nil {
		return nil, err
	}

	items := make([]T, 0, len(raw))
	for _, r := range raw {
		var item T
		if err := json.Unmarshal(r, &item); err != nil {
			return nil, fmt.Errorf("failed to parse %s record: %w", path, err)
		}
		items = append(items, item)
	}
	return items, nil
}
