package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ledgersync/internal/reconcile"
	"ledgersync/pkg/api"
)

type mockPinger struct {
	pingErr error
}

func (m *mockPinger) Ping(ctx context.Context) error { return m.pingErr }

func TestProbes(t *testing.T) {
	tests := []struct {
		name           string
		endpoint       string
		pingErr        error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Healthz Always OK",
			endpoint:       "/healthz",
			expectedStatus: http.StatusOK,
			expectedBody:   "healthy",
		},
		{
			name:           "Readyz Success",
			endpoint:       "/readyz",
			expectedStatus: http.StatusOK,
			expectedBody:   "ready",
		},
		{
			name:           "Readyz Database Fail",
			endpoint:       "/readyz",
			pingErr:        errors.New("db down"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "Database unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := NewMux(&mockPinger{pingErr: tt.pingErr}, NewBoard(), nil)

			req := httptest.NewRequest(http.MethodGet, tt.endpoint, nil)
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedStatus)
			}
			if !strings.Contains(rr.Body.String(), tt.expectedBody) {
				t.Errorf("expected body to contain %q, got %s", tt.expectedBody, rr.Body.String())
			}
		})
	}
}

func TestLastRuns(t *testing.T) {
	board := NewBoard()
	started := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	board.Record(reconcile.VariantCourses, nil, errors.New("load course rules: db down"), false)
	board.Record(reconcile.VariantAssignments, &reconcile.Report{
		RunID:           "run-1",
		Variant:         reconcile.VariantAssignments,
		StartedAt:       started,
		FinishedAt:      started.Add(90 * time.Second),
		Added:           []reconcile.AddedRecord{{UserID: 1}, {UserID: 2}},
		AlreadyExisting: 5,
		CoursesChecked:  3,
	}, nil, true)

	mux := NewMux(&mockPinger{}, board, nil)
	req := httptest.NewRequest(http.MethodGet, "/runs/last", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}

	var resp api.RunsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(resp.Runs))
	}

	assignments, courses := resp.Runs[0], resp.Runs[1]
	if assignments.Variant != string(reconcile.VariantAssignments) || courses.Variant != string(reconcile.VariantCourses) {
		t.Fatalf("unexpected ordering: %s, %s", assignments.Variant, courses.Variant)
	}
	if assignments.Inserted != 2 || assignments.AlreadyExisting != 5 || assignments.CoursesChecked != 3 {
		t.Errorf("unexpected assignments summary: %+v", assignments)
	}
	if assignments.DurationSeconds != 90 {
		t.Errorf("expected 90s duration, got %v", assignments.DurationSeconds)
	}
	if !assignments.Notified {
		t.Error("expected assignments run to be notified")
	}
	if courses.Error == "" {
		t.Error("expected courses run to carry its error")
	}
}

func TestLastRuns_Empty(t *testing.T) {
	mux := NewMux(&mockPinger{}, NewBoard(), nil)
	req := httptest.NewRequest(http.MethodGet, "/runs/last", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if got := strings.TrimSpace(rr.Body.String()); got != `{"runs":[]}` {
		t.Errorf("unexpected body: %s", got)
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ledgersync_candidates_total 1\n"))
	})
	mux := NewMux(&mockPinger{}, NewBoard(), metrics)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ledgersync_candidates_total") {
		t.Errorf("unexpected metrics response: %d %s", rr.Code, rr.Body.String())
	}
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	srv := New("127.0.0.1:0", &mockPinger{}, NewBoard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
