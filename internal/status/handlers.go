package status

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"ledgersync/pkg/api"
)

// Pinger reports whether the ledger database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the status endpoints and their dependencies.
type Handlers struct {
	db    Pinger
	board *Board
}

func NewHandlers(db Pinger, board *Board) *Handlers {
	return &Handlers{db: db, board: board}
}

// Healthz is a liveness probe.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	h.respondJson(w, http.StatusOK, api.HealthResponse{Status: "healthy"})
}

// Readyz is a readiness probe. It checks the ledger connection.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.httpError(w, "Database unavailable", http.StatusServiceUnavailable)
		return
	}
	h.respondJson(w, http.StatusOK, api.HealthResponse{Status: "ready"})
}

// LastRuns returns the most recent summary for each variant.
func (h *Handlers) LastRuns(w http.ResponseWriter, r *http.Request) {
	h.respondJson(w, http.StatusOK, api.RunsResponse{Runs: h.board.Snapshot()})
}

func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}
