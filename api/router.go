// Package api exposes the controller over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/farreladriann/slc-backend/core/admission"
	"github.com/farreladriann/slc-backend/core/audit"
	"github.com/farreladriann/slc-backend/core/logger"
	"github.com/farreladriann/slc-backend/core/model"
	"github.com/farreladriann/slc-backend/core/scheduler"
	"github.com/farreladriann/slc-backend/core/statistics"
	"github.com/farreladriann/slc-backend/core/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Allocator is the part of the scheduler driven by the knapsack routes.
type Allocator interface {
	RunOnce(ctx context.Context, opts scheduler.Options) (scheduler.Report, error)
	Start(interval time.Duration) scheduler.Status
	Stop() scheduler.Status
	Status() scheduler.Status
}

// Admitter decides manual on/off requests.
type Admitter interface {
	Request(ctx context.Context, terminalID string, desired model.Status) (admission.Decision, error)
}

// Reporter computes energy statistics.
type Reporter interface {
	Report(ctx context.Context, p statistics.Period) (statistics.Report, error)
}

// Deps groups the collaborators of the router. Audit and Logger are optional.
type Deps struct {
	Terminals  store.TerminalStore
	Telemetry  store.TelemetryStore
	Allocator  Allocator
	Admission  Admitter
	Statistics Reporter
	Audit      audit.Store
	Logger     logger.Logger
}

type handler struct {
	Deps
	log logger.Logger
}

// NewRouter registers every route on a fresh ServeMux. Requests must carry
// "Authorization: Bearer <token>" when token is non-empty.
func NewRouter(d Deps, token string) http.Handler {
	if d.Audit == nil {
		d.Audit = audit.NopStore{}
	}
	h := &handler{Deps: d, log: logger.OrNop(d.Logger)}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/terminals", h.listTerminals)
	mux.HandleFunc("POST /api/terminals/{id}/set", h.setTerminal)

	mux.HandleFunc("POST /api/knapsack/terminals/updatePriority", h.updatePriority)
	mux.HandleFunc("POST /api/knapsack/run", h.run)
	mux.HandleFunc("POST /api/knapsack/start", h.start)
	mux.HandleFunc("POST /api/knapsack/stop", h.stop)
	mux.HandleFunc("GET /api/knapsack/status", h.status)
	mux.Handle("GET /api/knapsack/logs", NewLogHandler(d.Audit, ""))

	mux.HandleFunc("POST /api/schedule/{id}", h.setSchedule)
	mux.HandleFunc("DELETE /api/schedule/{id}", h.deleteSchedule)

	mux.HandleFunc("GET /api/statistics", h.statistics)

	return RequireToken(token, mux)
}

// RequireToken rejects requests without the expected bearer token. An empty
// token disables the check.
func RequireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Message: msg})
}

// fail maps domain errors onto status codes. Unexpected errors are logged and
// reported as 500.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, admission.ErrInvalidRequest), errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, scheduler.ErrNoTerminals):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scheduler.ErrCycleInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

var errBadRequest = errors.New("bad request")

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
