package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/farreladriann/slc-backend/core/allocation"
	"github.com/farreladriann/slc-backend/core/model"
	"github.com/farreladriann/slc-backend/core/scheduler"
)

type priorityRequest struct {
	TerminalID string `json:"terminalId"`
	Priority   *int   `json:"priority"`
}

func (h *handler) updatePriority(w http.ResponseWriter, r *http.Request) {
	var req priorityRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.TerminalID = strings.TrimSpace(req.TerminalID)
	if req.TerminalID == "" || req.Priority == nil {
		h.fail(w, r, fmt.Errorf("%w: terminalId and priority required", errBadRequest))
		return
	}
	if *req.Priority < 0 {
		h.fail(w, r, fmt.Errorf("%w: priority must not be negative", errBadRequest))
		return
	}
	ctx := r.Context()
	if err := h.Terminals.UpdatePriority(ctx, req.TerminalID, *req.Priority); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.Terminals.GetTerminal(ctx, req.TerminalID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.Infof("priority of %s set to %d", t.ID, t.Priority)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Priority updated successfully", "data": t})
}

type runRequest struct {
	MaxCapacity *float64 `json:"maxCapacity"`
	Mode        string   `json:"mode"`
}

// RunResult is the body returned by an on-demand cycle.
type RunResult struct {
	Selected      []string              `json:"selected"`
	TotalPower    float64               `json:"totalPower"`
	TotalPriority int                   `json:"totalPriority"`
	Capacity      float64               `json:"capacity"`
	Algorithm     allocation.Mode       `json:"algorithm"`
	RuntimeMs     float64               `json:"runtimeMs"`
	Results       []model.CommandResult `json:"publishResults"`
}

func (h *handler) run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	mode, err := allocation.ParseMode(req.Mode)
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	opts := scheduler.Options{Mode: mode}
	// a missing or non-positive capacity falls back to the stored budget
	if req.MaxCapacity != nil && *req.MaxCapacity > 0 {
		opts.Capacity = req.MaxCapacity
	}
	// a started cycle completes even when the client goes away
	rep, err := h.Allocator.RunOnce(context.WithoutCancel(r.Context()), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res := RunResult{
		Selected:      rep.Result.SelectedIDs,
		TotalPower:    rep.Result.TotalPower,
		TotalPriority: rep.Result.TotalValue,
		Capacity:      rep.Capacity,
		Algorithm:     rep.Result.Algorithm,
		RuntimeMs:     float64(rep.Result.Duration) / float64(time.Millisecond),
		Results:       rep.Commands,
	}
	if res.Selected == nil {
		res.Selected = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Knapsack executed", "data": res})
}

type startRequest struct {
	IntervalMs int64 `json:"intervalMs"`
}

func (h *handler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	// zero lets the scheduler apply its configured interval
	var interval time.Duration
	if req.IntervalMs > 0 {
		interval = time.Duration(req.IntervalMs) * time.Millisecond
	}
	st := h.Allocator.Start(interval)
	writeJSON(w, http.StatusOK, map[string]any{"running": st.Running, "info": st})
}

func (h *handler) stop(w http.ResponseWriter, r *http.Request) {
	st := h.Allocator.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": st.Running, "info": st})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Allocator.Status())
}
