package api

import (
	"fmt"
	"net/http"
	"time"
)

type scheduleRequest struct {
	StartOn  *time.Time `json:"startOn"`
	FinishOn *time.Time `json:"finishOn"`
}

func (h *handler) setSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.StartOn == nil || req.FinishOn == nil {
		h.fail(w, r, fmt.Errorf("%w: startOn & finishOn required", errBadRequest))
		return
	}
	if !req.FinishOn.After(*req.StartOn) {
		h.fail(w, r, fmt.Errorf("%w: finishOn must be after startOn", errBadRequest))
		return
	}
	h.writeSchedule(w, r, req.StartOn, req.FinishOn, "Schedule saved")
}

func (h *handler) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	h.writeSchedule(w, r, nil, nil, "Schedule deleted")
}

func (h *handler) writeSchedule(w http.ResponseWriter, r *http.Request, start, finish *time.Time, msg string) {
	id := r.PathValue("id")
	ctx := r.Context()
	if err := h.Terminals.SetSchedule(ctx, id, start, finish); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.Terminals.GetTerminal(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "data": t})
}
