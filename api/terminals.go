package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/farreladriann/slc-backend/core/model"
)

// TerminalView is a terminal with its most recent power reading. LatestPower
// is null when the terminal never reported.
type TerminalView struct {
	model.Terminal
	LatestPower *float64 `json:"latestPower"`
}

func (h *handler) listTerminals(w http.ResponseWriter, r *http.Request) {
	terms, err := h.Terminals.ListTerminals(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	power, err := h.Telemetry.LatestPowerByTerminal(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]TerminalView, len(terms))
	for i, t := range terms {
		views[i] = TerminalView{Terminal: t}
		if p, ok := power[t.ID]; ok {
			views[i].LatestPower = &p
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": views})
}

type setRequest struct {
	Status string `json:"status"`
}

func (h *handler) setTerminal(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	id := r.PathValue("id")
	if strings.TrimSpace(req.Status) == "" {
		h.fail(w, r, fmt.Errorf("%w: terminalId & status required", errBadRequest))
		return
	}
	d, err := h.Admission.Request(context.WithoutCancel(r.Context()), id, model.Status(req.Status))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
