package api

import (
	"fmt"
	"net/http"

	"github.com/farreladriann/slc-backend/core/statistics"
	"github.com/farreladriann/slc-backend/pkg/export"
)

func (h *handler) statistics(w http.ResponseWriter, r *http.Request) {
	p, err := statistics.ParsePeriod(r.URL.Query().Get("type"))
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	rep, err := h.Statistics.Report(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, rep)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=statistics-%s.csv", p))
		if err := export.WriteCSV(w, rep); err != nil {
			h.log.Errorf("write csv: %v", err)
		}
	default:
		h.fail(w, r, fmt.Errorf("%w: unsupported format %q", errBadRequest, r.URL.Query().Get("format")))
	}
}
