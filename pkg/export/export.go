// Package export renders statistics reports for download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/farreladriann/slc-backend/core/statistics"
)

// WriteJSON writes the report to w in JSON format.
func WriteJSON(w io.Writer, rep statistics.Report) error {
	enc := json.NewEncoder(w)
	return enc.Encode(rep)
}

// WriteCSV writes the report series to w, one row per bucket with its energy
// and cost.
func WriteCSV(w io.Writer, rep statistics.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"label", "kwh", "cost"}); err != nil {
		return err
	}
	for _, p := range rep.Series {
		rec := []string{
			p.Label,
			strconv.FormatFloat(p.Value, 'f', -1, 64),
			strconv.FormatFloat(p.Value*rep.Meta.PricePerKWh, 'f', 2, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
