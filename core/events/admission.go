package events

import "github.com/farreladriann/slc-backend/core/model"

// AdmissionEvent is published for every decided manual request.
type AdmissionEvent struct {
	TerminalID string
	State      model.Status
	Accepted   bool
	Reason     string
	Capacity   float64
	Potential  float64
	Available  float64
}
