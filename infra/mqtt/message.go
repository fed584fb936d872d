package mqtt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/farreladriann/slc-backend/core/model"
)

var terminalName = regexp.MustCompile(`^terminal_(\d+)$`)

// TerminalNumber extracts n from "terminal_<n>". Other identifiers map to 0,
// which the boards ignore.
func TerminalNumber(id string) int {
	m := terminalName.FindStringSubmatch(id)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// TerminalID is the inverse of TerminalNumber.
func TerminalID(n int) string {
	return fmt.Sprintf("terminal_%d", n)
}

// CommandPayload is the downstream relay command understood by the boards.
type CommandPayload struct {
	TerminalID int    `json:"terminal_id"`
	Relay      int    `json:"relay"`
	ID         int    `json:"id"`
	CommandID  string `json:"command_id,omitempty"`
}

// NewCommandPayload converts a command into its wire form.
func NewCommandPayload(cmd model.Command, seq int, commandID string) CommandPayload {
	relay := 0
	if cmd.State.IsOn() {
		relay = 1
	}
	return CommandPayload{
		TerminalID: TerminalNumber(cmd.TerminalID),
		Relay:      relay,
		ID:         seq,
		CommandID:  commandID,
	}
}

// Command converts the payload back into a domain command.
func (p CommandPayload) Command() model.Command {
	state := model.StatusOff
	if p.Relay == 1 {
		state = model.StatusOn
	}
	return model.Command{TerminalID: TerminalID(p.TerminalID), State: state}
}

// ReadingPayload is one upstream measurement sent by a board.
type ReadingPayload struct {
	TerminalID  int     `json:"terminal_id"`
	Voltage     float64 `json:"voltage"`
	Current     float64 `json:"current"`
	Power       float64 `json:"power"`
	RelayStatus int     `json:"relay_status"`
}

// Status maps the relay flag to a terminal status.
func (r ReadingPayload) Status() model.Status {
	if r.RelayStatus == 1 {
		return model.StatusOn
	}
	return model.StatusOff
}

// DecodeReadings accepts either a single reading object or an array of them.
func DecodeReadings(data []byte) ([]ReadingPayload, error) {
	var batch []ReadingPayload
	if err := json.Unmarshal(data, &batch); err == nil {
		return batch, nil
	}
	var one ReadingPayload
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("decode readings: %w", err)
	}
	return []ReadingPayload{one}, nil
}
