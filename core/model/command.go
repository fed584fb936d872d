package model

// Command asks a terminal to switch its relay to State.
type Command struct {
	TerminalID string `json:"terminalId"`
	State      Status `json:"status"`
}

// CommandResult is the delivery outcome of a single command.
type CommandResult struct {
	TerminalID string `json:"terminalId"`
	State      Status `json:"status"`
	OK         bool   `json:"ok"`
	Err        string `json:"error,omitempty"`
}

// Failed returns the results that were not delivered.
func Failed(results []CommandResult) []CommandResult {
	var out []CommandResult
	for _, r := range results {
		if !r.OK {
			out = append(out, r)
		}
	}
	return out
}
