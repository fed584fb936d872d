package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the relay state of a terminal as last reported by the device.
type Status string

const (
	StatusOn  Status = "on"
	StatusOff Status = "off"
)

// ParseStatus converts a user supplied state into a Status. Only "on" and
// "off" are accepted, case insensitive.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(StatusOn):
		return StatusOn, nil
	case string(StatusOff):
		return StatusOff, nil
	default:
		return "", fmt.Errorf("invalid status %q", s)
	}
}

// IsOn reports whether the status is StatusOn. Unknown values count as off.
func (s Status) IsOn() bool {
	return Status(strings.ToLower(string(s))) == StatusOn
}

// Terminal represents a controllable power outlet.
type Terminal struct {
	ID       string     `json:"terminalId"`
	DeviceID string     `json:"stm32Id,omitempty"`
	Priority int        `json:"terminalPriority"` // lower value = higher priority, 0 = unset
	Status   Status     `json:"terminalStatus"`
	StartOn  *time.Time `json:"startOn,omitempty"`
	FinishOn *time.Time `json:"finishOn,omitempty"`
}

// HasPriority reports whether an explicit priority was assigned.
func (t Terminal) HasPriority() bool {
	return t.Priority > 0
}

// HasSchedule reports whether both ends of the schedule window are set.
func (t Terminal) HasSchedule() bool {
	return t.StartOn != nil && t.FinishOn != nil
}

// PowerReading is one telemetry sample of a terminal.
type PowerReading struct {
	TerminalID string    `json:"terminalId"`
	PowerW     float64   `json:"power"`
	Ampere     float64   `json:"ampere"`
	Volt       float64   `json:"volt"`
	Timestamp  time.Time `json:"timestamp"`
}

// Device is the controller board a set of terminals is wired to. Its threshold
// is the capacity budget in watts.
type Device struct {
	ID        string   `json:"stm32Id"`
	Threshold *float64 `json:"stm32Threshold,omitempty"`
}
