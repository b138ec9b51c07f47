// Package models defines the domain models for fixdesk.
package models

// Status represents where a repair ticket sits in its lifecycle.
//
// The order below is the lifecycle order shown to users. It is display
// order only: any status may transition to any other status, including
// re-opening a completed ticket. Shops routinely move tickets backwards
// when a repair uncovers a new fault or a customer returns a device.
type Status string

const (
	StatusNew        Status = "new"
	StatusReceived   Status = "received"
	StatusDiagnosing Status = "diagnosing"
	StatusRepairing  Status = "repairing"
	StatusReady      Status = "ready for pickup"
	StatusCompleted  Status = "completed"
)

// AllStatuses returns every ticket status in lifecycle order.
// The UI uses this to populate status selectors.
func AllStatuses() []Status {
	return []Status{
		StatusNew,
		StatusReceived,
		StatusDiagnosing,
		StatusRepairing,
		StatusReady,
		StatusCompleted,
	}
}

// IsValid returns true if the status is a valid ticket status.
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusReceived, StatusDiagnosing, StatusRepairing, StatusReady, StatusCompleted:
		return true
	}
	return false
}

// IsTerminal returns true if the status marks the end of the lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// String returns the status as a plain string.
func (s Status) String() string {
	return string(s)
}
