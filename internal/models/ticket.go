package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StatusChange is one entry in a ticket's status history.
// The first entry always records StatusNew at creation time; every
// status update appends exactly one more. Entries are never removed.
type StatusChange struct {
	At     time.Time `json:"at"`
	Status Status    `json:"status"`
	Note   string    `json:"note,omitempty"`
	Actor  string    `json:"actor,omitempty"`
}

// Label is a canonical issue category assigned by the extractor.
// Name is drawn from the extractor vocabulary, Score is in [0,1], and
// Source identifies which scorer produced it (currently always rules).
type Label struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// Attachment is a file uploaded at intake. Attachments belong to
// exactly one ticket and are read-only after creation.
type Attachment struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Mime     string `json:"mime,omitempty"`
}

// Ticket represents one repair case.
type Ticket struct {
	ID        string `json:"id"`
	ClaimCode string `json:"claim_code"`

	// Customer
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`

	// Device
	DeviceType  string `json:"device_type"`
	Brand       string `json:"brand,omitempty"`
	Model       string `json:"model,omitempty"`
	Serial      string `json:"serial,omitempty"`
	Accessories string `json:"accessories,omitempty"`

	// Problem
	Description string `json:"description"`

	Status        Status         `json:"status"`
	StatusHistory []StatusChange `json:"status_history"`
	Labels        []Label        `json:"labels"`
	Attachments   []Attachment   `json:"attachments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasFullName reports whether name contains at least two
// whitespace-separated tokens (first and last name).
func HasFullName(name string) bool {
	return len(strings.Fields(name)) >= 2
}

// Validate validates the ticket fields.
func (t *Ticket) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.ClaimCode == "" {
		return fmt.Errorf("claim_code is required")
	}
	if !HasFullName(t.Name) {
		return fmt.Errorf("name must include first and last name")
	}
	if strings.TrimSpace(t.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("description cannot be empty")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	if len(t.StatusHistory) == 0 {
		return fmt.Errorf("status history cannot be empty")
	}
	return nil
}

// EncodeJSON serializes the ticket to its persisted JSON form.
// Label and history ordering are preserved as-is.
func (t *Ticket) EncodeJSON() ([]byte, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode ticket %s: %w", t.ID, err)
	}
	return data, nil
}

// DecodeJSON reconstructs a ticket from its persisted JSON form.
// For every valid ticket t, DecodeJSON(t.EncodeJSON()) equals t
// field-for-field, including label and history order.
func DecodeJSON(data []byte) (*Ticket, error) {
	var t Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode ticket: %w", err)
	}
	return &t, nil
}
