// Package service contains the business logic for fixdesk, sitting
// between the CLI/web surfaces and the store. Both surfaces go through
// the same TicketService so intake rules and notification behavior
// cannot drift between them.
package service

import (
	"strings"

	"github.com/fixdesk/fixdesk/internal/db"
	apperrors "github.com/fixdesk/fixdesk/internal/errors"
	"github.com/fixdesk/fixdesk/internal/models"
	"github.com/fixdesk/fixdesk/internal/notify"
)

// Notifier delivers customer notifications. Implemented by
// notify.Mailer; tests substitute a recorder.
type Notifier interface {
	SendStatusEmail(recipient string, t *models.Ticket, oldStatus, newStatus models.Status, note, baseURL string) notify.Result
}

// TicketService provides ticket operations for the CLI and web server.
type TicketService struct {
	repo     *db.TicketRepo
	notifier Notifier
	baseURL  string
}

// NewTicketService creates a TicketService. notifier may be nil, in
// which case status updates skip notification entirely.
func NewTicketService(repo *db.TicketRepo, notifier Notifier, baseURL string) *TicketService {
	return &TicketService{repo: repo, notifier: notifier, baseURL: baseURL}
}

// CreateTicket validates the intake and persists a new ticket. On top
// of the store's checks it requires a plausible email address, since
// the address is the only way to reach the customer later.
func (s *TicketService) CreateTicket(in db.CreateTicket) (*models.Ticket, error) {
	if !notify.ValidEmail(in.Email) {
		return nil, apperrors.Validation("a valid email address is required")
	}
	return s.repo.Create(in)
}

// LoadTicket retrieves a ticket by id.
func (s *TicketService) LoadTicket(id string) (*models.Ticket, error) {
	return s.repo.GetByID(id)
}

// ListTickets returns all tickets, newest first.
func (s *TicketService) ListTickets() ([]*models.Ticket, error) {
	return s.repo.List()
}

// UpdateTicketStatus moves a ticket to status and notifies the
// customer. The returned Result describes the notification outcome; a
// failed notification never fails the update itself.
func (s *TicketService) UpdateTicketStatus(id string, status models.Status, note, actor string) (*models.Ticket, notify.Result, error) {
	before, err := s.repo.GetByID(id)
	if err != nil {
		return nil, notify.Result{}, err
	}
	oldStatus := before.Status

	ticket, err := s.repo.UpdateStatus(id, status, note, actor)
	if err != nil {
		return nil, notify.Result{}, err
	}

	if s.notifier == nil {
		return ticket, notify.Result{OK: true, Message: "notifications disabled"}, nil
	}
	if oldStatus == ticket.Status {
		return ticket, notify.Result{OK: true, Message: "status unchanged, customer not notified"}, nil
	}

	res := s.notifier.SendStatusEmail(ticket.Email, ticket, oldStatus, ticket.Status, note, s.baseURL)
	return ticket, res, nil
}

// ReclassifyTicket re-runs issue classification against the ticket's
// current description.
func (s *TicketService) ReclassifyTicket(id string) (*models.Ticket, error) {
	return s.repo.Reclassify(id)
}

// FindTicketByClaim looks a ticket up by claim code alone. This is a
// staff operation; the customer-facing lookup is LookupStatus.
func (s *TicketService) FindTicketByClaim(code string) (*models.Ticket, error) {
	return s.repo.FindByClaim(code)
}

// LookupStatus is the customer-facing status check. It requires both
// the claim code and the email captured at intake; a wrong code and a
// wrong email are indistinguishable, so a guessed code reveals nothing.
func (s *TicketService) LookupStatus(code, email string) (*models.Ticket, error) {
	ticket, err := s.repo.FindByClaim(code)
	if err != nil {
		return nil, err
	}
	if ticket == nil || !strings.EqualFold(strings.TrimSpace(email), ticket.Email) {
		return nil, apperrors.NotFound("no ticket matches that claim code and email")
	}
	return ticket, nil
}

// Statuses returns every ticket status in lifecycle order.
func (s *TicketService) Statuses() []models.Status {
	return models.AllStatuses()
}
