package db

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"strings"

	apperrors "github.com/fixdesk/fixdesk/internal/errors"
	"github.com/fixdesk/fixdesk/internal/extractor"
	"github.com/fixdesk/fixdesk/internal/models"
	"github.com/google/uuid"
)

const (
	claimCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	claimCodeLength   = 7

	// claimCodeAttempts bounds the regeneration loop when a freshly
	// generated code collides with an existing one. The code space is
	// 36^7 so collisions are vanishingly rare, but they are handled
	// explicitly rather than assumed away.
	claimCodeAttempts = 5
)

// TicketRepo is the sole reader and writer of persisted ticket state.
// It owns id and claim-code generation and attachment file placement.
type TicketRepo struct {
	db         *DB
	extractor  *extractor.Extractor
	attachRoot string
}

// NewTicketRepo creates a TicketRepo. attachRoot is the directory that
// holds per-ticket attachment files.
func NewTicketRepo(database *DB, ex *extractor.Extractor, attachRoot string) *TicketRepo {
	return &TicketRepo{db: database, extractor: ex, attachRoot: attachRoot}
}

// CreateTicket carries the intake form fields for Create.
type CreateTicket struct {
	Name  string
	Email string
	Phone string

	DeviceType  string
	Brand       string
	Model       string
	Serial      string
	Accessories string

	Description string
	Attachments []AttachmentInput

	// Actor is recorded in the initial history entry.
	// Defaults to "front desk".
	Actor string
}

// Create validates the intake fields, generates a fresh id and claim
// code, classifies the description, and persists the ticket with one
// initial "new" history entry. Attachment files with disallowed
// extensions are silently skipped. A validation failure leaves no
// partial record.
func (r *TicketRepo) Create(in CreateTicket) (*models.Ticket, error) {
	if !models.HasFullName(in.Name) {
		return nil, apperrors.Validation("name must include first and last name")
	}
	// Email format is the intake form's concern; the store only
	// requires that something was captured.
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, apperrors.Validation("email is required")
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, apperrors.Validation("problem description is required")
	}
	actor := in.Actor
	if actor == "" {
		actor = "front desk"
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, apperrors.WrapStorage(err, "begin create transaction")
	}
	defer tx.Rollback()

	id := newTicketID()
	code, err := r.uniqueClaimCode(tx)
	if err != nil {
		return nil, err
	}
	now := Now()

	_, err = tx.Exec(`
		INSERT INTO tickets (id, claim_code, name, email, phone, device_type, brand, model, serial, accessories, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, code, strings.TrimSpace(in.Name), email, strings.TrimSpace(in.Phone),
		in.DeviceType, in.Brand, in.Model, in.Serial, in.Accessories,
		description, string(models.StatusNew), FormatTime(now), FormatTime(now),
	)
	if err != nil {
		return nil, apperrors.WrapStorage(err, "insert ticket")
	}

	_, err = tx.Exec(`
		INSERT INTO status_history (ticket_id, at, status, note, actor)
		VALUES (?, ?, ?, ?, ?)`,
		id, FormatTime(now), string(models.StatusNew), "", actor,
	)
	if err != nil {
		return nil, apperrors.WrapStorage(err, "insert initial status history")
	}

	if err := insertLabels(tx, id, r.extractor.Extract(description)); err != nil {
		return nil, err
	}

	if err := r.storeAttachments(tx, id, in.Attachments); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.WrapStorage(err, "commit ticket %s", id)
	}

	return r.GetByID(id)
}

// GetByID retrieves a ticket by id, with labels ordered by descending
// score then name and history in insertion order.
func (r *TicketRepo) GetByID(id string) (*models.Ticket, error) {
	row := r.db.QueryRow(selectTicket+` WHERE id = ?`, id)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("ticket %s not found", id)
	}
	if err != nil {
		return nil, apperrors.WrapStorage(err, "load ticket %s", id)
	}
	if err := r.loadDetails(t); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns all tickets ordered by created_at descending, ties
// broken by id descending. A corrupt row is skipped rather than hiding
// the rest of the listing.
func (r *TicketRepo) List() ([]*models.Ticket, error) {
	rows, err := r.db.Query(selectTicket + ` ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, apperrors.WrapStorage(err, "list tickets")
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			// One corrupt record must not hide all others.
			continue
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.WrapStorage(err, "iterate tickets")
	}

	out := tickets[:0]
	for _, t := range tickets {
		if err := r.loadDetails(t); err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// UpdateStatus sets the ticket status, bumps updated_at, and appends
// exactly one history entry. Any status may follow any other; only
// membership in the status enumeration is enforced.
func (r *TicketRepo) UpdateStatus(id string, status models.Status, note, actor string) (*models.Ticket, error) {
	status = models.Status(strings.TrimSpace(string(status)))
	if !status.IsValid() {
		return nil, apperrors.Validation("invalid status: %q", status)
	}
	if actor == "" {
		actor = "technician"
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, apperrors.WrapStorage(err, "begin status transaction")
	}
	defer tx.Rollback()

	now := Now()
	res, err := tx.Exec(`UPDATE tickets SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), FormatTime(now), id)
	if err != nil {
		return nil, apperrors.WrapStorage(err, "update ticket status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.NotFound("ticket %s not found", id)
	}

	_, err = tx.Exec(`
		INSERT INTO status_history (ticket_id, at, status, note, actor)
		VALUES (?, ?, ?, ?, ?)`,
		id, FormatTime(now), string(status), note, actor,
	)
	if err != nil {
		return nil, apperrors.WrapStorage(err, "insert status history")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.WrapStorage(err, "commit status update for %s", id)
	}

	return r.GetByID(id)
}

// Reclassify re-runs the extractor against the currently stored
// description and wholesale replaces the label set. Label changes are
// not status changes, so no history entry is appended.
func (r *TicketRepo) Reclassify(id string) (*models.Ticket, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, apperrors.WrapStorage(err, "begin reclassify transaction")
	}
	defer tx.Rollback()

	var description string
	err = tx.QueryRow(`SELECT description FROM tickets WHERE id = ?`, id).Scan(&description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("ticket %s not found", id)
	}
	if err != nil {
		return nil, apperrors.WrapStorage(err, "load description for %s", id)
	}

	if _, err := tx.Exec(`DELETE FROM labels WHERE ticket_id = ?`, id); err != nil {
		return nil, apperrors.WrapStorage(err, "clear labels for %s", id)
	}
	if err := insertLabels(tx, id, r.extractor.Extract(description)); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(`UPDATE tickets SET updated_at = ? WHERE id = ?`, FormatTime(Now()), id); err != nil {
		return nil, apperrors.WrapStorage(err, "bump updated_at for %s", id)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.WrapStorage(err, "commit reclassify for %s", id)
	}

	return r.GetByID(id)
}

// FindByClaim looks up a ticket by claim code, case-insensitively.
// Returns (nil, nil) when no ticket matches: an unknown code is not an
// error, callers must additionally verify the customer's email before
// revealing anything.
func (r *TicketRepo) FindByClaim(code string) (*models.Ticket, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}

	row := r.db.QueryRow(selectTicket+` WHERE UPPER(claim_code) = ?`, code)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.WrapStorage(err, "find ticket by claim code")
	}
	if err := r.loadDetails(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Count returns the number of stored tickets.
func (r *TicketRepo) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM tickets`).Scan(&n); err != nil {
		return 0, apperrors.WrapStorage(err, "count tickets")
	}
	return n, nil
}

const selectTicket = `
	SELECT id, claim_code, name, email, phone, device_type, brand, model,
	       serial, accessories, description, status, created_at, updated_at
	FROM tickets`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(s scanner) (*models.Ticket, error) {
	var t models.Ticket
	var status, createdAt, updatedAt string
	err := s.Scan(
		&t.ID, &t.ClaimCode, &t.Name, &t.Email, &t.Phone,
		&t.DeviceType, &t.Brand, &t.Model, &t.Serial, &t.Accessories,
		&t.Description, &status, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = models.Status(status)
	if t.CreatedAt, err = ParseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// loadDetails populates labels, history, and attachments in their
// defined orderings.
func (r *TicketRepo) loadDetails(t *models.Ticket) error {
	rows, err := r.db.Query(`
		SELECT name, score, source FROM labels
		WHERE ticket_id = ? ORDER BY score DESC, name ASC`, t.ID)
	if err != nil {
		return apperrors.WrapStorage(err, "load labels for %s", t.ID)
	}
	defer rows.Close()
	for rows.Next() {
		var l models.Label
		if err := rows.Scan(&l.Name, &l.Score, &l.Source); err != nil {
			return apperrors.WrapStorage(err, "scan label for %s", t.ID)
		}
		t.Labels = append(t.Labels, l)
	}
	if err := rows.Err(); err != nil {
		return apperrors.WrapStorage(err, "iterate labels for %s", t.ID)
	}

	hrows, err := r.db.Query(`
		SELECT at, status, note, actor FROM status_history
		WHERE ticket_id = ? ORDER BY id ASC`, t.ID)
	if err != nil {
		return apperrors.WrapStorage(err, "load history for %s", t.ID)
	}
	defer hrows.Close()
	for hrows.Next() {
		var entry models.StatusChange
		var at, status string
		if err := hrows.Scan(&at, &status, &entry.Note, &entry.Actor); err != nil {
			return apperrors.WrapStorage(err, "scan history for %s", t.ID)
		}
		entry.Status = models.Status(status)
		if entry.At, err = ParseTime(at); err != nil {
			return apperrors.WrapStorage(err, "parse history timestamp for %s", t.ID)
		}
		t.StatusHistory = append(t.StatusHistory, entry)
	}
	if err := hrows.Err(); err != nil {
		return apperrors.WrapStorage(err, "iterate history for %s", t.ID)
	}

	arows, err := r.db.Query(`
		SELECT filename, path, mime FROM attachments
		WHERE ticket_id = ? ORDER BY id ASC`, t.ID)
	if err != nil {
		return apperrors.WrapStorage(err, "load attachments for %s", t.ID)
	}
	defer arows.Close()
	for arows.Next() {
		var a models.Attachment
		if err := arows.Scan(&a.Filename, &a.Path, &a.Mime); err != nil {
			return apperrors.WrapStorage(err, "scan attachment for %s", t.ID)
		}
		t.Attachments = append(t.Attachments, a)
	}
	return arows.Err()
}

func insertLabels(tx *sql.Tx, ticketID string, labels []models.Label) error {
	for _, l := range labels {
		_, err := tx.Exec(`
			INSERT INTO labels (ticket_id, name, score, source)
			VALUES (?, ?, ?, ?)`,
			ticketID, l.Name, l.Score, l.Source,
		)
		if err != nil {
			return apperrors.WrapStorage(err, "insert label %q for %s", l.Name, ticketID)
		}
	}
	return nil
}

// newTicketID returns a fresh opaque ticket id (uuid4 without dashes).
func newTicketID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// newClaimCode returns a random 7-character uppercase alphanumeric
// code, short enough to read over the phone.
func newClaimCode() (string, error) {
	buf := make([]byte, claimCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", apperrors.WrapStorage(err, "generate claim code")
	}
	for i, b := range buf {
		buf[i] = claimCodeAlphabet[int(b)%len(claimCodeAlphabet)]
	}
	return string(buf), nil
}

// uniqueClaimCode generates a claim code and re-checks uniqueness
// inside the caller's transaction, regenerating on collision.
func (r *TicketRepo) uniqueClaimCode(tx *sql.Tx) (string, error) {
	for i := 0; i < claimCodeAttempts; i++ {
		code, err := newClaimCode()
		if err != nil {
			return "", err
		}
		var n int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM tickets WHERE claim_code = ?`, code).Scan(&n); err != nil {
			return "", apperrors.WrapStorage(err, "check claim code uniqueness")
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", apperrors.Storage("could not generate a unique claim code after %d attempts", claimCodeAttempts)
}
