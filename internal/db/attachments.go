package db

import (
	"database/sql"
	"mime"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/fixdesk/fixdesk/internal/errors"
)

// AttachmentInput is the explicit tagged union of upload shapes the
// store accepts: in-memory bytes from a form upload, or a path to a
// file already on disk. Callers construct one of the two concrete
// types; the store never inspects anything else.
type AttachmentInput interface {
	filename() string
}

// RawBytes is an upload held in memory, typically from a multipart
// form. Mime may be empty; the store falls back to the extension.
type RawBytes struct {
	Name    string
	Content []byte
	Mime    string
}

func (r RawBytes) filename() string { return filepath.Base(r.Name) }

// FilePath references a file on the local filesystem, typically from
// the CLI intake path.
type FilePath struct {
	Path string
}

func (f FilePath) filename() string { return filepath.Base(f.Path) }

// allowedExtensions is the intake allow-list: common photo formats plus
// PDF. Anything else is skipped silently, never an error.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".pdf":  true,
}

// AllowedFile reports whether filename carries an accepted extension.
func AllowedFile(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// AttachmentDir returns the attachment directory for a ticket.
func (r *TicketRepo) AttachmentDir(ticketID string) string {
	return filepath.Join(r.attachRoot, ticketID, "attachments")
}

// AttachmentPath resolves an attachment filename inside a ticket's
// directory, rejecting anything that would escape it.
func (r *TicketRepo) AttachmentPath(ticketID, filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", apperrors.Validation("invalid attachment name: %q", filename)
	}
	return filepath.Join(r.AttachmentDir(ticketID), filename), nil
}

// storeAttachments copies accepted files into the ticket's attachment
// directory and indexes them. Disallowed extensions and unreadable
// sources drop the file, never the ticket.
func (r *TicketRepo) storeAttachments(tx *sql.Tx, ticketID string, inputs []AttachmentInput) error {
	if len(inputs) == 0 {
		return nil
	}

	dir := r.AttachmentDir(ticketID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.WrapStorage(err, "create attachment dir for %s", ticketID)
	}

	for _, in := range inputs {
		name := in.filename()
		if !AllowedFile(name) {
			continue
		}

		var content []byte
		var mimeType string
		switch f := in.(type) {
		case RawBytes:
			content = f.Content
			mimeType = f.Mime
		case FilePath:
			data, err := os.ReadFile(f.Path)
			if err != nil {
				continue
			}
			content = data
		}
		if mimeType == "" {
			mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
		}

		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, content, 0644); err != nil {
			continue
		}

		_, err := tx.Exec(`
			INSERT INTO attachments (ticket_id, filename, path, mime)
			VALUES (?, ?, ?, ?)`,
			ticketID, name, path, mimeType,
		)
		if err != nil {
			return apperrors.WrapStorage(err, "index attachment %q for %s", name, ticketID)
		}
	}
	return nil
}
