package db

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/fixdesk/fixdesk/internal/errors"
	"github.com/fixdesk/fixdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validIntake() CreateTicket {
	return CreateTicket{
		Name:        "Ada Lovelace",
		Email:       "ada@example.com",
		Phone:       "555-0100",
		DeviceType:  "Laptop",
		Brand:       "Lenovo",
		Model:       "X1 Carbon",
		Serial:      "SN-123",
		Accessories: "charger",
		Description: "Screen is cracked and the battery won't charge",
		Actor:       "front desk",
	}
}

func TestTicketRepo_Create(t *testing.T) {
	repo := NewTestRepo(t)

	t.Run("creates ticket with generated identity", func(t *testing.T) {
		ticket, err := repo.Create(validIntake())
		require.NoError(t, err)

		assert.Len(t, ticket.ID, 32)
		assert.Len(t, ticket.ClaimCode, claimCodeLength)
		assert.Equal(t, models.StatusNew, ticket.Status)
		assert.Equal(t, ticket.CreatedAt, ticket.UpdatedAt)
		assert.False(t, ticket.CreatedAt.IsZero())
	})

	t.Run("seeds history with one new entry", func(t *testing.T) {
		ticket, err := repo.Create(validIntake())
		require.NoError(t, err)

		require.Len(t, ticket.StatusHistory, 1)
		entry := ticket.StatusHistory[0]
		assert.Equal(t, models.StatusNew, entry.Status)
		assert.Equal(t, "front desk", entry.Actor)
		assert.Equal(t, ticket.CreatedAt, entry.At)
	})

	t.Run("classifies the description", func(t *testing.T) {
		ticket, err := repo.Create(validIntake())
		require.NoError(t, err)

		require.Len(t, ticket.Labels, 2)
		// Ordered by descending score, then name.
		assert.Equal(t, "broken screen", ticket.Labels[0].Name)
		assert.Equal(t, 0.85, ticket.Labels[0].Score)
		assert.Equal(t, "battery issue", ticket.Labels[1].Name)
	})

	t.Run("trims email and description", func(t *testing.T) {
		in := validIntake()
		in.Email = "  ada@example.com  "
		in.Description = "  no display  "
		ticket, err := repo.Create(in)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", ticket.Email)
		assert.Equal(t, "no display", ticket.Description)
	})

	t.Run("defaults actor to front desk", func(t *testing.T) {
		in := validIntake()
		in.Actor = ""
		ticket, err := repo.Create(in)
		require.NoError(t, err)
		assert.Equal(t, "front desk", ticket.StatusHistory[0].Actor)
	})
}

func TestTicketRepo_CreateValidation(t *testing.T) {
	repo := NewTestRepo(t)

	tests := []struct {
		name   string
		mutate func(*CreateTicket)
	}{
		{"single-word name", func(in *CreateTicket) { in.Name = "Madonna" }},
		{"empty name", func(in *CreateTicket) { in.Name = "" }},
		{"missing email", func(in *CreateTicket) { in.Email = "   " }},
		{"empty description", func(in *CreateTicket) { in.Description = " \n " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validIntake()
			tt.mutate(&in)

			_, err := repo.Create(in)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.KindValidation))

			// A failed create must leave no partial record.
			n, err := repo.Count()
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

func TestTicketRepo_ClaimCodes(t *testing.T) {
	t.Run("generated codes do not collide", func(t *testing.T) {
		seen := make(map[string]bool, 10000)
		for i := 0; i < 10000; i++ {
			code, err := newClaimCode()
			require.NoError(t, err)
			require.Len(t, code, claimCodeLength)
			for _, c := range code {
				assert.Contains(t, claimCodeAlphabet, string(c))
			}
			assert.False(t, seen[code], "duplicate claim code %s", code)
			seen[code] = true
		}
	})

	t.Run("codes are unique across creations", func(t *testing.T) {
		repo := NewTestRepo(t)
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			ticket, err := repo.Create(validIntake())
			require.NoError(t, err)
			assert.False(t, seen[ticket.ClaimCode])
			seen[ticket.ClaimCode] = true
		}
	})
}

func TestTicketRepo_GetByID(t *testing.T) {
	repo := NewTestRepo(t)

	t.Run("round-trips every field", func(t *testing.T) {
		created, err := repo.Create(validIntake())
		require.NoError(t, err)

		loaded, err := repo.GetByID(created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, loaded)
	})

	t.Run("unknown id is NotFound", func(t *testing.T) {
		_, err := repo.GetByID("deadbeef")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	})

	t.Run("corrupt record raises when loaded directly", func(t *testing.T) {
		_, err := repo.db.Exec(`
			INSERT INTO tickets (id, claim_code, name, email, status, created_at, updated_at)
			VALUES ('corrupt1', 'BADROW1', 'Bad Row', 'bad@example.com', 'new', 'not-a-time', 'not-a-time')`)
		require.NoError(t, err)

		_, err = repo.GetByID("corrupt1")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.KindStorage))
	})
}

func TestTicketRepo_List(t *testing.T) {
	repo := NewTestRepo(t)

	var ids []string
	for i := 0; i < 3; i++ {
		ticket, err := repo.Create(validIntake())
		require.NoError(t, err)
		ids = append(ids, ticket.ID)
		// Space creations apart so created_at ordering is observable.
		_, err = repo.db.Exec(`UPDATE tickets SET created_at = ? WHERE id = ?`,
			fmt.Sprintf("2026-08-0%dT10:00:00Z", i+1), ticket.ID)
		require.NoError(t, err)
	}

	t.Run("newest first", func(t *testing.T) {
		tickets, err := repo.List()
		require.NoError(t, err)
		require.Len(t, tickets, 3)
		assert.Equal(t, ids[2], tickets[0].ID)
		assert.Equal(t, ids[1], tickets[1].ID)
		assert.Equal(t, ids[0], tickets[2].ID)
	})

	t.Run("skips corrupt rows", func(t *testing.T) {
		_, err := repo.db.Exec(`
			INSERT INTO tickets (id, claim_code, name, email, status, created_at, updated_at)
			VALUES ('corrupt2', 'BADROW2', 'Bad Row', 'bad@example.com', 'new', 'garbage', 'garbage')`)
		require.NoError(t, err)

		tickets, err := repo.List()
		require.NoError(t, err)
		// The corrupt record is skipped, the rest remain visible.
		assert.Len(t, tickets, 3)
	})
}

func TestTicketRepo_UpdateStatus(t *testing.T) {
	repo := NewTestRepo(t)

	t.Run("appends exactly one history entry per call", func(t *testing.T) {
		ticket, err := repo.Create(validIntake())
		require.NoError(t, err)

		steps := []models.Status{
			models.StatusReceived,
			models.StatusDiagnosing,
			models.StatusRepairing,
			models.StatusReady,
			models.StatusCompleted,
		}
		for i, status := range steps {
			ticket, err = repo.UpdateStatus(ticket.ID, status, "step note", "technician")
			require.NoError(t, err)
			assert.Equal(t, status, ticket.Status)
			// n updates plus the creation entry.
			assert.Len(t, ticket.StatusHistory, i+2)
		}

		// Prior entries are never removed or reordered.
		assert.Equal(t, models.StatusNew, ticket.StatusHistory[0].Status)
		last := ticket.StatusHistory[len(ticket.StatusHistory)-1]
		assert.Equal(t, models.StatusCompleted, last.Status)
		assert.Equal(t, "step note", last.Note)
		assert.Equal(t, "technician", last.Actor)
	})

	t.Run("allows any transition including reopening", func(t *testing.T) {
		ticket, err := repo.Create(validIntake())
		require.NoError(t, err)

		ticket, err = repo.UpdateStatus(ticket.ID, models.StatusCompleted, "", "technician")
		require.NoError(t, err)
		ticket, err = repo.UpdateStatus(ticket.ID, models.StatusDiagnosing, "came back", "technician")
		require.NoError(t, err)
		assert.Equal(t, models.StatusDiagnosing, ticket.Status)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		ticket, err := repo.Create(validIntake())
		require.NoError(t, err)

		_, err = repo.UpdateStatus(ticket.ID, "exploded", "", "technician")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.KindValidation))

		// No history entry was appended by the failed call.
		reloaded, err := repo.GetByID(ticket.ID)
		require.NoError(t, err)
		assert.Len(t, reloaded.StatusHistory, 1)
	})

	t.Run("unknown ticket is NotFound", func(t *testing.T) {
		_, err := repo.UpdateStatus("missing", models.StatusReceived, "", "technician")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	})
}

func TestTicketRepo_Reclassify(t *testing.T) {
	repo := NewTestRepo(t)

	t.Run("re-derives labels from the stored description", func(t *testing.T) {
		ticket, err := repo.Create(validIntake())
		require.NoError(t, err)
		require.NotEmpty(t, ticket.Labels)

		// Change the description out from under the labels, as an
		// external edit would.
		_, err = repo.db.Exec(`UPDATE tickets SET description = ? WHERE id = ?`,
			"device is overheating", ticket.ID)
		require.NoError(t, err)

		reclassified, err := repo.Reclassify(ticket.ID)
		require.NoError(t, err)

		// No stale label survives; only the new derivation remains.
		require.Len(t, reclassified.Labels, 1)
		assert.Equal(t, "overheating", reclassified.Labels[0].Name)
		assert.Equal(t, 1.0, reclassified.Labels[0].Score)
	})

	t.Run("does not append history", func(t *testing.T) {
		ticket, err := repo.Create(validIntake())
		require.NoError(t, err)

		reclassified, err := repo.Reclassify(ticket.ID)
		require.NoError(t, err)
		assert.Len(t, reclassified.StatusHistory, 1)
		assert.True(t, reclassified.UpdatedAt.Equal(ticket.UpdatedAt) || reclassified.UpdatedAt.After(ticket.UpdatedAt))
	})

	t.Run("unknown ticket is NotFound", func(t *testing.T) {
		_, err := repo.Reclassify("missing")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	})
}

func TestTicketRepo_FindByClaim(t *testing.T) {
	repo := NewTestRepo(t)

	ticket, err := repo.Create(validIntake())
	require.NoError(t, err)

	t.Run("case-insensitive match", func(t *testing.T) {
		upper, err := repo.FindByClaim(ticket.ClaimCode)
		require.NoError(t, err)
		require.NotNil(t, upper)

		lower, err := repo.FindByClaim("  " + lowercase(ticket.ClaimCode) + " ")
		require.NoError(t, err)
		require.NotNil(t, lower)

		assert.Equal(t, upper.ID, lower.ID)
		assert.Equal(t, ticket.ID, upper.ID)
	})

	t.Run("absent code is nil, not an error", func(t *testing.T) {
		found, err := repo.FindByClaim("NOSUCH1")
		require.NoError(t, err)
		assert.Nil(t, found)

		found, err = repo.FindByClaim("")
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestTicketRepo_Attachments(t *testing.T) {
	repo := NewTestRepo(t)

	t.Run("stores allowed files and skips the rest", func(t *testing.T) {
		onDisk := filepath.Join(t.TempDir(), "receipt.pdf")
		require.NoError(t, os.WriteFile(onDisk, []byte("%PDF-1.4"), 0644))

		in := validIntake()
		in.Attachments = []AttachmentInput{
			RawBytes{Name: "crack.jpg", Content: []byte("jpegdata"), Mime: "image/jpeg"},
			RawBytes{Name: "malware.exe", Content: []byte("MZ")},
			FilePath{Path: onDisk},
			FilePath{Path: filepath.Join(t.TempDir(), "missing.png")},
		}

		ticket, err := repo.Create(in)
		require.NoError(t, err)

		// The executable and the unreadable file are skipped silently.
		require.Len(t, ticket.Attachments, 2)
		assert.Equal(t, "crack.jpg", ticket.Attachments[0].Filename)
		assert.Equal(t, "image/jpeg", ticket.Attachments[0].Mime)
		assert.Equal(t, "receipt.pdf", ticket.Attachments[1].Filename)

		for _, a := range ticket.Attachments {
			data, err := os.ReadFile(a.Path)
			require.NoError(t, err)
			assert.NotEmpty(t, data)
		}
	})

	t.Run("attachment path rejects traversal", func(t *testing.T) {
		_, err := repo.AttachmentPath("someid", "../../etc/passwd")
		assert.Error(t, err)
		_, err = repo.AttachmentPath("someid", "")
		assert.Error(t, err)

		path, err := repo.AttachmentPath("someid", "crack.jpg")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(repo.AttachmentDir("someid"), "crack.jpg"), path)
	})
}

func TestAllowedFile(t *testing.T) {
	assert.True(t, AllowedFile("photo.JPG"))
	assert.True(t, AllowedFile("scan.pdf"))
	assert.True(t, AllowedFile("img.webp"))
	assert.False(t, AllowedFile("notes.txt"))
	assert.False(t, AllowedFile("archive.zip"))
	assert.False(t, AllowedFile("noextension"))
}

func lowercase(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
