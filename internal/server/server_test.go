package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixdesk/fixdesk/internal/db"
	"github.com/fixdesk/fixdesk/internal/models"
	"github.com/fixdesk/fixdesk/internal/service"
)

const testPassword = "hunter2"

// newTestServer builds a server on an in-memory store. Requests go
// straight to the router, below the CSRF middleware, so tests exercise
// handlers without token bookkeeping.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo := db.NewTestRepo(t)
	svc := service.NewTicketService(repo, nil, "")

	s, err := New(Config{
		Service:            svc,
		Repo:               repo,
		TechnicianPassword: testPassword,
		SessionSecret:      "0123456789abcdef0123456789abcdef",
		Logger:             log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	return s
}

func (s *Server) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// login authenticates and returns the session cookie.
func login(t *testing.T, s *Server) *http.Cookie {
	t.Helper()

	form := url.Values{"password": {testPassword}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := s.do(req)
	require.Equal(t, http.StatusSeeOther, w.Code)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

// createTicket submits an intake form and returns the stored ticket.
func createTicket(t *testing.T, s *Server, files map[string][]byte) *models.Ticket {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"name":        "Ada Lovelace",
		"email":       "ada@example.com",
		"phone":       "555-0100",
		"device_type": "Laptop",
		"brand":       "Lenovo",
		"description": "screen is cracked and it won't charge",
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile("attachments", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/tickets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := s.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	tickets, err := s.config.Service.ListTickets()
	require.NoError(t, err)
	require.NotEmpty(t, tickets)
	return tickets[0]
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["tickets"])
}

func TestIntake(t *testing.T) {
	t.Run("form renders", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Device check-in")
	})

	t.Run("submission creates a ticket and shows the claim code", func(t *testing.T) {
		s := newTestServer(t)
		ticket := createTicket(t, s, nil)

		assert.Len(t, ticket.ClaimCode, 7)
		assert.Equal(t, models.StatusNew, ticket.Status)
		assert.NotEmpty(t, ticket.Labels)
	})

	t.Run("attachments are stored, executables skipped", func(t *testing.T) {
		s := newTestServer(t)
		ticket := createTicket(t, s, map[string][]byte{
			"crack.jpg":   []byte("jpegdata"),
			"malware.exe": []byte("MZ"),
		})

		require.Len(t, ticket.Attachments, 1)
		assert.Equal(t, "crack.jpg", ticket.Attachments[0].Filename)
	})

	t.Run("bad email re-renders the form with an error", func(t *testing.T) {
		s := newTestServer(t)

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("name", "Ada Lovelace"))
		require.NoError(t, mw.WriteField("email", "not-an-address"))
		require.NoError(t, mw.WriteField("description", "broken"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/tickets", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := s.do(req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "valid email address")
		// The form keeps what was already typed.
		assert.Contains(t, w.Body.String(), "Ada Lovelace")

		tickets, err := s.config.Service.ListTickets()
		require.NoError(t, err)
		assert.Empty(t, tickets)
	})
}

func TestAuth(t *testing.T) {
	t.Run("queue redirects to login when unauthenticated", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(httptest.NewRequest(http.MethodGet, "/queue", nil))
		require.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
	})

	t.Run("api returns 401 json when unauthenticated", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(httptest.NewRequest(http.MethodGet, "/api/tickets", nil))
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "technician login required")
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		s := newTestServer(t)
		form := url.Values{"password": {"wrong"}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := s.do(req)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Wrong password")
	})

	t.Run("empty configured password disables login", func(t *testing.T) {
		s := newTestServer(t)
		s.config.TechnicianPassword = ""
		assert.False(t, s.checkPassword(""))
		assert.False(t, s.checkPassword("anything"))
	})

	t.Run("login grants access to the queue", func(t *testing.T) {
		s := newTestServer(t)
		cookie := login(t, s)

		req := httptest.NewRequest(http.MethodGet, "/queue", nil)
		req.AddCookie(cookie)
		w := s.do(req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Triage queue")
	})
}

func TestQueue(t *testing.T) {
	s := newTestServer(t)
	ticket := createTicket(t, s, nil)
	cookie := login(t, s)

	t.Run("lists tickets with labels", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/queue", nil)
		req.AddCookie(cookie)
		w := s.do(req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), ticket.ClaimCode)
		assert.Contains(t, w.Body.String(), "broken screen")
	})

	t.Run("ticket detail shows history", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/queue/"+ticket.ID, nil)
		req.AddCookie(cookie)
		w := s.do(req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "front desk")
	})

	t.Run("unknown ticket is 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/queue/missing", nil)
		req.AddCookie(cookie)
		w := s.do(req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUpdateStatus(t *testing.T) {
	s := newTestServer(t)
	ticket := createTicket(t, s, nil)
	cookie := login(t, s)

	form := url.Values{"status": {"diagnosing"}, "note": {"on the bench"}}
	req := httptest.NewRequest(http.MethodPost, "/tickets/"+ticket.ID+"/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	w := s.do(req)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/queue/"+ticket.ID)

	updated, err := s.config.Service.LoadTicket(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDiagnosing, updated.Status)
	assert.Len(t, updated.StatusHistory, 2)
}

func TestReclassify(t *testing.T) {
	s := newTestServer(t)
	ticket := createTicket(t, s, nil)
	cookie := login(t, s)

	req := httptest.NewRequest(http.MethodPost, "/tickets/"+ticket.ID+"/reclassify", nil)
	req.AddCookie(cookie)
	w := s.do(req)
	require.Equal(t, http.StatusSeeOther, w.Code)
}

func TestStatusLookup(t *testing.T) {
	s := newTestServer(t)
	ticket := createTicket(t, s, nil)

	lookup := func(claim, email string) *httptest.ResponseRecorder {
		form := url.Values{"claim": {claim}, "email": {email}}
		req := httptest.NewRequest(http.MethodPost, "/status", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return s.do(req)
	}

	t.Run("claim code plus email reveals the status", func(t *testing.T) {
		w := lookup(strings.ToLower(ticket.ClaimCode), "ADA@example.com")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), ticket.ClaimCode)
		assert.Contains(t, w.Body.String(), "new")
	})

	t.Run("wrong email reveals nothing", func(t *testing.T) {
		w := lookup(ticket.ClaimCode, "intruder@example.com")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "No ticket matches")
		assert.NotContains(t, w.Body.String(), "History")
	})

	t.Run("wrong code reveals nothing", func(t *testing.T) {
		w := lookup("NOSUCH1", "ada@example.com")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "No ticket matches")
	})
}

func TestAttachmentDownload(t *testing.T) {
	s := newTestServer(t)
	ticket := createTicket(t, s, map[string][]byte{"crack.jpg": []byte("jpegdata")})
	cookie := login(t, s)

	t.Run("serves an indexed attachment", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tickets/"+ticket.ID+"/attachments/crack.jpg", nil)
		req.AddCookie(cookie)
		w := s.do(req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "jpegdata", w.Body.String())
	})

	t.Run("unknown filename is 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tickets/"+ticket.ID+"/attachments/other.jpg", nil)
		req.AddCookie(cookie)
		w := s.do(req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAPI(t *testing.T) {
	s := newTestServer(t)
	ticket := createTicket(t, s, nil)
	cookie := login(t, s)

	t.Run("lists tickets as json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tickets", nil)
		req.AddCookie(cookie)
		w := s.do(req)
		require.Equal(t, http.StatusOK, w.Code)

		var got []models.Ticket
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, ticket.ClaimCode, got[0].ClaimCode)
	})

	t.Run("single ticket by id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tickets/"+ticket.ID, nil)
		req.AddCookie(cookie)
		w := s.do(req)
		require.Equal(t, http.StatusOK, w.Code)

		var got models.Ticket
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, ticket.ID, got.ID)
	})

	t.Run("unknown id is 404 json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tickets/missing", nil)
		req.AddCookie(cookie)
		w := s.do(req)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "not found")
	})
}

func TestNewValidation(t *testing.T) {
	repo := db.NewTestRepo(t)
	svc := service.NewTicketService(repo, nil, "")

	_, err := New(Config{Repo: repo, SessionSecret: "secret"})
	assert.Error(t, err)

	_, err = New(Config{Service: svc, SessionSecret: "secret"})
	assert.Error(t, err)

	_, err = New(Config{Service: svc, Repo: repo})
	assert.Error(t, err)
}
