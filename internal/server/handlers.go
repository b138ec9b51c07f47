package server

import (
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/csrf"

	"github.com/fixdesk/fixdesk/internal/db"
	apperrors "github.com/fixdesk/fixdesk/internal/errors"
	"github.com/fixdesk/fixdesk/internal/models"
	"github.com/fixdesk/fixdesk/internal/notify"
)

// maxUploadBytes bounds an intake submission including attachments.
const maxUploadBytes = 32 << 20

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    status,
		Message: message,
	})
}

// writeAppError maps an application error to its HTTP status.
func writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.GetHTTPStatus(err)
	writeError(w, status, err.Error())
}

// wantsJSON reports whether the client expects a JSON response.
func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

// Front desk intake

type intakeData struct {
	CSRF  template.HTML
	Error string
	Form  url.Values
}

func (s *Server) handleIntakeForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "intake.html", intakeData{
		CSRF: csrf.TemplateField(r),
		Form: url.Values{},
	})
}

func (s *Server) handleIntakeSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.render(w, http.StatusBadRequest, "intake.html", intakeData{
			CSRF:  csrf.TemplateField(r),
			Error: "could not read the submitted form",
			Form:  url.Values{},
		})
		return
	}

	retry := func(status int, msg string) {
		s.render(w, status, "intake.html", intakeData{
			CSRF:  csrf.TemplateField(r),
			Error: msg,
			Form:  r.MultipartForm.Value,
		})
	}

	// Validate up front so the clerk gets a usable error with the form
	// still filled in.
	if !models.HasFullName(r.FormValue("name")) {
		retry(http.StatusBadRequest, "Please enter the customer's first and last name.")
		return
	}
	if !notify.ValidEmail(r.FormValue("email")) {
		retry(http.StatusBadRequest, "Please enter a valid email address.")
		return
	}
	if strings.TrimSpace(r.FormValue("description")) == "" {
		retry(http.StatusBadRequest, "Please describe the problem.")
		return
	}

	var attachments []db.AttachmentInput
	for _, header := range r.MultipartForm.File["attachments"] {
		if header.Filename == "" || !db.AllowedFile(header.Filename) {
			continue
		}
		f, err := header.Open()
		if err != nil {
			continue
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			continue
		}
		attachments = append(attachments, db.RawBytes{
			Name:    header.Filename,
			Content: content,
			Mime:    header.Header.Get("Content-Type"),
		})
	}

	ticket, err := s.config.Service.CreateTicket(db.CreateTicket{
		Name:        r.FormValue("name"),
		Email:       r.FormValue("email"),
		Phone:       r.FormValue("phone"),
		DeviceType:  r.FormValue("device_type"),
		Brand:       r.FormValue("brand"),
		Model:       r.FormValue("model"),
		Serial:      r.FormValue("serial"),
		Accessories: r.FormValue("accessories"),
		Description: r.FormValue("description"),
		Attachments: attachments,
		Actor:       "front desk",
	})
	if err != nil {
		s.logger.Printf("intake failed: %v", err)
		retry(apperrors.GetHTTPStatus(err), err.Error())
		return
	}

	s.render(w, http.StatusOK, "confirm.html", map[string]interface{}{
		"Ticket": ticket,
	})
}

// Customer status lookup

type statusData struct {
	CSRF   template.HTML
	Error  string
	Claim  string
	Email  string
	Ticket *models.Ticket
}

func (s *Server) handleStatusForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "status.html", statusData{
		CSRF:  csrf.TemplateField(r),
		Claim: r.URL.Query().Get("claim"),
	})
}

func (s *Server) handleStatusLookup(w http.ResponseWriter, r *http.Request) {
	claim := r.FormValue("claim")
	email := r.FormValue("email")

	ticket, err := s.config.Service.LookupStatus(claim, email)
	if err != nil {
		s.render(w, http.StatusOK, "status.html", statusData{
			CSRF:  csrf.TemplateField(r),
			Error: "No ticket matches that claim code and email.",
			Claim: claim,
			Email: email,
		})
		return
	}

	s.render(w, http.StatusOK, "status.html", statusData{
		CSRF:   csrf.TemplateField(r),
		Claim:  claim,
		Email:  email,
		Ticket: ticket,
	})
}

// Technician login

type loginData struct {
	CSRF  template.HTML
	Error string
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login.html", loginData{CSRF: csrf.TemplateField(r)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.checkPassword(r.FormValue("password")) {
		s.render(w, http.StatusUnauthorized, "login.html", loginData{
			CSRF:  csrf.TemplateField(r),
			Error: "Wrong password.",
		})
		return
	}
	if err := s.setTech(w, r, true); err != nil {
		s.logger.Printf("save session: %v", err)
		writeError(w, http.StatusInternalServerError, "could not start session")
		return
	}
	http.Redirect(w, r, "/queue", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.setTech(w, r, false); err != nil {
		s.logger.Printf("clear session: %v", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Technician queue

type queueData struct {
	Tickets []*models.Ticket
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.config.Service.ListTickets()
	if err != nil {
		s.logger.Printf("list tickets: %v", err)
		writeAppError(w, err)
		return
	}
	s.render(w, http.StatusOK, "queue.html", queueData{Tickets: tickets})
}

type ticketData struct {
	CSRF     template.HTML
	Ticket   *models.Ticket
	Statuses []models.Status
	Notice   string
}

func (s *Server) handleQueueTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.config.Service.LoadTicket(r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.render(w, http.StatusOK, "ticket.html", ticketData{
		CSRF:     csrf.TemplateField(r),
		Ticket:   ticket,
		Statuses: s.config.Service.Statuses(),
		Notice:   r.URL.Query().Get("notice"),
	})
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status := models.Status(r.FormValue("status"))
	note := strings.TrimSpace(r.FormValue("note"))

	_, res, err := s.config.Service.UpdateTicketStatus(id, status, note, "technician")
	if err != nil {
		writeAppError(w, err)
		return
	}

	notice := "Status updated. " + res.Message
	if !res.OK {
		notice = "Status updated, but the customer was not notified: " + res.Message
	}
	http.Redirect(w, r, "/queue/"+id+"?notice="+url.QueryEscape(notice), http.StatusSeeOther)
}

func (s *Server) handleReclassify(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.config.Service.ReclassifyTicket(id); err != nil {
		writeAppError(w, err)
		return
	}
	http.Redirect(w, r, "/queue/"+id+"?notice="+url.QueryEscape("Labels refreshed."), http.StatusSeeOther)
}

// handleAttachment streams an attachment file. The filename must match
// one indexed on the ticket; path resolution refuses anything that
// would leave the ticket's directory.
func (s *Server) handleAttachment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	filename := r.PathValue("filename")

	ticket, err := s.config.Service.LoadTicket(id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	var match *models.Attachment
	for i := range ticket.Attachments {
		if ticket.Attachments[i].Filename == filename {
			match = &ticket.Attachments[i]
			break
		}
	}
	if match == nil {
		writeError(w, http.StatusNotFound, "attachment not found")
		return
	}

	path, err := s.config.Repo.AttachmentPath(id, filename)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if match.Mime != "" {
		w.Header().Set("Content-Type", match.Mime)
	}
	http.ServeFile(w, r, path)
}

// JSON API

func (s *Server) handleAPITickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.config.Service.ListTickets()
	if err != nil {
		writeAppError(w, err)
		return
	}
	if tickets == nil {
		tickets = []*models.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (s *Server) handleAPITicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.config.Service.LoadTicket(r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}
