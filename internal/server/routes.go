package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	// Front desk intake
	s.router.HandleFunc("GET /{$}", s.handleIntakeForm)
	s.router.HandleFunc("POST /tickets", s.handleIntakeSubmit)

	// Customer status lookup
	s.router.HandleFunc("GET /status", s.handleStatusForm)
	s.router.HandleFunc("POST /status", s.handleStatusLookup)

	// Technician login
	s.router.HandleFunc("GET /login", s.handleLoginForm)
	s.router.HandleFunc("POST /login", s.handleLogin)
	s.router.HandleFunc("POST /logout", s.handleLogout)

	// Technician queue
	s.router.HandleFunc("GET /queue", s.requireTech(s.handleQueue))
	s.router.HandleFunc("GET /queue/{id}", s.requireTech(s.handleQueueTicket))
	s.router.HandleFunc("POST /tickets/{id}/status", s.requireTech(s.handleUpdateStatus))
	s.router.HandleFunc("POST /tickets/{id}/reclassify", s.requireTech(s.handleReclassify))
	s.router.HandleFunc("GET /tickets/{id}/attachments/{filename}", s.requireTech(s.handleAttachment))

	// JSON API
	s.router.HandleFunc("GET /api/tickets", s.requireTech(s.handleAPITickets))
	s.router.HandleFunc("GET /api/tickets/{id}", s.requireTech(s.handleAPITicket))
	s.router.HandleFunc("GET /api/health", s.handleHealth)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.config.Repo.Count()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "degraded",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"tickets": count,
	})
}
