// Package server provides the HTTP server for the fixdesk web UI.
//
// The UI has three faces: the public intake form for front-desk staff,
// the password-gated technician queue, and the customer status lookup.
// A small JSON API sits alongside for scripting.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"

	"github.com/fixdesk/fixdesk/internal/db"
	"github.com/fixdesk/fixdesk/internal/service"
)

// Config holds the server configuration.
type Config struct {
	// Port is the TCP port to listen on (default 8470).
	Port int

	// Host is the address to bind to (default "localhost").
	Host string

	// Service provides all ticket operations.
	Service *service.TicketService

	// Repo resolves attachment paths for downloads.
	Repo *db.TicketRepo

	// TechnicianPassword gates the queue pages. An empty password
	// disables technician login entirely.
	TechnicianPassword string

	// SessionSecret signs session cookies and CSRF tokens.
	SessionSecret string

	// Secure marks cookies as HTTPS-only. Leave false for the typical
	// shop-LAN deployment behind plain HTTP.
	Secure bool

	// Logger for server events (optional).
	Logger *log.Logger
}

// Server is the HTTP server for the fixdesk web UI.
type Server struct {
	config     Config
	httpServer *http.Server
	router     *http.ServeMux
	sessions   *sessions.CookieStore
	logger     *log.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) (*Server, error) {
	if config.Service == nil {
		return nil, fmt.Errorf("ticket service is required")
	}
	if config.Repo == nil {
		return nil, fmt.Errorf("ticket repo is required")
	}
	if config.SessionSecret == "" {
		return nil, fmt.Errorf("session secret is required; run fixdesk init")
	}

	if config.Port == 0 {
		config.Port = 8470
	}
	if config.Host == "" {
		config.Host = "localhost"
	}

	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[fixdesk-server] ", log.LstdFlags)
	}

	store := sessions.NewCookieStore([]byte(config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   12 * 60 * 60,
		HttpOnly: true,
		Secure:   config.Secure,
	}

	s := &Server{
		config:   config,
		router:   http.NewServeMux(),
		sessions: store,
		logger:   logger,
	}

	s.setupRoutes()

	return s, nil
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	protect := csrf.Protect(
		[]byte(s.config.SessionSecret),
		csrf.Secure(s.config.Secure),
		csrf.Path("/"),
	)
	return protect(s.router)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Printf("Starting server at http://%s", listener.Addr())
	return s.httpServer.Serve(listener)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Printf("Shutting down server...")
	return s.httpServer.Shutdown(ctx)
}

// Address returns the configured bind address.
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
