package server

import (
	"crypto/subtle"
	"net/http"
)

const sessionName = "fixdesk-session"

// isTech reports whether the request carries an authenticated
// technician session.
func (s *Server) isTech(r *http.Request) bool {
	session, err := s.sessions.Get(r, sessionName)
	if err != nil {
		return false
	}
	authed, ok := session.Values["technician"].(bool)
	return ok && authed
}

// requireTech redirects unauthenticated requests to the login page.
func (s *Server) requireTech(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.isTech(r) {
			if wantsJSON(r) {
				writeError(w, http.StatusUnauthorized, "technician login required")
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// checkPassword compares the submitted password in constant time. An
// empty configured password disables technician login outright.
func (s *Server) checkPassword(submitted string) bool {
	configured := s.config.TechnicianPassword
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(configured)) == 1
}

// setTech marks or clears the technician flag on the session.
func (s *Server) setTech(w http.ResponseWriter, r *http.Request, authed bool) error {
	session, _ := s.sessions.Get(r, sessionName)
	if authed {
		session.Values["technician"] = true
	} else {
		session.Options.MaxAge = -1
	}
	return session.Save(r, w)
}
