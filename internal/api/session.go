package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dontdude/goconv/internal/domain"
)

// SessionCookie carries the browser's session id.
const SessionCookie = "session_id"

// sessionFrom returns the caller's session id from the cookie, then from
// fallback, and otherwise issues a new one and sets the cookie.
func sessionFrom(w http.ResponseWriter, r *http.Request, fallback string) domain.SessionID {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return domain.SessionID(c.Value)
	}
	if fallback != "" {
		return domain.SessionID(fallback)
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: false, // the page script echoes it in the socket handshake
		SameSite: http.SameSiteLaxMode,
	})
	return domain.SessionID(id)
}

// handleSession returns the caller's session id, issuing one if needed.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := sessionFrom(w, r, "")
	writeJSON(w, http.StatusOK, map[string]string{"session_id": string(id)})
}
