package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// WebSocket Upgrader (Gorilla)
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // Same policy as the CORS middleware
}

// handleWS upgrades the connection and runs a notification session on it.
// The session id arrives in the first frame, not in the request.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	slog.Info("Received socket connection", "remoteAddr", conn.RemoteAddr(), "userAgent", r.UserAgent())
	s.bridge.Serve(conn)
}
