package api

import (
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// WebhookSecretHeader carries the shared secret configured at the provider.
const WebhookSecretHeader = "X-Webhook-Secret"

const maxCallbackBytes = 1 << 20

// handleFinished feeds a completion callback to the dispatcher. It always
// answers 200; "ok" only says whether a notification was delivered.
func (s *Server) handleFinished(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Warn("Completion callback too large")
		} else {
			slog.Warn("Failed to read completion callback", "error", err)
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": false})
		return
	}

	res := s.bridge.Dispatcher.Dispatch(r.Context(), body)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": res.OK})
}

// requireWebhookSecret rejects callbacks without the configured secret.
// With no secret configured every caller is accepted.
func (s *Server) requireWebhookSecret(next http.Handler) http.Handler {
	if s.opts.WebhookSecret == "" {
		return next
	}
	want := []byte(s.opts.WebhookSecret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get(WebhookSecretHeader))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			slog.Warn("Rejected webhook with bad secret", "remoteAddr", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
