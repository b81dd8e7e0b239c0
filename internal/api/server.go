// Package api exposes the conversion service over HTTP and WebSocket.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dontdude/goconv/internal/bridge"
	"github.com/dontdude/goconv/internal/domain"
	"github.com/dontdude/goconv/internal/platform/web"
)

// Submitter hands a conversion to the provider and returns its job id.
type Submitter interface {
	Submit(ctx context.Context, req domain.SubmitRequest) (domain.JobID, error)
}

// Options are the HTTP-facing settings.
type Options struct {
	MaxUploadBytes int64
	WebhookSecret  string
	// RateLimiter guards submissions; nil disables limiting.
	RateLimiter *web.RateLimiter
}

// Server holds the handler dependencies.
type Server struct {
	bridge    *bridge.Bridge
	submitter Submitter
	store     domain.ArtifactStore
	opts      Options
}

// NewServer wires the handlers.
func NewServer(b *bridge.Bridge, submitter Submitter, store domain.ArtifactStore, opts Options) *Server {
	return &Server{
		bridge:    b,
		submitter: submitter,
		store:     store,
		opts:      opts,
	}
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(web.CORS)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.With(s.rateLimit).Post("/convert", s.handleConvert)
		r.Get("/search", s.handleSearch)
	})

	r.Get("/files/{id}", s.handleFile)
	r.Get("/download/{id}", s.handleDownload)
	r.Get("/ws", s.handleWS)

	r.With(s.requireWebhookSecret).Post("/webhooks/finished", s.handleFinished)

	return otelhttp.NewHandler(r, "goconv")
}

// handleHealth reports liveness and registry sizes.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"pending_jobs": s.bridge.Jobs.Len(),
		"connections":  s.bridge.Conns.Len(),
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.opts.RateLimiter == nil {
		return next
	}
	return s.opts.RateLimiter.Middleware(next)
}
