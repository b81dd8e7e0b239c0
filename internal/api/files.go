package api

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dontdude/goconv/internal/domain"
)

var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".doc":  "application/msword",
	".ppt":  "application/vnd.ms-powerpoint",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

func contentType(filename string) string {
	if t, ok := mimeTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return t
	}
	return "application/octet-stream"
}

func artifactID(r *http.Request) (domain.ArtifactID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return domain.ArtifactID(id), true
}

// handleFile returns the metadata of one artifact.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	id, ok := artifactID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	a, err := s.store.Artifact(r.Context(), id)
	if err != nil {
		s.artifactError(w, id, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":           a.ID,
		"file_name":    a.Filename,
		"download_uri": fmt.Sprintf("/download/%d", a.ID),
	})
}

// handleDownload streams the stored bytes as an attachment.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := artifactID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	slog.Debug("Attempting to find file in database", "artifactID", id, "remoteAddr", r.RemoteAddr)
	a, err := s.store.Artifact(r.Context(), id)
	if err != nil {
		s.artifactError(w, id, err)
		return
	}

	w.Header().Set("Content-Type", contentType(a.Filename))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(a.Content); err != nil {
		slog.Debug("Download interrupted", "artifactID", id, "error", err)
	}
}

// handleSearch lists artifacts whose name contains the search term.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("search-term")
	results, err := s.store.Search(r.Context(), term)
	if err != nil {
		slog.Error("Search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if results == nil {
		results = []domain.ArtifactInfo{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"search_term": term,
		"files":       results,
	})
}

func (s *Server) artifactError(w http.ResponseWriter, id domain.ArtifactID, err error) {
	if errors.Is(err, domain.ErrArtifactNotFound) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	slog.Error("Failed to load artifact", "artifactID", id, "error", err)
	writeError(w, http.StatusInternalServerError, "Internal Server Error")
}
