package api

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dontdude/goconv/internal/domain"
)

// AuthorizedExtensions are the upload types the provider is asked to convert.
var AuthorizedExtensions = []string{
	".jpg",
	".jpeg",
	".png",
	".ppt",
	".pptx",
	".doc",
	".docx",
	".pdf",
}

func authorizedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range AuthorizedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

type convertForm struct {
	filename     string
	content      []byte
	targetFormat string
	sessionID    string
}

// handleConvert submits an uploaded file to the provider and records the
// calling session as the job's owner.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	log := slog.With("remoteAddr", r.RemoteAddr)
	log.Info("Received POST request on /api/convert")

	// 1. Read the multipart form
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}
	form, err := readConvertForm(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		log.Warn("Could not read convert form", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	// 2. Dependency checks
	if form.content == nil || form.filename == "" {
		log.Info("Could not find input file")
		writeError(w, http.StatusFailedDependency, "You need to upload a file!")
		return
	}
	if form.targetFormat == "" {
		log.Info("Could not find conversion type")
		writeError(w, http.StatusFailedDependency, "You need to choose a conversion type!")
		return
	}
	if !authorizedExtension(form.filename) {
		writeError(w, http.StatusUnsupportedMediaType, "Unsupported file type")
		return
	}

	owner := sessionFrom(w, r, form.sessionID)
	log = log.With("sessionID", owner)

	// 3. Submit through the pool
	jobID, err := s.submitter.Submit(r.Context(), domain.SubmitRequest{
		Filename:     form.filename,
		Content:      form.content,
		TargetFormat: form.targetFormat,
	})
	if err != nil {
		log.Error("Failed to submit job", "error", err)
		writeError(w, http.StatusBadGateway, "Something went wrong while trying to convert the requested file!")
		return
	}

	// 4. Remember who asked
	if err := s.bridge.Jobs.Register(jobID, owner); err != nil {
		log.Error("Failed to register job", "jobID", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	log.Info("Job submitted", "jobID", jobID)
	writeJSON(w, http.StatusOK, map[string]string{
		"job_id":  string(jobID),
		"status":  "queued",
		"message": "You will be redirected when your file(s) have completed converting.",
	})
}

// readConvertForm streams the parts so the upload is held in memory once.
func readConvertForm(r *http.Request) (convertForm, error) {
	var form convertForm

	mr, err := r.MultipartReader()
	if err != nil {
		return form, err
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			return form, err
		}

		switch part.FormName() {
		case "input_file":
			form.filename = filepath.Base(part.FileName())
			if form.filename == "." || form.filename == string(filepath.Separator) {
				form.filename = ""
			}
			form.content, err = io.ReadAll(part)
		case "conversion_type":
			form.targetFormat, err = readField(part)
		case SessionCookie:
			form.sessionID, err = readField(part)
		}
		_ = part.Close()
		if err != nil {
			return form, err
		}
	}
}

func readField(part *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, 1024))
	return strings.TrimSpace(string(b)), err
}
