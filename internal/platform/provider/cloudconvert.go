package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dontdude/goconv/internal/domain"
)

// Task names of the three-step job graph submitted for every conversion.
const (
	taskImport  = "import-my-file"
	taskConvert = "convert-my-file"
	taskExport  = "export-my-file"
)

// CloudConvert submits jobs to the CloudConvert v2 API.
type CloudConvert struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Check if CloudConvert implements domain.Provider
var _ domain.Provider = (*CloudConvert)(nil)

// NewCloudConvert returns a client for the API rooted at baseURL
// (e.g. https://api.cloudconvert.com/v2).
func NewCloudConvert(baseURL, apiKey string, timeout time.Duration) *CloudConvert {
	return &CloudConvert{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type jobTask struct {
	Operation    string `json:"operation"`
	Input        string `json:"input,omitempty"`
	File         string `json:"file,omitempty"`
	Filename     string `json:"filename,omitempty"`
	OutputFormat string `json:"output_format,omitempty"`
}

type createJobRequest struct {
	Tasks map[string]jobTask `json:"tasks"`
	Tag   string             `json:"tag,omitempty"`
}

type createJobResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// SubmitJob creates an import -> convert -> export job and returns its id.
// It returns as soon as the provider accepted the job.
func (c *CloudConvert) SubmitJob(ctx context.Context, req domain.SubmitRequest) (domain.JobID, error) {
	// 1. Build the job graph
	payload := createJobRequest{
		Tasks: map[string]jobTask{
			taskImport: {
				Operation: "import/base64",
				File:      base64.StdEncoding.EncodeToString(req.Content),
				Filename:  req.Filename,
			},
			taskConvert: {
				Operation:    "convert",
				Input:        taskImport,
				OutputFormat: strings.ToLower(req.TargetFormat),
			},
			taskExport: {
				Operation: domain.OperationExportURL,
				Input:     taskConvert,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	// 2. Send it
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %w", domain.ErrProvider, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	slog.Info("Starting POST request to CloudConvert", "filename", req.Filename, "format", req.TargetFormat)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	// 3. Decode the job id
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Warn("Received error from CloudConvert", "status", resp.StatusCode, "body", string(snippet))
		return "", fmt.Errorf("%w: unexpected status %d", domain.ErrProvider, resp.StatusCode)
	}

	var created createJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", domain.ErrProvider, err)
	}
	if created.Data.ID == "" {
		return "", fmt.Errorf("%w: response carried no job id", domain.ErrProvider)
	}

	slog.Info("Received job from CloudConvert", "jobID", created.Data.ID)
	return domain.JobID(created.Data.ID), nil
}
