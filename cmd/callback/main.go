package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dontdude/goconv/internal/api"
	"github.com/dontdude/goconv/internal/domain"
)

type options struct {
	server   string
	jobID    string
	fileURL  string
	filename string
	secret   string
}

func main() {
	// 1. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand builds a tool that plays the provider's side of a finished
// job, for exercising a running server by hand.
func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "goconv-callback",
		Short:        "Send a simulated job.finished callback to a goconv server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return send(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "http://localhost:8000", "base URL of the goconv server")
	cmd.Flags().StringVar(&opts.jobID, "job", "", "provider job id to report as finished")
	cmd.Flags().StringVar(&opts.fileURL, "file-url", "", "download URL of the converted file; empty reports a failure")
	cmd.Flags().StringVar(&opts.filename, "filename", "converted.pdf", "name of the converted file")
	cmd.Flags().StringVar(&opts.secret, "secret", "", "webhook secret, if the server requires one")
	_ = cmd.MarkFlagRequired("job")

	return cmd
}

func send(ctx context.Context, opts *options) error {
	// 2. Build the payload
	file := domain.TaskFile{Filename: opts.filename}
	if opts.fileURL != "" {
		file.URL = &opts.fileURL
	}
	body, err := json.Marshal(domain.Callback{
		Event: domain.EventJobFinished,
		Job: &domain.CallbackJob{
			ID: opts.jobID,
			Tasks: []domain.CallbackTask{
				{
					Name:      "export-my-file",
					Operation: domain.OperationExportURL,
					Status:    "finished",
					Result:    domain.TaskResult{Files: []domain.TaskFile{file}},
				},
			},
		},
	})
	if err != nil {
		return err
	}

	// 3. Post it
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.server+"/webhooks/finished", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if opts.secret != "" {
		req.Header.Set(api.WebhookSecretHeader, opts.secret)
	}

	slog.Info("Sending callback", "jobID", opts.jobID, "server", opts.server)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Error("Failed to send callback", "error", err)
		return err
	}
	defer resp.Body.Close()

	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server answered %s: %s", resp.Status, bytes.TrimSpace(reply))
	}

	slog.Info("Callback accepted", "jobID", opts.jobID, "response", string(bytes.TrimSpace(reply)))
	return nil
}
