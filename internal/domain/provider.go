package domain

import (
	"context"
	"io"
)

// SubmitRequest is one conversion to hand to the provider.
type SubmitRequest struct {
	Filename     string
	Content      []byte
	TargetFormat string
}

// Provider defines the contract for the external asynchronous conversion service.
// Implementations return as soon as the provider has accepted the job; the outcome
// arrives later through the completion callback.
type Provider interface {
	// SubmitJob uploads the file and returns the provider-issued job id.
	SubmitJob(ctx context.Context, req SubmitRequest) (JobID, error)
}

// ArtifactFetcher retrieves a converted file from the URL the provider reported.
type ArtifactFetcher interface {
	FetchArtifact(ctx context.Context, url string) ([]byte, error)
}

// Artifact is a persisted converted file.
type Artifact struct {
	ID       ArtifactID
	Filename string
	Content  []byte
}

// ArtifactInfo is the metadata view of an Artifact.
type ArtifactInfo struct {
	ID       ArtifactID `json:"id"`
	Filename string     `json:"file_name"`
}

// ArtifactStore persists converted files keyed by a numeric id.
type ArtifactStore interface {
	// PersistArtifact stores the file and returns its newly assigned id.
	PersistArtifact(ctx context.Context, data []byte, filename string) (ArtifactID, error)

	// Artifact returns the stored file or ErrArtifactNotFound.
	Artifact(ctx context.Context, id ArtifactID) (Artifact, error)

	// Search lists artifacts whose filename contains term, case-insensitively.
	Search(ctx context.Context, term string) ([]ArtifactInfo, error)

	io.Closer
}
