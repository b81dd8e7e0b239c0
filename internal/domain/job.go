package domain

import (
	"errors"
	"time"
)

// JobID is the identifier the external provider issues for one submitted conversion.
type JobID string

// SessionID identifies one browser session (tab) that can own jobs and hold a socket.
type SessionID string

// ArtifactID is the local identifier of a persisted, converted file.
type ArtifactID int64

// Status is the outcome carried by a Notification.
type Status int

const (
	// StatusPending is a placeholder and is never sent to a client.
	StatusPending Status = iota
	StatusFailed
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFailed:
		return "failed"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// PendingJob links a submitted job to the session that asked for it.
type PendingJob struct {
	JobID        JobID
	Owner        SessionID
	RegisteredAt time.Time
}

// Notification is the terminal message routed to the owning session.
// ArtifactRef is only meaningful when Status is StatusCompleted.
type Notification struct {
	JobID       JobID
	Status      Status
	ArtifactRef *ArtifactID
}

// Completed builds a successful notification for the given artifact.
func Completed(job JobID, artifact ArtifactID) Notification {
	return Notification{JobID: job, Status: StatusCompleted, ArtifactRef: &artifact}
}

// Failed builds a failure notification.
func Failed(job JobID) Notification {
	return Notification{JobID: job, Status: StatusFailed}
}

var (
	// ErrDuplicateJob is returned when a job id is registered twice.
	ErrDuplicateJob = errors.New("duplicate job")
	// ErrAlreadyConnected is returned when a session already has a live connection.
	ErrAlreadyConnected = errors.New("session already connected")
	// ErrUnknownJob means no pending entry exists (never submitted, or already resolved).
	ErrUnknownJob = errors.New("job has no assigned session")
	// ErrMalformedCallback is returned for callbacks that do not match the expected shape.
	ErrMalformedCallback = errors.New("malformed callback")
	// ErrMissingExportTask means the callback has no export step.
	ErrMissingExportTask = errors.New("callback has no export task")
	// ErrArtifactFetch wraps failures retrieving a converted file.
	ErrArtifactFetch = errors.New("artifact fetch failed")
	// ErrArtifactPersist wraps failures storing a converted file.
	ErrArtifactPersist = errors.New("artifact persist failed")
	// ErrDisconnectedOwner means the owning session has no live connection.
	ErrDisconnectedOwner = errors.New("owner is not connected")
	// ErrSinkClosed is returned when delivering to a session that has already gone away.
	ErrSinkClosed = errors.New("delivery sink closed")
	// ErrArtifactNotFound is returned by stores for unknown ids.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrProvider wraps failures talking to the conversion provider.
	ErrProvider = errors.New("provider error")
)
