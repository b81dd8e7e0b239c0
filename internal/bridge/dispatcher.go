package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dontdude/goconv/internal/domain"
)

// Bounds on the work done for a claimed job. The claim is irreversible, so
// these replace the callback request's context once the job is claimed.
const (
	materializeTimeout = 2 * time.Minute
	deliverTimeout     = 10 * time.Second
)

// DispatchResult reports whether a callback caused a delivery.
// OK is false for every "no action taken" path; it says nothing about whether
// the conversion itself succeeded.
type DispatchResult struct {
	OK           bool
	JobID        domain.JobID
	Owner        domain.SessionID
	Notification *domain.Notification
	// Err names the reason OK is false, or the degraded path taken when OK is true.
	Err error
}

// NotificationDispatcher turns completion callbacks into notifications for the
// owning session. It only produces into session sinks and never touches sockets.
type NotificationDispatcher struct {
	jobs    *JobRegistry
	conns   *ConnectionRegistry
	fetcher domain.ArtifactFetcher
	store   domain.ArtifactStore
}

// NewNotificationDispatcher wires the dispatcher to its registries and collaborators.
func NewNotificationDispatcher(jobs *JobRegistry, conns *ConnectionRegistry, fetcher domain.ArtifactFetcher, store domain.ArtifactStore) *NotificationDispatcher {
	return &NotificationDispatcher{
		jobs:    jobs,
		conns:   conns,
		fetcher: fetcher,
		store:   store,
	}
}

// Dispatch handles one raw callback body. A job is claimed from the registry
// before any side effect, so a job is dispatched at most once even when the
// provider delivers the callback repeatedly or concurrently.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, body []byte) DispatchResult {
	// 1. Validate the payload shape
	cb, err := domain.ParseCallback(body)
	if err != nil {
		slog.Warn("Rejected completion callback", "error", err)
		dispatchTotal.WithLabelValues(resultMalformed).Inc()
		return DispatchResult{Err: err}
	}

	jobID := domain.JobID(cb.Job.ID)
	log := slog.With("jobID", jobID)
	log.Info("Received completion callback")

	// 2. Claim the job
	owner, found := d.jobs.ResolveAndRemove(jobID)
	if !found {
		log.Warn("Job has no assigned session")
		dispatchTotal.WithLabelValues(resultUnknownJob).Inc()
		return DispatchResult{JobID: jobID, Err: domain.ErrUnknownJob}
	}
	log = log.With("sessionID", owner)

	// From here on the outcome must reach the owner even if the provider
	// hangs up on the callback.
	ctx = context.WithoutCancel(ctx)

	// 3. Locate the export step. The claim above is irreversible, so the owner
	// still gets a failure notice if it is connected.
	task, found := cb.Job.ExportTask()
	if !found {
		log.Warn("Callback does not contain an export task")
		dispatchTotal.WithLabelValues(resultNoExportTask).Inc()
		failed := domain.Failed(jobID)
		if sink, ok := d.conns.Lookup(owner); ok {
			if err := d.deliver(ctx, sink, failed); err != nil {
				log.Debug("Could not deliver failure notice", "error", err)
			}
		}
		return DispatchResult{JobID: jobID, Owner: owner, Notification: &failed, Err: domain.ErrMissingExportTask}
	}

	// 4. Fetch and persist the artifact, degrading to Failed on any error
	workCtx, cancel := context.WithTimeout(ctx, materializeTimeout)
	n, outcomeErr := d.materialize(workCtx, jobID, task)
	cancel()
	if outcomeErr != nil {
		log.Error("Conversion outcome degraded to failure", "error", outcomeErr)
	}

	// 5. Find the owner's live connection
	sink, found := d.conns.Lookup(owner)
	if !found {
		log.Warn("Client disconnected before job was finished")
		dispatchTotal.WithLabelValues(resultDisconnected).Inc()
		return DispatchResult{JobID: jobID, Owner: owner, Notification: &n, Err: domain.ErrDisconnectedOwner}
	}

	// 6. Hand it over
	if err := d.deliver(ctx, sink, n); err != nil {
		log.Warn("Failed to deliver notification", "error", err)
		dispatchTotal.WithLabelValues(resultSinkClosed).Inc()
		return DispatchResult{JobID: jobID, Owner: owner, Notification: &n, Err: err}
	}

	dispatchTotal.WithLabelValues(resultDelivered).Inc()
	log.Info("Dispatched notification", "status", n.Status.String())
	return DispatchResult{OK: true, JobID: jobID, Owner: owner, Notification: &n, Err: outcomeErr}
}

func (d *NotificationDispatcher) deliver(ctx context.Context, sink *Sink, n domain.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()
	return sink.Deliver(ctx, n)
}

// materialize builds the terminal notification for the export task. The
// returned error explains a Failed notification; the notification is always usable.
func (d *NotificationDispatcher) materialize(ctx context.Context, jobID domain.JobID, task domain.CallbackTask) (domain.Notification, error) {
	if len(task.Result.Files) == 0 {
		return domain.Failed(jobID), fmt.Errorf("%w: export task has no files", domain.ErrArtifactFetch)
	}

	file := task.Result.Files[0]
	if file.URL == nil || *file.URL == "" {
		return domain.Failed(jobID), fmt.Errorf("%w: export file %q has no url", domain.ErrArtifactFetch, file.Filename)
	}

	data, err := d.fetcher.FetchArtifact(ctx, *file.URL)
	if err != nil {
		if !errors.Is(err, domain.ErrArtifactFetch) {
			err = fmt.Errorf("%w: %w", domain.ErrArtifactFetch, err)
		}
		return domain.Failed(jobID), err
	}

	id, err := d.store.PersistArtifact(ctx, data, file.Filename)
	if err != nil {
		if !errors.Is(err, domain.ErrArtifactPersist) {
			err = fmt.Errorf("%w: %w", domain.ErrArtifactPersist, err)
		}
		return domain.Failed(jobID), err
	}

	return domain.Completed(jobID, id), nil
}
