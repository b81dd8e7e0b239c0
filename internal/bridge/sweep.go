package bridge

import (
	"context"
	"log/slog"
	"time"
)

// StartSweepRoutine periodically drops pending jobs older than maxAge.
// Without it an unanswered job stays registered for the life of the process.
func (r *JobRegistry) StartSweepRoutine(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 || maxAge <= 0 {
		slog.Info("Pending job sweep disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Starting pending job sweep", "interval", interval, "maxAge", maxAge)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired := r.Sweep(maxAge)
			if len(expired) == 0 {
				continue
			}

			sweptJobs.Add(float64(len(expired)))
			for _, p := range expired {
				slog.Warn("Dropped stale pending job", "jobID", p.JobID, "sessionID", p.Owner, "age", time.Since(p.RegisteredAt))
			}
		}
	}
}
