package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dontdude/goconv/internal/domain"
)

// ErrPoolStopped is returned for submissions made after Stop.
var ErrPoolStopped = errors.New("submission pool stopped")

// Result is the provider's answer to one submission.
type Result struct {
	JobID domain.JobID
	Err   error
}

// Submission is a unit of work for the pool.
type Submission struct {
	Ctx     context.Context
	Request domain.SubmitRequest

	// ResultCh is where the worker sends the provider's answer.
	// It is send only (chan<-) so the worker cannot read from it.
	ResultCh chan<- Result
}

// Pool implements a fixed-size worker pool pattern.
// It throttles concurrent outbound calls to the conversion provider.
type Pool struct {
	// workerCount determines how many provider calls may be in flight.
	workerCount int
	// tasksCh is the queue for incoming submissions.
	tasksCh chan Submission
	// quit is closed by Stop.
	quit     chan struct{}
	stopOnce sync.Once
	// wg tracks active workers to ensure graceful shutdown.
	wg       sync.WaitGroup
	provider domain.Provider
}

// NewPool initializes the worker pool with a fixed concurrency limit.
func NewPool(concurrency int, provider domain.Provider) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		workerCount: concurrency,
		// Buffer the channel to allow non-blocking submission up to a certain point.
		tasksCh:  make(chan Submission, concurrency),
		quit:     make(chan struct{}),
		provider: provider,
	}
}

// Start spawns the fixed number of worker goroutines.
// It returns immediately.
func (p *Pool) Start() {
	slog.Info("Starting submission pool", "concurrency", p.workerCount)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop signals workers to exit after their current call and waits for them.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		slog.Info("Stopping submission pool, waiting for in-flight calls...")
		close(p.quit)
		p.wg.Wait()
		slog.Info("Submission pool stopped")
	})
}

// Submit queues req and waits for the provider's job id.
// It blocks while every worker is busy and the queue is full.
func (p *Pool) Submit(ctx context.Context, req domain.SubmitRequest) (domain.JobID, error) {
	resultCh := make(chan Result, 1)
	sub := Submission{Ctx: ctx, Request: req, ResultCh: resultCh}

	select {
	case p.tasksCh <- sub:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.quit:
		return "", ErrPoolStopped
	}

	select {
	case res := <-resultCh:
		return res.JobID, res.Err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.quit:
		return "", ErrPoolStopped
	}
}

// worker is the core logic that runs inside a goroutine.
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	slog.Debug("Worker started", "workerID", id)

	for {
		select {
		case <-p.quit:
			slog.Debug("Worker stopped", "workerID", id)
			return
		case sub := <-p.tasksCh:
			// The submitter may have given up while the call was queued.
			if err := sub.Ctx.Err(); err != nil {
				sub.ResultCh <- Result{Err: err}
				continue
			}

			slog.Debug("Submitting job", "workerID", id, "filename", sub.Request.Filename)
			jobID, err := p.provider.SubmitJob(sub.Ctx, sub.Request)
			sub.ResultCh <- Result{JobID: jobID, Err: err}
		}
	}
}
