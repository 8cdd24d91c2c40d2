// Package scheduler
package scheduler

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/clickforge/affiliate-tracker/app/services"
)

// JobHandler processes one popped job. A returned error requeues the job
// until the attempt budget is spent.
type JobHandler interface {
	Handle(ctx context.Context, job *services.Job) error
}

// QueueWorker drains the job queue and dispatches each job to the handler
// registered for its name. Unknown job names are dropped with a log line.
type QueueWorker struct {
	queue    services.QueueService
	handlers map[string]JobHandler
	logger   *log.Logger

	pollInterval time.Duration
	maxAttempts  int
	retryDelay   int
}

func NewQueueWorker(queue services.QueueService, pollInterval time.Duration) *QueueWorker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &QueueWorker{
		queue:        queue,
		handlers:     make(map[string]JobHandler),
		logger:       log.New(os.Stdout, "worker ", log.LstdFlags|log.Lmicroseconds|log.LUTC),
		pollInterval: pollInterval,
		maxAttempts:  3,
		retryDelay:   30,
	}
}

func (w *QueueWorker) Register(jobName string, handler JobHandler) {
	w.handlers[jobName] = handler
}

// Start launches the worker loop in a background goroutine and returns a stop function
func (w *QueueWorker) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()

		w.drain(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.drain(ctx)
			}
		}
	}()

	return cancel
}

// drain pops until the queue is empty or the context is cancelled
func (w *QueueWorker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.queue.Pop(ctx)
		if err != nil {
			w.logger.Printf("worker: pop failed: %v", err)
			return
		}
		if job == nil {
			return
		}
		w.dispatch(ctx, job)
	}
}

func (w *QueueWorker) dispatch(ctx context.Context, job *services.Job) {
	handler, ok := w.handlers[job.Name]
	if !ok {
		w.logger.Printf("worker: no handler for job %q, dropping", job.Name)
		return
	}

	if err := handler.Handle(ctx, job); err != nil {
		job.Attempts++
		if job.Attempts >= w.maxAttempts {
			w.logger.Printf("worker: job %q exhausted %d attempts, dropping: %v", job.Name, job.Attempts, err)
			return
		}
		w.logger.Printf("worker: job %q failed (attempt %d), requeueing: %v", job.Name, job.Attempts, err)
		if pushErr := w.queue.PushJob(ctx, job, w.retryDelay); pushErr != nil {
			w.logger.Printf("worker: requeue of job %q failed: %v", job.Name, pushErr)
		}
	}
}
