package worker

import (
	"context"
	"errors"
	"sync"

	"resumecoach/internal/models"
)

var (
	// ErrDispatcherBusy is returned when the job queue is full.
	ErrDispatcherBusy = errors.New("dispatcher busy")
	// ErrDispatcherStopped is returned after Stop.
	ErrDispatcherStopped = errors.New("dispatcher stopped")
)

const defaultQueueSize = 8

// Dispatcher funnels every batch through a single worker so that at most one
// remote completion call is in flight process-wide.
type Dispatcher struct {
	JobQueue chan Job
	worker   *Worker

	mu      sync.RWMutex
	stopped bool
}

func NewDispatcher(queueSize int, processor BatchProcessor) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	jobQueue := make(chan Job, queueSize)
	d := &Dispatcher{
		JobQueue: jobQueue,
		worker:   NewWorker(jobQueue, processor),
	}
	d.worker.Start()
	return d
}

// Submit enqueues job without blocking.
func (d *Dispatcher) Submit(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.JobQueue <- job:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

// Ticket tracks a batch accepted by Enqueue.
type Ticket struct {
	job     Job
	stopped <-chan struct{}
}

// Enqueue submits a batch without waiting for it.
func (d *Dispatcher) Enqueue(ctx context.Context, batchID string, docs []models.Document) (*Ticket, error) {
	job := newJob(ctx, batchID, docs)
	if err := d.Submit(job); err != nil {
		return nil, err
	}
	return &Ticket{job: job, stopped: d.worker.stopped}, nil
}

// Run submits a batch and waits for it.
func (d *Dispatcher) Run(ctx context.Context, batchID string, docs []models.Document, onReport func(*models.Report)) ([]*models.Report, error) {
	ticket, err := d.Enqueue(ctx, batchID, docs)
	if err != nil {
		return nil, err
	}
	return ticket.Wait(ctx, onReport)
}

// Wait blocks until the batch finishes. onReport is called on the caller's
// goroutine, in document order, as each report completes.
func (t *Ticket) Wait(ctx context.Context, onReport func(*models.Report)) ([]*models.Report, error) {
	job := t.job
	deliver := func(r *models.Report) {
		if onReport != nil {
			onReport(r)
		}
	}
	drain := func() {
		for len(job.progress) > 0 {
			deliver(<-job.progress)
		}
	}
	for {
		select {
		case r := <-job.progress:
			deliver(r)
		case reports := <-job.done:
			drain()
			return reports, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.stopped:
			select {
			case reports := <-job.done:
				drain()
				return reports, nil
			default:
				return nil, ErrDispatcherStopped
			}
		}
	}
}

// Pending reports the number of queued batches.
func (d *Dispatcher) Pending() int {
	return len(d.JobQueue)
}

// Stop rejects new jobs and waits for the running batch to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()
	d.worker.Stop()
}
