package worker

import (
	"resumecoach/internal/models"

	"github.com/rs/zerolog/log"
)

// Worker drains the job queue one batch at a time.
type Worker struct {
	processor BatchProcessor
	jobs      <-chan Job
	quit      chan struct{}
	stopped   chan struct{}
}

func NewWorker(jobs <-chan Job, processor BatchProcessor) *Worker {
	return &Worker{
		processor: processor,
		jobs:      jobs,
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

func (w *Worker) Start() {
	go func() {
		defer close(w.stopped)
		for {
			select {
			case job := <-w.jobs:
				w.handle(job)
			case <-w.quit:
				return
			}
		}
	}()
}

func (w *Worker) handle(job Job) {
	log.Debug().Str("batch_id", job.BatchID).Int("documents", len(job.Docs)).Msg("batch started")
	reports := w.processor.ProcessBatch(job.Context, job.BatchID, job.Docs, func(r *models.Report) {
		// buffered to len(Docs), never blocks
		job.progress <- r
	})
	job.done <- reports
	log.Debug().Str("batch_id", job.BatchID).Int("reports", len(reports)).Msg("batch finished")
}

// Stop waits for the batch in progress, if any, then exits.
func (w *Worker) Stop() {
	close(w.quit)
	<-w.stopped
}
