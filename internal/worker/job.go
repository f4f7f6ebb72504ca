package worker

import (
	"context"

	"resumecoach/internal/models"
)

// BatchProcessor runs a batch of documents to completion.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, batchID string, docs []models.Document, onReport func(*models.Report)) []*models.Report
}

// Job is one uploaded batch waiting for the worker.
type Job struct {
	Context context.Context
	BatchID string
	Docs    []models.Document

	progress chan *models.Report
	done     chan []*models.Report
}

func newJob(ctx context.Context, batchID string, docs []models.Document) Job {
	return Job{
		Context:  ctx,
		BatchID:  batchID,
		Docs:     docs,
		progress: make(chan *models.Report, len(docs)),
		done:     make(chan []*models.Report, 1),
	}
}
