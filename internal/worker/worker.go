package worker

import (
	"context"
	"time"

	"tldr-buffer/internal/model"
	"tldr-buffer/internal/store"

	"go.uber.org/zap"
)

// Summarizer defines the summarization step.
// This allows us to mock the provider call in tests.
type Summarizer interface {
	Complete(ctx context.Context, text string, params model.SummarizationParams) (model.SummarizationResult, error)
}

// JobStore is a document store that also carries the job queue.
type JobStore interface {
	store.Store
	store.Queue
}

// DefaultJobTimeout bounds a single summarization job.
const DefaultJobTimeout = 2 * time.Minute

type Worker struct {
	store      JobStore
	logger     *zap.Logger
	summarizer Summarizer
	params     model.SummarizationParams
	timeout    time.Duration
	now        func() time.Time
}

// NewWorker summarizes queued documents with params.
func NewWorker(st JobStore, sum Summarizer, params model.SummarizationParams, logger *zap.Logger) *Worker {
	return &Worker{
		store:      st,
		logger:     logger,
		summarizer: sum,
		params:     params,
		timeout:    DefaultJobTimeout,
		now:        time.Now,
	}
}

// Start runs the worker loop
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker started. Waiting for jobs...")

	for {
		// Wait for job (blocking)
		id, err := w.store.PopQueue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("Worker shutting down")
				return
			}
			w.logger.Error("Queue error", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		// Process
		w.processJob(ctx, id)
	}
}

func (w *Worker) processJob(ctx context.Context, id string) {
	logger := w.logger.With(zap.String("job_id", id))
	logger.Info("Processing started")

	// Fetch the queued document
	doc, found, err := w.store.Get(ctx, id)
	if err != nil {
		logger.Error("Job failed: store error", zap.Error(err))
		return
	}
	if !found {
		// Deleted or evicted while queued.
		logger.Warn("Job skipped: document not found")
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	start := w.now()
	res, err := w.summarizer.Complete(jobCtx, doc.RawText, w.params)
	if err != nil {
		logger.Error("Summarization failed",
			zap.String("kind", string(model.KindOf(err))),
			zap.Error(err),
		)
		w.failJob(ctx, doc, err.Error())
		return
	}

	doc.ApplySummary(res, w.params, w.now().UTC())

	// Save the result, unless the user deleted the document meanwhile
	stored, err := w.store.Update(ctx, doc)
	if err != nil {
		logger.Error("Failed to save result", zap.Error(err))
		return
	}
	if !stored {
		logger.Warn("Summary dropped: document deleted while summarizing")
		return
	}

	logger.Info("Summary complete",
		zap.String("title", doc.Title),
		zap.Int("key_points", len(res.KeyPoints)),
		zap.Duration("took", w.now().Sub(start)),
	)
}

func (w *Worker) failJob(ctx context.Context, doc *model.Document, msg string) {
	doc.SummaryError = msg
	if _, err := w.store.Update(ctx, doc); err != nil {
		w.logger.Error("Failed to record job failure", zap.String("job_id", doc.ID), zap.Error(err))
	}
}
