package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Worker processes one document at a time.
type Worker struct {
	log *slog.Logger
}

func NewWorker(log *slog.Logger) *Worker {
	return &Worker{log: log}
}

// Process runs the job's task against its document and records the outcome.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "run_id", job.RunID, "path", job.Path)

	name := job.task.Name()
	job.SetStatus(StatusRunning, name)
	start := time.Now()

	outcome, err := job.task.Process(ctx, job.Path)
	job.Record(outcome)

	status := StatusCompleted
	switch {
	case err != nil:
		status = StatusFailed
		log.Error("document failed", "error", err)
		job.AddError(err.Error())
	case !outcome.Written:
		status = StatusUnchanged
	}
	if outcome.Unrecognized > 0 {
		log.Warn("unrecognized elements", "count", outcome.Unrecognized)
	}

	observeDocument(name, status, outcome, time.Since(start))
	log.Debug("document processed", "status", status, "elements", outcome.Elements, "changed", outcome.Changed)
	job.finish(status, "done")
}
