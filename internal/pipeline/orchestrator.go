package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgallion1/protocorpus/internal/config"
	"github.com/dgallion1/protocorpus/internal/metadata"
)

// ErrStopped is returned when a run is started on a stopped orchestrator.
var ErrStopped = errors.New("orchestrator stopped")

// Orchestrator fans documents out to a fixed pool of workers. Each document
// is handled by exactly one worker; nothing is shared between workers.
type Orchestrator struct {
	jobs  *JobStore
	queue chan *Job
	log   *slog.Logger
	cfg   config.Config

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start before starting runs.
func NewOrchestrator(cfg config.Config, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:  NewJobStore(cfg.JobTTL),
		queue: make(chan *Job, cfg.MaxQueueSize),
		log:   log,
		cfg:   cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	workerCtx, cancel := context.WithCancel(ctx)
	o.ctx = workerCtx
	o.cancel = cancel

	for i := range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.log.With("worker", i))
			for {
				select {
				case <-workerCtx.Done():
					return
				case job := <-o.queue:
					queueDepth.Set(float64(len(o.queue)))
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start run store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop cancels in-flight work, waits for workers and listers to exit, and
// fails every job still queued.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	if o.cancel != nil {
		o.cancel()
	}
	o.mu.Unlock()

	o.wg.Wait()

	for {
		select {
		case job := <-o.queue:
			job.AddError("cancelled before processing")
			job.finish(StatusFailed, "cancelled")
		default:
			queueDepth.Set(0)
			return
		}
	}
}

// StartRun applies task to every path in paths. Listing and queueing happen
// in the background; use the returned Run to wait or inspect progress. ctx
// bounds listing and queueing only.
func (o *Orchestrator) StartRun(ctx context.Context, task Task, paths iter.Seq2[string, error]) (*Run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return nil, ErrStopped
	}
	if o.ctx == nil {
		return nil, fmt.Errorf("orchestrator not started")
	}

	run := newRun(task)
	o.jobs.Put(run)
	log := o.log.With("run_id", run.ID, "task", run.Task)
	log.Info("run started")

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		err := o.enqueue(ctx, run, paths)
		if err != nil {
			log.Error("listing failed", "error", err)
		}
		run.listed(err)
	}()

	go func() {
		<-run.Done()
		s := run.Snapshot()
		log.Info("run finished",
			"total", s.Total,
			"completed", s.Completed,
			"unchanged", s.Unchanged,
			"failed", s.Failed,
			"unrecognized", s.Unrecognized,
		)
	}()

	return run, nil
}

func (o *Orchestrator) enqueue(ctx context.Context, run *Run, paths iter.Seq2[string, error]) error {
	for path, err := range paths {
		if err != nil {
			return err
		}

		job := newJob(run, path, metadata.Infer(filepath.Base(path)).ProtocolID)
		run.addJob(job)

		select {
		case o.queue <- job:
			queueDepth.Set(float64(len(o.queue)))
		case <-ctx.Done():
			job.finish(StatusFailed, "cancelled")
			return ctx.Err()
		case <-o.ctx.Done():
			job.finish(StatusFailed, "cancelled")
			return ErrStopped
		}
	}
	return nil
}

// GetRun returns a run by ID.
func (o *Orchestrator) GetRun(id string) *Run {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
