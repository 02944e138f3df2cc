package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of one document within a run.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusUnchanged JobStatus = "unchanged"
	StatusFailed    JobStatus = "failed"
)

// Job tracks the processing of a single document.
type Job struct {
	mu sync.Mutex

	ID         string `json:"job_id"`
	RunID      string `json:"run_id"`
	Path       string `json:"path"`
	ProtocolID string `json:"protocol_id"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	task   Task
	done   func()
	errors []string
}

// Progress tracks what a task saw in the document.
type Progress struct {
	Elements     int      `json:"elements"`
	Changed      int      `json:"changed"`
	Unrecognized int      `json:"unrecognized"`
	Errors       []string `json:"errors"`
}

func newJob(run *Run, path, protocolID string) *Job {
	now := time.Now()
	return &Job{
		ID:         uuid.NewString(),
		RunID:      run.ID,
		Path:       path,
		ProtocolID: protocolID,
		Status:     StatusQueued,
		Phase:      "queued",
		CreatedAt:  now,
		UpdatedAt:  now,
		task:       run.task,
		done:       run.jobDone,
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// Record stores a task outcome.
func (j *Job) Record(o Outcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Elements += o.Elements
	j.Progress.Changed += o.Changed
	j.Progress.Unrecognized += o.Unrecognized
	j.UpdatedAt = time.Now()
}

// finish marks the job terminal and releases its slot in the run. It is
// safe to call more than once.
func (j *Job) finish(status JobStatus, phase string) {
	j.SetStatus(status, phase)
	j.mu.Lock()
	done := j.done
	j.done = nil
	j.mu.Unlock()
	if done != nil {
		done()
	}
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID         string    `json:"job_id"`
	RunID      string    `json:"run_id"`
	Path       string    `json:"path"`
	ProtocolID string    `json:"protocol_id"`
	Status     JobStatus `json:"status"`
	Phase      string    `json:"phase"`
	Progress   Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:         j.ID,
		RunID:      j.RunID,
		Path:       j.Path,
		ProtocolID: j.ProtocolID,
		Status:     j.Status,
		Phase:      j.Phase,
		Progress: Progress{
			Elements:     j.Progress.Elements,
			Changed:      j.Progress.Changed,
			Unrecognized: j.Progress.Unrecognized,
			Errors:       append([]string(nil), errs...),
		},
	}
}

// Run is one task applied to a listing of documents.
type Run struct {
	mu sync.Mutex

	ID        string
	Task      string
	CreatedAt time.Time

	task    Task
	jobs    []*Job
	listErr error
	pending sync.WaitGroup
	doneCh  chan struct{}
}

func newRun(task Task) *Run {
	r := &Run{
		ID:        uuid.NewString(),
		Task:      task.Name(),
		CreatedAt: time.Now(),
		task:      task,
		doneCh:    make(chan struct{}),
	}
	// Held until every document has been listed.
	r.pending.Add(1)
	go func() {
		r.pending.Wait()
		close(r.doneCh)
	}()
	return r
}

func (r *Run) addJob(j *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending.Add(1)
	r.jobs = append(r.jobs, j)
}

func (r *Run) jobDone() {
	r.pending.Done()
}

func (r *Run) listed(err error) {
	r.mu.Lock()
	r.listErr = err
	r.mu.Unlock()
	r.pending.Done()
}

// Done is closed once every listed document has reached a terminal status.
func (r *Run) Done() <-chan struct{} {
	return r.doneCh
}

// Wait blocks until the run is done or ctx ends, and returns the listing
// error, if any.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listErr
}

// Jobs returns the run's jobs in listing order.
func (r *Run) Jobs() []*Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Job(nil), r.jobs...)
}

// RunSnapshot summarizes a run.
type RunSnapshot struct {
	ID           string    `json:"run_id"`
	Task         string    `json:"task"`
	CreatedAt    time.Time `json:"created_at"`
	Done         bool      `json:"done"`
	Total        int       `json:"total"`
	Completed    int       `json:"completed"`
	Unchanged    int       `json:"unchanged"`
	Failed       int       `json:"failed"`
	Pending      int       `json:"pending"`
	Elements     int       `json:"elements"`
	Changed      int       `json:"changed"`
	Unrecognized int       `json:"unrecognized"`
	ListError    string    `json:"list_error,omitempty"`
	Errors       []string  `json:"errors"`
}

// Snapshot aggregates the current state of every job.
func (r *Run) Snapshot() RunSnapshot {
	s := RunSnapshot{
		ID:        r.ID,
		Task:      r.Task,
		CreatedAt: r.CreatedAt,
		Errors:    []string{},
	}
	select {
	case <-r.doneCh:
		s.Done = true
	default:
	}

	r.mu.Lock()
	if r.listErr != nil {
		s.ListError = r.listErr.Error()
	}
	jobs := append([]*Job(nil), r.jobs...)
	r.mu.Unlock()

	for _, j := range jobs {
		js := j.Snapshot()
		s.Total++
		switch js.Status {
		case StatusCompleted:
			s.Completed++
		case StatusUnchanged:
			s.Unchanged++
		case StatusFailed:
			s.Failed++
		default:
			s.Pending++
		}
		s.Elements += js.Progress.Elements
		s.Changed += js.Progress.Changed
		s.Unrecognized += js.Progress.Unrecognized
		for _, e := range js.Progress.Errors {
			s.Errors = append(s.Errors, js.Path+": "+e)
		}
	}
	return s
}

// JobStore is a thread-safe in-memory run registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	runs map[string]*Run
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		runs: make(map[string]*Run),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

func (s *JobStore) Get(id string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// Cleanup removes finished runs older than the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, run := range s.runs {
		select {
		case <-run.Done():
		default:
			continue
		}
		if now.Sub(run.CreatedAt) > s.ttl {
			delete(s.runs, id)
		}
	}
}

// Len returns the number of tracked runs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}
