// Package pipeline runs the multi document generation steps started over
// WebSockets and keeps at most one live run per project, user and step.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"bacopilot/internal/documents"
	"bacopilot/internal/metrics"
)

var ErrRegistryClosed = errors.New("pipeline registry is shut down")

type Key struct {
	ProjectID uint
	UserID    uint
	Step      documents.Step
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%s", k.ProjectID, k.UserID, k.Step)
}

// Job is one running step. Err is valid once Done is closed.
type Job struct {
	id     uint64
	key    Key
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// ID is unique per registry. A replacement job for the same key gets a new id.
func (j *Job) ID() uint64 { return j.id }

func (j *Job) Key() Key { return j.key }

func (j *Job) Done() <-chan struct{} { return j.done }

func (j *Job) Err() error {
	select {
	case <-j.done:
		return j.err
	default:
		return nil
	}
}

func (j *Job) Cancel() { j.cancel() }

// Wait blocks until the job ends or ctx is done.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Registry struct {
	mu     sync.Mutex
	jobs   map[Key]*Job
	seq    uint64
	closed bool

	base       context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup
}

func NewRegistry() *Registry {
	base, cancel := context.WithCancel(context.Background())
	return &Registry{
		jobs:       make(map[Key]*Job),
		base:       base,
		cancelBase: cancel,
	}
}

// Start runs fn as the job for key. A job already registered under key is
// canceled and awaited first, so two runs of the same step never overlap.
// The job context is independent of the caller; use Cancel to stop it.
func (r *Registry) Start(key Key, fn func(ctx context.Context) error) (*Job, error) {
	return r.StartJob(key, func(ctx context.Context, _ *Job) error { return fn(ctx) })
}

// StartJob is Start for functions that need their own Job, for example to
// subscribe listeners to its id before producing events.
func (r *Registry) StartJob(key Key, fn func(ctx context.Context, job *Job) error) (*Job, error) {
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, ErrRegistryClosed
		}
		existing, ok := r.jobs[key]
		if !ok {
			break
		}
		r.mu.Unlock()

		existing.Cancel()
		<-existing.Done()
	}
	defer r.mu.Unlock()

	ctx, cancel := context.WithCancel(r.base)
	r.seq++
	job := &Job{id: r.seq, key: key, cancel: cancel, done: make(chan struct{})}
	r.jobs[key] = job
	r.wg.Add(1)
	metrics.ActiveJobs.Inc()

	go func() {
		defer r.wg.Done()
		defer metrics.ActiveJobs.Dec()
		defer cancel()

		job.err = fn(ctx, job)
		r.finish(job)
		close(job.done)
	}()
	return job, nil
}

func (r *Registry) finish(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.jobs[job.key] == job {
		delete(r.jobs, job.key)
	}
}

func (r *Registry) Get(key Key) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[key]
	return job, ok
}

// Cancel stops the job registered under key and reports whether there was one.
func (r *Registry) Cancel(key Key) bool {
	job, ok := r.Get(key)
	if ok {
		job.Cancel()
	}
	return ok
}

// CancelProject stops every step userID runs in a project and returns the
// canceled jobs.
func (r *Registry) CancelProject(projectID, userID uint) []*Job {
	r.mu.Lock()
	var jobs []*Job
	for key, job := range r.jobs {
		if key.ProjectID == projectID && key.UserID == userID {
			jobs = append(jobs, job)
		}
	}
	r.mu.Unlock()

	for _, job := range jobs {
		job.Cancel()
	}
	return jobs
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Shutdown cancels every job, refuses new ones and waits for the running jobs
// to return or ctx to end.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancelBase()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
