// Package queue holds the in-process evaluation job queue.
package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"

	// MaxAttempts is the number of failed runs after which a job is abandoned.
	MaxAttempts = 3
)

// Job is one queued evaluation request for a submission.
type Job struct {
	SubmissionID uuid.UUID  `json:"submission_id"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	AddedAt      time.Time  `json:"added_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// Status is a depth summary of the queue.
type Status struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Total      int `json:"total"`
}

// Queue is a FIFO of evaluation jobs with an in-flight set that guarantees a
// submission is never processed twice at the same time. Safe for concurrent use.
type Queue struct {
	mu       sync.Mutex
	jobs     []*Job
	inFlight map[uuid.UUID]struct{}
	now      func() time.Time
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{
		inFlight: make(map[uuid.UUID]struct{}),
		now:      time.Now,
	}
}

// Enqueue appends a pending job. It is not idempotent: enqueueing the same
// submission twice yields two entries.
func (q *Queue) Enqueue(submissionID uuid.UUID) Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	j := &Job{
		SubmissionID: submissionID,
		Status:       JobStatusPending,
		AddedAt:      q.now().UTC(),
	}
	q.jobs = append(q.jobs, j)
	return *j
}

// TryEnqueue appends a pending job unless one for the submission is already
// queued or running. The check and the append happen under one lock.
func (q *Queue) TryEnqueue(submissionID uuid.UUID) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i := q.indexOf(submissionID); i >= 0 {
		return *q.jobs[i], false
	}
	j := &Job{
		SubmissionID: submissionID,
		Status:       JobStatusPending,
		AddedAt:      q.now().UTC(),
	}
	q.jobs = append(q.jobs, j)
	return *j, true
}

// Dequeue claims the first pending job whose submission is not already in flight.
// The returned Job is a snapshot; mutate the queue only through Complete and Fail.
func (q *Queue) Dequeue() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, j := range q.jobs {
		if j.Status != JobStatusPending {
			continue
		}
		if _, busy := q.inFlight[j.SubmissionID]; busy {
			continue
		}
		started := q.now().UTC()
		j.Status = JobStatusProcessing
		j.StartedAt = &started
		q.inFlight[j.SubmissionID] = struct{}{}
		return *j, true
	}
	return Job{}, false
}

// Complete removes the job and releases the submission.
func (q *Queue) Complete(submissionID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i := q.indexOf(submissionID); i >= 0 {
		q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
	}
	delete(q.inFlight, submissionID)
}

// Fail records a failed run. The job goes back to pending unless it has now
// failed MaxAttempts times, in which case it is dropped. It returns the attempt
// count and whether the job was dropped.
func (q *Queue) Fail(submissionID uuid.UUID, cause error) (attempts int, removed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.inFlight, submissionID)

	i := q.indexOf(submissionID)
	if i < 0 {
		return 0, false
	}
	j := q.jobs[i]
	j.Attempts++
	j.Status = JobStatusPending
	j.StartedAt = nil
	if cause != nil {
		j.LastError = cause.Error()
	}
	if j.Attempts >= MaxAttempts {
		q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
		return j.Attempts, true
	}
	return j.Attempts, false
}

// Status returns pending, in-flight and total counts.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Status{Total: len(q.jobs)}
	for _, j := range q.jobs {
		if j.Status == JobStatusPending {
			s.Pending++
		}
	}
	s.Processing = len(q.inFlight)
	return s
}

// Contains reports whether any job for the submission is queued or running.
func (q *Queue) Contains(submissionID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexOf(submissionID) >= 0
}

// Get returns a snapshot of the job for the submission.
func (q *Queue) Get(submissionID uuid.UUID) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i := q.indexOf(submissionID); i >= 0 {
		return *q.jobs[i], true
	}
	return Job{}, false
}

// indexOf prefers the processing entry for a submission, since duplicates are allowed.
// Callers must hold q.mu.
func (q *Queue) indexOf(submissionID uuid.UUID) int {
	first := -1
	for i, j := range q.jobs {
		if j.SubmissionID != submissionID {
			continue
		}
		if j.Status == JobStatusProcessing {
			return i
		}
		if first < 0 {
			first = i
		}
	}
	return first
}
