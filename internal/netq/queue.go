// Package netq serializes network jobs: jobs are started in FIFO order and
// only one job may be in flight at a time.
package netq

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/tinoosan/ghusers/internal/metrics"
)

// ErrNotHeld is returned by Release when the caller's ticket does not hold
// the admission token, either because it was already released or because a
// later job has taken the token since.
var ErrNotHeld = errors.New("netq: release without a held admission token")

// Job is a unit of network work. Start must not wait for the work to finish;
// the job signals completion by calling rel.Release exactly once.
type Job interface {
	Start(rel Releaser)
}

// Releaser returns the admission token held by one started job.
type Releaser interface {
	Release() error
}

// State of the drain loop.
type State int

const (
	Stopped State = iota
	Started
)

func (s State) String() string {
	if s == Started {
		return "started"
	}
	return "stopped"
}

// Queue is a thread-safe FIFO of jobs admitting one in-flight job at a time.
//
// Lock order is stateMu before mu. The admission token is a one-slot channel:
// a send acquires it, a receive releases it. Each acquisition bumps gen, and
// only the ticket carrying the current gen may release.
type Queue struct {
	mu   sync.Mutex
	jobs []Job

	stateMu sync.Mutex
	state   State

	holdMu sync.Mutex
	gen    uint64
	held   bool

	token chan struct{}
	log   *slog.Logger
}

// ticket is the Releaser handed to the job started at generation gen.
type ticket struct {
	q   *Queue
	gen uint64
}

func (t ticket) Release() error { return t.q.release(t.gen) }

// New returns an empty, stopped queue.
func New(log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{token: make(chan struct{}, 1), log: log}
}

// Enqueue appends job to the tail of the queue. It does not start processing.
func (q *Queue) Enqueue(job Job) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	n := len(q.jobs)
	q.mu.Unlock()
	metrics.QueueDepth.Set(float64(n))
}

// Resume starts draining the queue unless it is empty or already draining.
// It reports whether this call launched the drain loop.
func (q *Queue) Resume() bool {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	if q.state == Started {
		return false
	}
	if q.IsEmpty() {
		return false
	}
	q.state = Started
	go q.drain()
	return true
}

// release returns the token for generation gen so the next queued job may
// start. A stale or repeated release is rejected and leaves the current
// holder's token in place.
func (q *Queue) release(gen uint64) error {
	q.holdMu.Lock()
	defer q.holdMu.Unlock()
	if !q.held || gen != q.gen {
		metrics.ReleaseViolations.Inc()
		q.log.Error("release without a held admission token", "gen", gen, "current_gen", q.gen, "held", q.held)
		return ErrNotHeld
	}
	q.held = false
	// The drain loop filled the slot before handing out this ticket.
	<-q.token
	return nil
}

// acquire blocks until the token is free and returns the ticket for the new
// holder.
func (q *Queue) acquire() ticket {
	q.token <- struct{}{}
	q.holdMu.Lock()
	defer q.holdMu.Unlock()
	q.gen++
	q.held = true
	return ticket{q: q, gen: q.gen}
}

// Busy reports whether a started job still holds the admission token.
func (q *Queue) Busy() bool {
	q.holdMu.Lock()
	defer q.holdMu.Unlock()
	return q.held
}

// IsEmpty reports whether no jobs are waiting.
func (q *Queue) IsEmpty() bool {
	return q.Count() == 0
}

// Count returns the number of waiting jobs.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// State returns whether a drain loop is currently active.
func (q *Queue) State() State {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	return q.state
}

func (q *Queue) drain() {
	lg := q.log.With("operation_id", uuid.NewString())
	lg.Debug("drain started")
	started := 0
	for q.hasWork() {
		// Blocks until the previous job releases.
		t := q.acquire()
		job := q.pop()
		started++
		metrics.JobsStarted.Inc()
		job.Start(t)
	}
	lg.Debug("drain stopped", "jobs", started)
}

// hasWork reports whether the drain loop should continue. When the queue is
// empty it moves the state to Stopped while still holding both locks, so an
// Enqueue+Resume racing with the end of a drain is never lost.
func (q *Queue) hasWork() bool {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) > 0 {
		return true
	}
	if q.state == Started {
		q.state = Stopped
	}
	return false
}

// pop removes the head job. Only the drain loop pops, and it checked for work
// first, so the queue is non-empty here.
func (q *Queue) pop() Job {
	q.mu.Lock()
	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	n := len(q.jobs)
	q.mu.Unlock()
	metrics.QueueDepth.Set(float64(n))
	return job
}
