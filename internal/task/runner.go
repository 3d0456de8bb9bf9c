// Package task runs blocking units of work off the interaction goroutine and
// hands each terminal outcome back to a single consumer exactly once.
package task

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"medtrack/internal/logging"
)

// =============================================================================
// TASK RUNNER
// =============================================================================
//
// Submit starts the work on its own goroutine and returns immediately. When the
// work finishes its Completion is appended to a FIFO queue. The consumer (the
// bubbletea Update loop, or Dispatch for headless callers) pulls completions
// with Next and calls Deliver, which runs exactly one of the callbacks on the
// consumer's goroutine.

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

// ID identifies a submitted task.
type ID string

// Work is a unit of blocking work. It must not touch state owned by the
// interaction goroutine; pass it snapshots instead.
type Work func(ctx context.Context) (any, error)

// Task is a unit of work plus its lifecycle state.
type Task struct {
	ID          ID
	Name        string
	SubmittedAt time.Time

	mu    sync.Mutex
	state State
}

// State returns the current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) transition(to State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !CanTransition(t.state, to) {
		return fmt.Errorf("task %s: invalid transition %s -> %s", t.ID, t.state, to)
	}
	t.state = to
	return nil
}

// Completion is the terminal outcome of a task, waiting to be delivered.
type Completion struct {
	ID      ID
	Name    string
	State   State
	Result  any
	Err     error
	Elapsed time.Duration

	onSuccess func(any)
	onFailure func(error)
	delivered *atomic.Bool
	runner    *Runner
}

// Deliver invokes the success or failure callback. Only the first call on a
// completion has any effect; it reports whether callbacks ran.
func (c Completion) Deliver() bool {
	if c.delivered == nil || !c.delivered.CompareAndSwap(false, true) {
		return false
	}
	if c.runner != nil {
		c.runner.forget(c.ID)
		c.runner.delivered.Add(1)
	}
	switch c.State {
	case StateSucceeded:
		if c.onSuccess != nil {
			c.onSuccess(c.Result)
		}
	case StateFailed:
		if c.onFailure != nil {
			c.onFailure(c.Err)
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrRunnerClosed is returned by Submit after Close.
	ErrRunnerClosed = errors.New("task runner is closed")

	// ErrNilWork is returned when Submit is called without work.
	ErrNilWork = errors.New("task work is nil")
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config configures a Runner.
type Config struct {
	// MaxConcurrent bounds how many units of work run at once. Units over the
	// limit stay pending. 0 means unbounded.
	MaxConcurrent int
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 4}
}

// Stats is a snapshot of runner counters.
type Stats struct {
	Submitted int64
	Succeeded int64
	Failed    int64
	Delivered int64
	InFlight  int
	Queued    int
}

// -----------------------------------------------------------------------------
// Runner
// -----------------------------------------------------------------------------

// Runner executes units of work and queues their completions.
type Runner struct {
	cfg Config
	sem *semaphore.Weighted

	mu       sync.Mutex
	queue    []Completion
	tasks    map[ID]*Task
	inflight int
	closed   bool
	ready    chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once

	submitted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	delivered atomic.Int64
}

// NewRunner creates a Runner.
func NewRunner(cfg Config) *Runner {
	r := &Runner{
		cfg:   cfg,
		tasks: make(map[ID]*Task),
		ready: make(chan struct{}, 1),
	}
	if cfg.MaxConcurrent > 0 {
		r.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return r
}

// Submit starts work in the background and returns its ID without blocking.
// Exactly one of onSuccess or onFailure runs when the completion is
// delivered. Either callback may be nil.
func (r *Runner) Submit(name string, work Work, onSuccess func(any), onFailure func(error)) (ID, error) {
	if work == nil {
		return "", ErrNilWork
	}

	t := &Task{
		ID:          ID(uuid.NewString()),
		Name:        name,
		SubmittedAt: time.Now(),
		state:       StatePending,
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrRunnerClosed
	}
	r.tasks[t.ID] = t
	r.inflight++
	r.wg.Add(1)
	r.mu.Unlock()

	r.submitted.Add(1)
	logging.TasksDebug("submitted %s (%s)", t.Name, t.ID)

	go r.run(t, work, onSuccess, onFailure)
	return t.ID, nil
}

// Go submits typed work. The result is converted back to T before onSuccess
// runs.
func Go[T any](r *Runner, name string, work func(ctx context.Context) (T, error), onSuccess func(T), onFailure func(error)) (ID, error) {
	if work == nil {
		return "", ErrNilWork
	}
	wrapped := func(ctx context.Context) (any, error) {
		return work(ctx)
	}
	var success func(any)
	if onSuccess != nil {
		success = func(v any) {
			typed, _ := v.(T)
			onSuccess(typed)
		}
	}
	return r.Submit(name, wrapped, success, onFailure)
}

func (r *Runner) run(t *Task, work Work, onSuccess func(any), onFailure func(error)) {
	defer r.wg.Done()

	// Work is never cancelled; the context only carries values.
	ctx := context.Background()

	if r.sem != nil {
		// Acquire cannot fail with a background context.
		_ = r.sem.Acquire(ctx, 1)
		defer r.sem.Release(1)
	}

	if err := t.transition(StateRunning); err != nil {
		logging.TasksWarn("%v", err)
	}

	start := time.Now()
	result, err := r.execute(ctx, t, work)
	elapsed := time.Since(start)

	final := StateSucceeded
	if err != nil {
		final = StateFailed
		r.failed.Add(1)
		logging.TasksWarn("%s failed after %v: %v", t.Name, elapsed, err)
	} else {
		r.succeeded.Add(1)
		logging.TasksDebug("%s succeeded in %v", t.Name, elapsed)
	}
	if terr := t.transition(final); terr != nil {
		logging.TasksWarn("%v", terr)
	}

	c := Completion{
		ID:        t.ID,
		Name:      t.Name,
		State:     final,
		Elapsed:   elapsed,
		onSuccess: onSuccess,
		onFailure: onFailure,
		delivered: new(atomic.Bool),
		runner:    r,
	}
	if err != nil {
		c.Err = err
	} else {
		c.Result = result
	}

	r.mu.Lock()
	r.queue = append(r.queue, c)
	r.inflight--
	r.mu.Unlock()
	r.notify()
}

func (r *Runner) execute(ctx context.Context, t *Task, work Work) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			logging.Get(logging.CategoryTasks).Error("%s panicked: %v\n%s", t.Name, p, debug.Stack())
			result = nil
			err = fmt.Errorf("task %s panicked: %v", t.Name, p)
		}
	}()
	return work(ctx)
}

func (r *Runner) notify() {
	select {
	case r.ready <- struct{}{}:
	default:
	}
}

func (r *Runner) forget(id ID) {
	r.mu.Lock()
	delete(r.tasks, id)
	r.mu.Unlock()
}

// -----------------------------------------------------------------------------
// Consumer side
// -----------------------------------------------------------------------------

// Next blocks until a completion is available. It returns false once the
// runner is closed and no work remains in flight or queued. Next is meant for
// a single consumer.
func (r *Runner) Next() (Completion, bool) {
	return r.next(context.Background())
}

// TryNext returns a queued completion without blocking.
func (r *Runner) TryNext() (Completion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.popLocked()
}

func (r *Runner) popLocked() (Completion, bool) {
	if len(r.queue) == 0 {
		return Completion{}, false
	}
	c := r.queue[0]
	r.queue[0] = Completion{}
	r.queue = r.queue[1:]
	return c, true
}

func (r *Runner) next(ctx context.Context) (Completion, bool) {
	for {
		r.mu.Lock()
		c, ok := r.popLocked()
		drained := r.closed && r.inflight == 0 && len(r.queue) == 0
		r.mu.Unlock()

		if ok {
			return c, true
		}
		if drained {
			// Wake any other waiter so it can observe the drained state too.
			r.notify()
			return Completion{}, false
		}

		select {
		case <-r.ready:
		case <-ctx.Done():
			return Completion{}, false
		}
	}
}

// Dispatch delivers completions on the calling goroutine until the runner is
// closed and drained, or ctx is done. Headless callers use it as their
// interaction loop.
func (r *Runner) Dispatch(ctx context.Context) error {
	for {
		c, ok := r.next(ctx)
		if !ok {
			return ctx.Err()
		}
		c.Deliver()
	}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Close stops accepting work. It does not wait for work in flight; use Wait.
func (r *Runner) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		r.notify()
		logging.Tasks("runner closed")
	})
}

// Wait blocks until every submitted unit of work has finished running.
// Completions are not delivered by Wait.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Lookup returns the state of a task that has not been delivered yet.
func (r *Runner) Lookup(id ID) (State, bool) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	r.mu.Unlock()
	if !ok {
		return 0, false
	}
	return t.State(), true
}

// Stats returns a snapshot of the runner counters.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	inflight, queued := r.inflight, len(r.queue)
	r.mu.Unlock()
	return Stats{
		Submitted: r.submitted.Load(),
		Succeeded: r.succeeded.Load(),
		Failed:    r.failed.Load(),
		Delivered: r.delivered.Load(),
		InFlight:  inflight,
		Queued:    queued,
	}
}
