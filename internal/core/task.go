package core

// task.go runs an engine call on a background goroutine.
//
// A Task is a future for one call: it has its own cancellable context (checked
// between rows by Run.Step), a progress snapshot that listeners can subscribe
// to, and a result available once Done is closed.

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTaskSuperseded is the cancellation cause of a background task replaced by
// a newer task on the same engine.
var ErrTaskSuperseded = errors.New("task superseded by a newer task")

// Task is a handle to a background engine call.
type Task[T any] struct {
	ID      string
	Format  Format
	Started time.Time

	cancel context.CancelCauseFunc
	done   chan struct{}

	mu        sync.RWMutex
	progress  RunProgress
	result    T
	err       error
	finished  bool
	listeners []chan RunProgress
}

func newTask[T any](format Format, cancel context.CancelCauseFunc) *Task[T] {
	return &Task[T]{
		ID:      uuid.New().String(),
		Format:  format,
		Started: time.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
		progress: RunProgress{
			Format:  format.String(),
			Phase:   PhaseQueued,
			Updated: time.Now(),
		},
	}
}

// Done is closed when the task finishes, successfully or not.
func (t *Task[T]) Done() <-chan struct{} { return t.done }

// Cancel requests cancellation. The codec stops at the next row boundary.
func (t *Task[T]) Cancel() { t.cancel(context.Canceled) }

// Wait blocks until the task finishes or ctx is done.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		t.mu.RLock()
		defer t.mu.RUnlock()
		return t.result, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking. ok is false while running.
func (t *Task[T]) Result() (result T, err error, ok bool) {
	select {
	case <-t.done:
	default:
		return result, nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result, t.err, true
}

// Progress returns the latest progress snapshot.
func (t *Task[T]) Progress() RunProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress
}

// Subscribe returns a channel that receives progress updates.
// The channel is closed when the task completes.
func (t *Task[T]) Subscribe() <-chan RunProgress {
	ch := make(chan RunProgress, 10)

	t.mu.Lock()
	defer t.mu.Unlock()

	// Send current progress immediately
	ch <- t.progress

	if t.finished {
		close(ch)
	} else {
		t.listeners = append(t.listeners, ch)
	}
	return ch
}

// update stores a snapshot and fans it out to listeners.
func (t *Task[T]) update(p RunProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.progress = p
	for _, ch := range t.listeners {
		select {
		case ch <- p:
		default:
			// Listener is slow, skip this update
		}
	}
}

// finish stores the outcome, closes listeners and signals Done.
func (t *Task[T]) finish(result T, err error) {
	t.mu.Lock()
	t.result = result
	t.err = err
	t.finished = true
	if err != nil && t.progress.Phase != PhaseFailed && t.progress.Phase != PhaseCancelled {
		t.progress.Phase = PhaseFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrTaskSuperseded) {
			t.progress.Phase = PhaseCancelled
		}
		t.progress.Error = err.Error()
		t.progress.Updated = time.Now()
	}
	for _, ch := range t.listeners {
		close(ch)
	}
	t.listeners = nil
	t.mu.Unlock()

	close(t.done)
}

// taskSlot tracks the latest background task of an engine so that starting a
// new one cancels the one still in flight.
type taskSlot struct {
	mu     sync.Mutex
	cancel context.CancelCauseFunc
	done   <-chan struct{}
}

// replace installs a new task and cancels the previous one if still running.
// It returns the previous task's done channel (nil if none).
func (s *taskSlot) replace(cancel context.CancelCauseFunc, done <-chan struct{}) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevDone := s.done
	if s.cancel != nil && prevDone != nil {
		select {
		case <-prevDone:
		default:
			s.cancel(ErrTaskSuperseded)
		}
	}
	s.cancel = cancel
	s.done = done
	return prevDone
}

// startTask runs fn on a new goroutine once the limiter grants a slot.
// The task context derives from ctx; a superseded task sees ErrTaskSuperseded
// as its context cause.
func startTask[T any](ctx context.Context, format Format, slot *taskSlot, limiter *JobLimiter,
	fn func(ctx context.Context, observe func(RunProgress)) (T, error)) *Task[T] {

	taskCtx, cancel := context.WithCancelCause(ctx)
	task := newTask[T](format, cancel)
	slot.replace(cancel, task.done)

	go func() {
		var zero T
		defer cancel(nil)

		if err := limiter.Acquire(taskCtx); err != nil {
			task.finish(zero, taskError(taskCtx, err))
			return
		}

		// The slot is released before Done closes so a waiter that saw Done
		// can start immediately.
		result, err := func() (T, error) {
			defer limiter.Release()
			return fn(taskCtx, task.update)
		}()
		if err != nil {
			err = taskError(taskCtx, err)
		}
		task.finish(result, err)
	}()

	return task
}

// taskError prefers the context cause so superseded tasks report why.
func taskError(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil && errors.Is(err, context.Canceled) {
		return cause
	}
	return err
}
