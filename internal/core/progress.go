package core

// progress.go implements the start/progress/completion event contract shared
// by the export and import engines.
//
// Every engine call gets its own Run, so per-call counters never live on the
// engine itself. Progress events are throttled:
//
//   - total <= 100: one event per record
//   - total > 100: one event each time the integer percentage advances
//
// so a run never emits more than 100 progress events. OnCompleted is always
// the last event of a successful run.

import (
	"context"
	"sync"
	"time"
)

// Notifier receives lifecycle events. Implementations must not assume they
// are called on any particular goroutine.
type Notifier interface {
	OnStart(at time.Time, total, current int, format Format)
	OnProgress(at time.Time, total, current int, format Format)
	OnCompleted(at time.Time, total int, format Format, stream []byte, path string)
}

// NotifierFuncs adapts optional functions to the Notifier interface.
type NotifierFuncs struct {
	Start     func(at time.Time, total, current int, format Format)
	Progress  func(at time.Time, total, current int, format Format)
	Completed func(at time.Time, total int, format Format, stream []byte, path string)
}

func (n NotifierFuncs) OnStart(at time.Time, total, current int, format Format) {
	if n.Start != nil {
		n.Start(at, total, current, format)
	}
}

func (n NotifierFuncs) OnProgress(at time.Time, total, current int, format Format) {
	if n.Progress != nil {
		n.Progress(at, total, current, format)
	}
}

func (n NotifierFuncs) OnCompleted(at time.Time, total int, format Format, stream []byte, path string) {
	if n.Completed != nil {
		n.Completed(at, total, format, stream, path)
	}
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) OnStart(time.Time, int, int, Format)                 {}
func (NopNotifier) OnProgress(time.Time, int, int, Format)              {}
func (NopNotifier) OnCompleted(time.Time, int, Format, []byte, string) {}

// ProgressThreshold is the record count above which progress is reported
// per percent instead of per record.
const ProgressThreshold = 100

// shouldReport decides whether record current of total gets a progress event.
// lastPct is the percentage of the previous event; the returned pct becomes
// the new lastPct when report is true.
func shouldReport(total, current, lastPct int) (report bool, pct int) {
	if total <= 0 || current <= 0 {
		return false, lastPct
	}
	if total <= ProgressThreshold {
		return true, current * 100 / total
	}
	pct = current * 100 / total
	return pct > lastPct, pct
}

// Run carries the mutable state of one engine call through a codec.
type Run struct {
	ctx      context.Context
	format   Format
	notifier Notifier
	observer func(RunProgress)
	now      func() time.Time

	mu      sync.Mutex
	total   int
	current int
	lastPct int
	errors  []ImportError
}

// NewRun creates the state for one call. A nil notifier discards events.
func NewRun(ctx context.Context, format Format, notifier Notifier) *Run {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Run{
		ctx:      ctx,
		format:   format,
		notifier: notifier,
		now:      time.Now,
	}
}

// observe installs a callback receiving progress snapshots, used by tasks.
func (r *Run) observe(fn func(RunProgress)) {
	r.observer = fn
}

// Context returns the call's context.
func (r *Run) Context() context.Context { return r.ctx }

// Format returns the codec format of the call.
func (r *Run) Format() Format { return r.format }

// Total returns the record count announced by Start.
func (r *Run) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Current returns the number of records processed so far.
func (r *Run) Current() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Start announces the total record count and emits OnStart.
func (r *Run) Start(total int) {
	r.mu.Lock()
	r.total = total
	r.current = 0
	r.lastPct = 0
	r.mu.Unlock()

	r.notifier.OnStart(r.now(), total, 0, r.format)
	r.snapshot(PhaseRunning, "")
}

// Step records one processed record, emits a throttled progress event and
// reports cancellation of the call's context.
func (r *Run) Step() error {
	r.mu.Lock()
	r.current++
	total, current := r.total, r.current
	report, pct := shouldReport(total, current, r.lastPct)
	if report {
		r.lastPct = pct
	}
	r.mu.Unlock()

	if report {
		r.notifier.OnProgress(r.now(), total, current, r.format)
		r.snapshot(PhaseRunning, "")
	}
	return r.ctx.Err()
}

// Complete emits OnCompleted. It must be the last event of the run.
func (r *Run) Complete(stream []byte, path string) {
	r.notifier.OnCompleted(r.now(), r.Total(), r.format, stream, path)
	r.snapshot(PhaseComplete, "")
}

// Fail records a terminal error for observers. No event is emitted.
func (r *Run) Fail(err error) {
	phase := PhaseFailed
	if r.ctx.Err() != nil {
		phase = PhaseCancelled
	}
	r.snapshot(phase, err.Error())
}

// AddError records a recoverable import error at a 1-based row (or -1).
func (r *Run) AddError(location int, description string) {
	r.mu.Lock()
	r.errors = append(r.errors, ImportError{Description: description, Location: location})
	r.mu.Unlock()
}

// Errors returns a copy of the recorded import errors.
func (r *Run) Errors() []ImportError {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errors) == 0 {
		return nil
	}
	out := make([]ImportError, len(r.errors))
	copy(out, r.errors)
	return out
}

func (r *Run) snapshot(phase RunPhase, errMsg string) {
	if r.observer == nil {
		return
	}
	r.mu.Lock()
	p := RunProgress{
		Format:  r.format.String(),
		Phase:   phase,
		Total:   r.total,
		Current: r.current,
		Error:   errMsg,
		Updated: r.now(),
	}
	r.mu.Unlock()
	r.observer(p)
}
