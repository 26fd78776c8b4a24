package core

// job_limiter.go bounds how many codec runs may write at once.
//
// Each engine owns a limiter with a single slot unless one is shared with it,
// so a superseded task gives up its slot before its replacement starts
// writing. A run that finds every slot taken waits up to maxWait and then
// fails with ErrTooManyJobs. WaitForDrain lets shutdown wait for runs in
// flight.

import (
	"context"
	"errors"
	"time"
)

// ErrTooManyJobs is returned when no slot frees up within the wait timeout.
var ErrTooManyJobs = errors.New("too many concurrent jobs, please try again later")

const (
	// DefaultMaxConcurrentJobs is the slot count of an engine's own limiter.
	DefaultMaxConcurrentJobs = 1

	// DefaultMaxWaitTime is how long a run waits for a slot.
	DefaultMaxWaitTime = 30 * time.Second

	drainPollInterval = 50 * time.Millisecond
)

// JobLimiter hands out a fixed number of run slots. A slot is a token in a
// buffered channel, so the channel length is the number of active runs.
type JobLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
}

// NewJobLimiter returns a limiter with maxConcurrent slots. Non-positive
// arguments fall back to the defaults.
func NewJobLimiter(maxConcurrent int, maxWait time.Duration) *JobLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentJobs
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &JobLimiter{slots: make(chan struct{}, maxConcurrent), maxWait: maxWait}
}

// Acquire takes a slot, waiting at most maxWait. It returns ctx.Err() when
// ctx ends first and ErrTooManyJobs when the wait runs out. Every successful
// Acquire must be paired with Release.
func (l *JobLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyJobs
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *JobLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release gives back a slot taken by Acquire or TryAcquire.
func (l *JobLimiter) Release() {
	<-l.slots
}

// ActiveCount returns the number of slots in use.
func (l *JobLimiter) ActiveCount() int { return len(l.slots) }

// Available returns the number of free slots.
func (l *JobLimiter) Available() int { return cap(l.slots) - len(l.slots) }

// WaitForDrain blocks until no run holds a slot or ctx ends.
func (l *JobLimiter) WaitForDrain(ctx context.Context) error {
	if l.ActiveCount() == 0 {
		return nil
	}
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// JobLimiterStatus is a point-in-time view of a limiter, served by the
// health endpoint.
type JobLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status reports the limiter's slot usage.
func (l *JobLimiter) Status() JobLimiterStatus {
	active := len(l.slots)
	return JobLimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}
