package core

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobLimiter_Defaults(t *testing.T) {
	tests := []struct {
		name     string
		max      int
		wait     time.Duration
		wantMax  int
		wantWait time.Duration
	}{
		{"zero values", 0, 0, DefaultMaxConcurrentJobs, DefaultMaxWaitTime},
		{"negative values", -3, -time.Second, DefaultMaxConcurrentJobs, DefaultMaxWaitTime},
		{"explicit", 4, time.Second, 4, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewJobLimiter(tt.max, tt.wait)
			assert.Equal(t, tt.wantMax, l.Status().MaxConcurrent)
			assert.Equal(t, tt.wantWait, l.maxWait)
		})
	}
}

func TestJobLimiter_SlotAccounting(t *testing.T) {
	l := NewJobLimiter(2, time.Second)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	assert.Equal(t, JobLimiterStatus{Active: 1, Available: 1, MaxConcurrent: 2}, l.Status())

	require.True(t, l.TryAcquire())
	assert.Equal(t, 2, l.ActiveCount())
	assert.Zero(t, l.Available())
	assert.False(t, l.TryAcquire(), "TryAcquire on a full limiter")

	l.Release()
	l.Release()
	assert.Equal(t, JobLimiterStatus{Active: 0, Available: 2, MaxConcurrent: 2}, l.Status())
}

func TestJobLimiter_AcquireFailures(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()

	tests := []struct {
		name    string
		ctx     context.Context
		maxWait time.Duration
		wantErr error
	}{
		{"wait runs out", context.Background(), 30 * time.Millisecond, ErrTooManyJobs},
		{"caller cancelled", cancelled, time.Minute, context.Canceled},
		{"caller deadline", expired, time.Minute, context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewJobLimiter(1, tt.maxWait)
			require.True(t, l.TryAcquire())
			defer l.Release()

			err := l.Acquire(tt.ctx)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 1, l.ActiveCount(), "failed Acquire must not take a slot")
		})
	}
}

func TestJobLimiter_ErrTooManyJobsMapsToJobCode(t *testing.T) {
	l := NewJobLimiter(1, 10*time.Millisecond)
	require.True(t, l.TryAcquire())
	defer l.Release()

	err := l.Acquire(context.Background())
	assert.Equal(t, "JOB003", MapError(err).Code)
}

func TestJobLimiter_ReleaseWakesWaiter(t *testing.T) {
	l := NewJobLimiter(1, 5*time.Second)
	require.True(t, l.TryAcquire())

	acquired := make(chan error, 1)
	go func() { acquired <- l.Acquire(context.Background()) }()

	select {
	case err := <-acquired:
		t.Fatalf("waiter acquired a held slot: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	l.Release()
	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not woken by Release")
	}
	l.Release()
}

func TestJobLimiter_NeverExceedsCapacity(t *testing.T) {
	const slots, workers = 3, 12
	l := NewJobLimiter(slots, 5*time.Second)

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Error(err)
				return
			}
			defer l.Release()

			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, int(peak.Load()), slots)
	assert.Zero(t, l.ActiveCount())
}

func TestJobLimiter_WaitForDrain(t *testing.T) {
	t.Run("idle limiter returns at once", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NoError(t, NewJobLimiter(1, time.Second).WaitForDrain(ctx))
	})

	t.Run("waits for the last release", func(t *testing.T) {
		l := NewJobLimiter(2, time.Second)
		require.True(t, l.TryAcquire())
		require.True(t, l.TryAcquire())
		go func() {
			time.Sleep(20 * time.Millisecond)
			l.Release()
			time.Sleep(20 * time.Millisecond)
			l.Release()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, l.WaitForDrain(ctx))
		assert.Zero(t, l.ActiveCount())
	})

	t.Run("gives up with the context", func(t *testing.T) {
		l := NewJobLimiter(1, time.Second)
		require.True(t, l.TryAcquire())
		defer l.Release()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, l.WaitForDrain(ctx), context.DeadlineExceeded)
	})
}

// A limiter shared by an export and an import engine lets only one of them
// write at a time: the import stays queued until the export gives up its slot.
func TestJobLimiter_SharedAcrossEngines(t *testing.T) {
	installFakeCodecs(t)

	path := filepath.Join(t.TempDir(), "lines.csv")
	require.NoError(t, os.WriteFile(path, []byte("alpha\nbeta\n"), 0o644))

	shared := NewJobLimiter(1, 5*time.Second)
	exporter := NewExportEngine(DefaultExportOptions(), nil, shared)
	importer := NewImportEngine(DefaultImportOptions(), nil, shared)

	export := exporter.ExportAsync(context.Background(), sampleDataset(1), FormatHTML, "")
	waitForPhase(t, export, PhaseRunning)

	imp := importer.ImportAsync(context.Background(), FormatCSV, path, nil, false)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, PhaseQueued, imp.Progress().Phase, "import ran while the export held the slot")

	export.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := imp.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Records)
	require.NoError(t, shared.WaitForDrain(ctx))
}
