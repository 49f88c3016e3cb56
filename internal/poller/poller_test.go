package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwulff/linkup-go/internal/render"
)

type fakeJob struct {
	mu        sync.Mutex
	runs      int
	delivered []render.DisplayState
	running   bool
	overlap   bool
	block     chan struct{}
	started   chan struct{}
	onRun     func(n int)
}

func (f *fakeJob) RunOnce(ctx context.Context) render.DisplayState {
	f.mu.Lock()
	if f.running {
		f.overlap = true
	}
	f.running = true
	f.runs++
	n := f.runs
	onRun := f.onRun
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if onRun != nil {
		onRun(n)
	}

	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	return render.DisplayState{Text: "95.0 mg/dL"}
}

func (f *fakeJob) Deliver(_ context.Context, d render.DisplayState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, d)
}

func (f *fakeJob) counts() (int, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs, len(f.delivered), f.overlap
}

func fixed(d time.Duration) func() time.Duration {
	return func() time.Duration { return d }
}

func TestRunTicksImmediately(t *testing.T) {
	job := &fakeJob{}
	p := New(job, fixed(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool {
		_, delivered, _ := job.counts()
		return delivered == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	runs, _, _ := job.counts()
	assert.Equal(t, 1, runs, "cancelling stops the pending timer")
}

func TestRunRearmsAfterCompletion(t *testing.T) {
	job := &fakeJob{onRun: func(int) { time.Sleep(20 * time.Millisecond) }}
	p := New(job, fixed(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = p.Run(ctx)

	runs, _, overlap := job.counts()
	assert.False(t, overlap, "ticks never overlap")
	assert.GreaterOrEqual(t, runs, 2)
	// Each cycle takes at least the tick time plus the interval.
	assert.LessOrEqual(t, runs, 7)
}

func TestTriggerCoalesces(t *testing.T) {
	job := &fakeJob{block: make(chan struct{}), started: make(chan struct{}, 10)}
	p := New(job, fixed(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	<-job.started
	p.Trigger()
	p.Trigger()
	p.Trigger()
	job.block <- struct{}{}

	<-job.started
	job.block <- struct{}{}

	assert.Eventually(t, func() bool {
		_, delivered, _ := job.counts()
		return delivered == 2
	}, time.Second, 5*time.Millisecond)

	select {
	case <-job.started:
		t.Fatal("triggers during a tick must merge into one")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestResultDroppedAfterCancel(t *testing.T) {
	job := &fakeJob{block: make(chan struct{}), started: make(chan struct{}, 1)}
	captured := make(chan context.Context, 1)
	p := New(&ctxJob{fakeJob: job, captured: captured}, fixed(time.Hour), WithTimeout(fixed(time.Minute)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	<-job.started
	tickCtx := <-captured
	cancel()
	assert.NoError(t, tickCtx.Err(), "an in-flight tick is not aborted")
	job.block <- struct{}{}

	require.ErrorIs(t, <-done, context.Canceled)
	runs, delivered, _ := job.counts()
	assert.Equal(t, 1, runs)
	assert.Equal(t, 0, delivered, "the result of a cancelled tick is dropped")
}

type ctxJob struct {
	*fakeJob
	captured chan context.Context
}

func (c *ctxJob) RunOnce(ctx context.Context) render.DisplayState {
	c.captured <- ctx
	return c.fakeJob.RunOnce(ctx)
}

func TestIntervalReadAfterEachTick(t *testing.T) {
	job := &fakeJob{}
	var mu sync.Mutex
	reads := 0
	interval := func() time.Duration {
		mu.Lock()
		defer mu.Unlock()
		reads++
		if reads == 1 {
			return 5 * time.Millisecond
		}
		return time.Hour
	}
	p := New(job, interval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	assert.Eventually(t, func() bool {
		runs, _, _ := job.counts()
		return runs == 2
	}, time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	runs, _, _ := job.counts()
	assert.Equal(t, 2, runs, "the new interval applies to the next wait")
}
