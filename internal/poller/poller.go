// Package poller schedules monitor ticks: one at start, then one per
// interval counted from the end of the previous tick.
package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwulff/linkup-go/internal/render"
)

// Job is the work of one tick. RunOnce computes a display state; Deliver
// hands it to the outputs. The poller never calls them concurrently.
type Job interface {
	RunOnce(ctx context.Context) render.DisplayState
	Deliver(ctx context.Context, d render.DisplayState)
}

// DefaultTimeout bounds a tick when no positive timeout is configured.
const DefaultTimeout = 30 * time.Second

// Poller runs a Job on a rearming timer.
type Poller struct {
	job      Job
	interval func() time.Duration
	timeout  func() time.Duration
	trigger  chan struct{}
	logger   zerolog.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithTimeout bounds a tick that is still running when Run is cancelled.
func WithTimeout(timeout func() time.Duration) Option {
	return func(p *Poller) {
		p.timeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// New creates a Poller. interval is read again after every tick so
// configuration edits apply to the next wait.
func New(job Job, interval func() time.Duration, opts ...Option) *Poller {
	p := &Poller{
		job:      job,
		interval: interval,
		timeout:  func() time.Duration { return DefaultTimeout },
		trigger:  make(chan struct{}, 1),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Trigger requests a tick as soon as the current one settles. Requests
// made while one is pending are merged.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run ticks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	for {
		if !p.tick(ctx) {
			return ctx.Err()
		}

		wait := p.interval()
		p.logger.Debug().Dur("wait", wait).Msg("Next tick scheduled")
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		case <-p.trigger:
			timer.Stop()
		}
	}
}

// tick runs one job to completion. Network calls are not aborted on
// cancellation; the result is dropped instead. It returns false when the
// result was dropped.
func (p *Poller) tick(ctx context.Context) bool {
	timeout := p.timeout()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	d := p.job.RunOnce(tickCtx)

	if ctx.Err() != nil {
		p.logger.Debug().Msg("Dropping tick result after shutdown")
		return false
	}
	p.job.Deliver(ctx, d)
	return true
}
