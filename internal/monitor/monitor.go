// Package monitor runs one poll tick end to end: fetch, present, record and
// deliver.
package monitor

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwulff/linkup-go/internal/config"
	"github.com/jwulff/linkup-go/internal/domain"
	"github.com/jwulff/linkup-go/internal/metrics"
	"github.com/jwulff/linkup-go/internal/notify"
	"github.com/jwulff/linkup-go/internal/publish"
	"github.com/jwulff/linkup-go/internal/render"
	"github.com/jwulff/linkup-go/internal/session"
	"github.com/jwulff/linkup-go/internal/storage"
)

// PollStateID is the poll state row written by the monitor.
const PollStateID = "linkup"

// NoData is shown by the last-reading query when nothing is available.
const NoData = "No data available."

// Warning notice keys, one per condition.
const (
	KeyLow  = "glucose-low"
	KeyHigh = "glucose-high"
)

// Monitor ties a session to its configuration and outputs. RunOnce and
// Deliver must not be called concurrently; the poller guarantees this.
type Monitor struct {
	config   config.Provider
	session  *session.Session
	store    storage.Store
	sink     publish.Sink
	notifier notify.Notifier
	metrics  *metrics.Recorder
	logger   zerolog.Logger
	now      func() time.Time

	showDate atomic.Bool
	pending  *tick
}

// tick is what RunOnce hands to Deliver.
type tick struct {
	cfg     config.Config
	result  session.Result
	display render.DisplayState
	at      time.Time
	logger  zerolog.Logger
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithStore records readings, poll state and the display cache.
func WithStore(store storage.Store) Option {
	return func(m *Monitor) {
		m.store = store
	}
}

// WithSink sets where display states are published.
func WithSink(sink publish.Sink) Option {
	return func(m *Monitor) {
		m.sink = sink
	}
}

// WithNotifier sets where warnings and last-reading messages go.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Monitor) {
		m.notifier = n
	}
}

// WithMetrics records tick outcomes.
func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Monitor) {
		m.metrics = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// New creates a Monitor.
func New(provider config.Provider, s *session.Session, opts ...Option) *Monitor {
	m := &Monitor{
		config:   provider,
		session:  s,
		sink:     publish.Discard,
		notifier: notify.Nop,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunOnce fetches the latest reading with a fresh configuration snapshot
// and returns what should be displayed. Failures are logged, never
// returned. Nothing is recorded until the display state is delivered.
func (m *Monitor) RunOnce(ctx context.Context) render.DisplayState {
	now := m.now()
	logger := m.logger.With().Str("tick", uuid.NewString()).Logger()
	ctx = logger.WithContext(ctx)

	cfg := m.config.Snapshot()
	result := m.session.FetchLatestReading(ctx, cfg)
	display := render.Present(result.Measurement, cfg)

	m.pending = &tick{cfg: cfg, result: result, display: display, at: now, logger: logger}

	logger.Debug().
		Bool("available", display.Available()).
		Str("display", display.String()).
		Msg("Tick finished")
	return display
}

// Deliver publishes a display state, raises its warning, caches it and
// records the tick that produced it. A tick that is never delivered leaves
// no trace in the store or the metrics.
func (m *Monitor) Deliver(ctx context.Context, d render.DisplayState) {
	if t := m.pending; t != nil {
		m.pending = nil
		tickCtx := t.logger.WithContext(ctx)
		m.record(tickCtx, t)
		if m.metrics != nil {
			m.metrics.ObserveTick(t.result, t.display, t.at)
		}
	}

	if err := m.sink.Publish(ctx, d); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to publish display")
	}

	m.warn(d)

	if m.showDate.CompareAndSwap(true, false) {
		m.notifier.Notify(notify.Notice{
			Level:   notify.LevelInfo,
			Key:     "last-entry",
			Message: LastEntry(d),
		})
	}

	if m.store == nil {
		return
	}
	data, err := json.Marshal(d)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to encode display")
		return
	}
	if err := m.store.CacheDisplay(ctx, &storage.CachedDisplay{Data: data, GeneratedAt: m.now()}); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to cache display")
	}
}

// warn raises the display's warning. A condition that has cleared is
// forgotten by the notifier so the next episode is reported at once.
func (m *Monitor) warn(d render.DisplayState) {
	keys := map[string]string{KeyLow: render.WarningLow, KeyHigh: render.WarningHigh}
	for key, message := range keys {
		if d.Warning == message {
			m.notifier.Notify(notify.Notice{
				Level:   notify.LevelWarning,
				Key:     key,
				Message: message,
			})
		} else if r, ok := m.notifier.(notify.Resetter); ok {
			r.Reset(key)
		}
	}
}

// ShowDateOnNextDelivery makes the next Deliver report the reading's
// timestamp.
func (m *Monitor) ShowDateOnNextDelivery() {
	m.showDate.Store(true)
}

// LastEntry formats the last-reading message for a display state.
func LastEntry(d render.DisplayState) string {
	if !d.Available() || d.Timestamp == "" {
		return NoData
	}
	return "last entry at: " + d.Timestamp
}

// LastStored formats the last-reading message from the store.
func LastStored(ctx context.Context, store storage.Store) (string, error) {
	r, err := store.LatestReading(ctx)
	if storage.IsNotFound(err) {
		return NoData, nil
	}
	if err != nil {
		return "", err
	}
	ts := r.RawTimestamp
	if ts == "" {
		ts = r.Timestamp.Local().Format(time.DateTime)
	}
	return "last entry at: " + ts, nil
}

// record writes the reading and poll state and purges expired readings.
// Store errors are logged; they never fail a tick.
func (m *Monitor) record(ctx context.Context, t *tick) {
	if m.store == nil {
		return
	}
	log := zerolog.Ctx(ctx)
	cfg, result, display, now := t.cfg, t.result, t.display, t.at

	state, err := m.store.GetPollState(ctx, PollStateID)
	if err != nil {
		if !storage.IsNotFound(err) {
			log.Warn().Err(err).Msg("Failed to load poll state")
		}
		state = domain.NewPollState(PollStateID)
	}

	switch {
	case display.Available():
		reading := domain.NewReading(result.Connection.PatientID, *result.Measurement, now)
		if err := m.store.SaveReading(ctx, reading); err != nil {
			log.Warn().Err(err).Msg("Failed to save reading")
		}
		state.RecordSuccess(now, result.Connection.PatientID)
	case result.Err != nil:
		state.RecordError(now, string(result.Stage), result.Err.Error())
	default:
		state.RecordError(now, string(session.StageFetch), "measurement has no positive value")
	}

	if err := m.store.SavePollState(ctx, state); err != nil {
		log.Warn().Err(err).Msg("Failed to save poll state")
	}

	if cfg.Storage.Retention > 0 {
		deleted, err := m.store.DeleteOldReadings(ctx, now.Add(-cfg.Storage.Retention))
		if err != nil {
			log.Warn().Err(err).Msg("Failed to purge readings")
		} else if deleted > 0 {
			log.Debug().Int64("deleted", deleted).Msg("Purged old readings")
		}
	}
}
