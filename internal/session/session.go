// Package session maintains the LibreLinkUp credential and runs the
// login, connection and measurement calls of one tick.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwulff/linkup-go/internal/bloodsugar"
	"github.com/jwulff/linkup-go/internal/config"
	"github.com/jwulff/linkup-go/internal/librelink"
	"github.com/jwulff/linkup-go/internal/notify"
	"github.com/rs/zerolog"
)

// Client is the subset of librelink.Client used by a Session.
type Client interface {
	Login(ctx context.Context, region librelink.Region, username, password string) (librelink.Credential, error)
	ResolveConnection(ctx context.Context, region librelink.Region, cred librelink.Credential, preferredID string) (librelink.Connection, error)
	FetchLatest(ctx context.Context, region librelink.Region, cred librelink.Credential, patientID string) (bloodsugar.Measurement, error)
}

var _ Client = (*librelink.Client)(nil)

// Stage names the step of a tick that failed.
type Stage string

const (
	StageConfig     Stage = "config"
	StageAuth       Stage = "auth"
	StageConnection Stage = "connection"
	StageFetch      Stage = "fetch"
)

// Result is the outcome of one fetch. Exactly one of Measurement and Err is
// set; a result without a measurement is absent regardless of the reason.
type Result struct {
	Measurement *bloodsugar.Measurement
	Connection  librelink.Connection
	Stage       Stage
	Err         error
	// Renewed is true when this fetch logged in.
	Renewed bool
}

// Absent reports whether the result carries no reading.
func (r Result) Absent() bool {
	return r.Measurement == nil
}

// Reason is the failure class of Err, empty on success.
func (r Result) Reason() string {
	return librelink.Reason(r.Err)
}

// Session owns the credential state and runs the fetch pipeline.
type Session struct {
	client   Client
	state    *State
	notifier notify.Notifier
	logger   zerolog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithNotifier sets where user-actionable failures are reported.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Session) {
		s.notifier = n
	}
}

// WithLogger sets the fallback logger used when ctx carries none.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithState uses an existing credential state.
func WithState(state *State) Option {
	return func(s *Session) {
		s.state = state
	}
}

// New creates a Session with an empty credential.
func New(client Client, opts ...Option) *Session {
	s := &Session{
		client:   client,
		state:    NewState(),
		notifier: notify.Nop,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State exposes the credential state.
func (s *Session) State() *State {
	return s.state
}

// FetchLatestReading runs one tick: renew the credential if needed, resolve
// the connection and fetch its latest measurement. Any failure clears the
// credential and yields an absent result; nothing is retried within the call.
func (s *Session) FetchLatestReading(ctx context.Context, cfg config.Config) Result {
	log := s.log(ctx)
	renewed := false

	if !s.state.IsValid() {
		log.Info().Msg("Renewing token")
		s.state.Clear()

		cred, err := s.client.Login(ctx, cfg.Region, cfg.Username, cfg.Password)
		if err != nil {
			return s.fail(ctx, StageAuth, err)
		}
		if !cred.ValidAt(s.state.now()) {
			log.Warn().Msg("Auth ticket has no usable expiry, it will be renewed next tick")
		}
		s.state.Set(cred)
		renewed = true
	}

	cred := s.state.Credential()

	conn, err := s.client.ResolveConnection(ctx, cfg.Region, cred, cfg.Connection)
	if err != nil {
		return s.fail(ctx, StageConnection, err)
	}

	m, err := s.client.FetchLatest(ctx, cfg.Region, cred, conn.PatientID)
	if err != nil {
		result := s.fail(ctx, StageFetch, err)
		result.Connection = conn
		return result
	}

	log.Debug().
		Float64("mgdl", m.ValueInMgPerDl).
		Int("trend", int(m.TrendArrow)).
		Str("timestamp", m.Timestamp).
		Msg("Received glucose measurement")

	return Result{
		Measurement: &m,
		Connection:  conn,
		Renewed:     renewed,
	}
}

// fail clears the credential, logs err and notifies the user when only a
// configuration change can fix it.
func (s *Session) fail(ctx context.Context, stage Stage, err error) Result {
	s.state.Clear()

	if errors.Is(err, librelink.ErrUnknownRegion) {
		stage = StageConfig
	}
	s.log(ctx).Error().Err(err).Str("stage", string(stage)).Str("reason", librelink.Reason(err)).Msg("Fetch failed")

	var wrong *librelink.WrongRegionError
	switch {
	case errors.As(err, &wrong):
		s.notifier.Notify(notify.Notice{
			Level:   notify.LevelError,
			Key:     "wrong-region",
			Message: fmt.Sprintf("LibreLink Up - Logged in to the wrong region. Switch to '%s' region.", wrong.Region),
		})
	case errors.Is(err, librelink.ErrRejected):
		s.notifier.Notify(notify.Notice{
			Level:   notify.LevelError,
			Key:     "rejected",
			Message: "LibreLink Up - Login rejected. Please check your credentials.",
		})
	case errors.Is(err, librelink.ErrUnknownRegion):
		s.notifier.Notify(notify.Notice{
			Level:   notify.LevelError,
			Key:     "unknown-region",
			Message: fmt.Sprintf("LibreLink Up - %v. Check the region setting.", err),
		})
	}

	return Result{Stage: stage, Err: err}
}

func (s *Session) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.logger
}
