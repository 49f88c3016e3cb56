// Package postgres provides a PostgreSQL implementation of the storage.Store
// interface for deployments that share readings with other tools.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jwulff/linkup-go/internal/bloodsugar"
	"github.com/jwulff/linkup-go/internal/domain"
	"github.com/jwulff/linkup-go/internal/storage"
)

const schema = `
create table if not exists linkup_readings (
    id bigserial primary key,
    patient_id text not null,
    ts timestamptz not null,
    raw_timestamp text not null default '',
    value_mgdl double precision not null,
    trend_arrow integer not null default 0,
    measurement_color integer not null default 0,
    is_high boolean not null default false,
    is_low boolean not null default false,
    recorded_at timestamptz not null,
    unique (patient_id, ts)
);
create index if not exists idx_linkup_readings_ts on linkup_readings (ts);

create table if not exists linkup_poll_state (
    id text primary key,
    last_run timestamptz not null,
    last_success timestamptz not null,
    patient_id text not null default '',
    error_count integer not null default 0,
    last_error text not null default '',
    last_stage text not null default ''
);

create table if not exists linkup_display_cache (
    id integer primary key check (id = 1),
    data jsonb not null,
    generated_at timestamptz not null default now()
);
`

// Store is a PostgreSQL implementation of storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// NewStore connects to databaseURL and creates the tables if needed.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	// Ping to fail fast.
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if _, err := pool.Exec(connectCtx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) SaveReading(ctx context.Context, r *domain.Reading) error {
	_, err := s.pool.Exec(ctx, `
		insert into linkup_readings (patient_id, ts, raw_timestamp, value_mgdl, trend_arrow,
			measurement_color, is_high, is_low, recorded_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		on conflict (patient_id, ts) do nothing
	`, r.PatientID, r.Timestamp, r.RawTimestamp, r.ValueMgdl, int(r.TrendArrow),
		int(r.MeasurementColor), r.IsHigh, r.IsLow, r.RecordedAt)
	return err
}

func (s *Store) LatestReading(ctx context.Context) (*domain.Reading, error) {
	var (
		r            domain.Reading
		trend, color int
	)
	err := s.pool.QueryRow(ctx, `
		select patient_id, ts, raw_timestamp, value_mgdl, trend_arrow, measurement_color,
			is_high, is_low, recorded_at
		from linkup_readings order by ts desc, id desc limit 1
	`).Scan(&r.PatientID, &r.Timestamp, &r.RawTimestamp, &r.ValueMgdl, &trend, &color,
		&r.IsHigh, &r.IsLow, &r.RecordedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound{Resource: "reading", ID: "latest"}
	}
	if err != nil {
		return nil, err
	}
	r.TrendArrow = bloodsugar.TrendArrow(trend)
	r.MeasurementColor = bloodsugar.MeasurementColor(color)
	return &r, nil
}

func (s *Store) DeleteOldReadings(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `delete from linkup_readings where ts < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) SavePollState(ctx context.Context, state *domain.PollState) error {
	_, err := s.pool.Exec(ctx, `
		insert into linkup_poll_state (id, last_run, last_success, patient_id, error_count, last_error, last_stage)
		values ($1, $2, $3, $4, $5, $6, $7)
		on conflict (id) do update
		set last_run = excluded.last_run,
		    last_success = excluded.last_success,
		    patient_id = excluded.patient_id,
		    error_count = excluded.error_count,
		    last_error = excluded.last_error,
		    last_stage = excluded.last_stage
	`, state.ID, state.LastRun, state.LastSuccess, state.PatientID,
		state.ErrorCount, state.LastError, state.LastStage)
	return err
}

func (s *Store) GetPollState(ctx context.Context, id string) (*domain.PollState, error) {
	var state domain.PollState
	err := s.pool.QueryRow(ctx, `
		select id, last_run, last_success, patient_id, error_count, last_error, last_stage
		from linkup_poll_state where id = $1
	`, id).Scan(&state.ID, &state.LastRun, &state.LastSuccess, &state.PatientID,
		&state.ErrorCount, &state.LastError, &state.LastStage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound{Resource: "poll state", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) CacheDisplay(ctx context.Context, display *storage.CachedDisplay) error {
	_, err := s.pool.Exec(ctx, `
		insert into linkup_display_cache (id, data, generated_at)
		values (1, $1::jsonb, $2)
		on conflict (id) do update
		set data = excluded.data, generated_at = excluded.generated_at
	`, string(display.Data), display.GeneratedAt)
	return err
}

func (s *Store) GetCachedDisplay(ctx context.Context) (*storage.CachedDisplay, error) {
	var (
		display storage.CachedDisplay
		data    string
	)
	err := s.pool.QueryRow(ctx, `
		select data::text, generated_at from linkup_display_cache where id = 1
	`).Scan(&data, &display.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound{Resource: "display", ID: "cached"}
	}
	if err != nil {
		return nil, err
	}
	display.Data = []byte(data)
	return &display, nil
}
