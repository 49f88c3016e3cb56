// Package sqlite provides a SQLite implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jwulff/linkup-go/internal/domain"
	"github.com/jwulff/linkup-go/internal/storage"

	_ "modernc.org/sqlite"
)

// Store is a SQLite implementation of storage.Store.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// NewMemoryStore creates an in-memory SQLite store.
func NewMemoryStore() (*Store, error) {
	return newStore(":memory:")
}

// NewFileStore creates a file-based SQLite store.
func NewFileStore(path string) (*Store, error) {
	return newStore(path)
}

func newStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each :memory: connection is its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reading methods

// SaveReading stores a reading. A reading already stored for the same
// patient and timestamp is kept as is.
func (s *Store) SaveReading(ctx context.Context, r *domain.Reading) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO readings (patient_id, timestamp, raw_timestamp, value_mgdl, trend_arrow,
			measurement_color, is_high, is_low, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.PatientID, r.Timestamp.UTC(), r.RawTimestamp, r.ValueMgdl, int(r.TrendArrow),
		int(r.MeasurementColor), r.IsHigh, r.IsLow, r.RecordedAt.UTC())
	return err
}

func (s *Store) LatestReading(ctx context.Context) (*domain.Reading, error) {
	var r domain.Reading
	err := s.db.QueryRowContext(ctx, `
		SELECT patient_id, timestamp, raw_timestamp, value_mgdl, trend_arrow, measurement_color,
			is_high, is_low, recorded_at
		FROM readings ORDER BY timestamp DESC, id DESC LIMIT 1
	`).Scan(&r.PatientID, &r.Timestamp, &r.RawTimestamp, &r.ValueMgdl, &r.TrendArrow, &r.MeasurementColor,
		&r.IsHigh, &r.IsLow, &r.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{Resource: "reading", ID: "latest"}
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) DeleteOldReadings(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM readings WHERE timestamp < ?", before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Poll state methods

func (s *Store) SavePollState(ctx context.Context, state *domain.PollState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO poll_state (id, last_run, last_success, patient_id, error_count, last_error, last_stage)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, state.ID, state.LastRun.UTC(), state.LastSuccess.UTC(), state.PatientID,
		state.ErrorCount, state.LastError, state.LastStage)
	return err
}

func (s *Store) GetPollState(ctx context.Context, id string) (*domain.PollState, error) {
	var state domain.PollState
	err := s.db.QueryRowContext(ctx, `
		SELECT id, last_run, last_success, patient_id, error_count, last_error, last_stage
		FROM poll_state WHERE id = ?
	`, id).Scan(&state.ID, &state.LastRun, &state.LastSuccess, &state.PatientID,
		&state.ErrorCount, &state.LastError, &state.LastStage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{Resource: "poll state", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Display cache methods

func (s *Store) CacheDisplay(ctx context.Context, display *storage.CachedDisplay) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO display_cache (id, data, generated_at)
		VALUES (1, ?, ?)
	`, display.Data, display.GeneratedAt.UTC())
	return err
}

func (s *Store) GetCachedDisplay(ctx context.Context) (*storage.CachedDisplay, error) {
	var display storage.CachedDisplay
	err := s.db.QueryRowContext(ctx, `
		SELECT data, generated_at FROM display_cache WHERE id = 1
	`).Scan(&display.Data, &display.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{Resource: "display", ID: "cached"}
	}
	if err != nil {
		return nil, err
	}
	return &display, nil
}
