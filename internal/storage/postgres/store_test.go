package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwulff/linkup-go/internal/bloodsugar"
	"github.com/jwulff/linkup-go/internal/domain"
	"github.com/jwulff/linkup-go/internal/storage"
)

// setupTestDB connects to LINKUP_TEST_DATABASE_URL and empties the linkup
// tables. It skips the test when the variable is not set.
func setupTestDB(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("LINKUP_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("LINKUP_TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	store, err := NewStore(context.Background(), databaseURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.pool.Exec(context.Background(),
		`truncate linkup_readings, linkup_poll_state, linkup_display_cache`)
	require.NoError(t, err)
	return store
}

func TestNewStoreBadURL(t *testing.T) {
	_, err := NewStore(context.Background(), "postgres://localhost:badport/linkup")
	assert.Error(t, err)
}

func TestReadings(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	old := &domain.Reading{PatientID: "P1", Timestamp: now.Add(-48 * time.Hour), ValueMgdl: 90, RecordedAt: now}
	latest := &domain.Reading{
		PatientID:        "P1",
		Timestamp:        now,
		ValueMgdl:        250,
		TrendArrow:       bloodsugar.TrendRising,
		MeasurementColor: bloodsugar.ColorCritical,
		IsHigh:           true,
		RecordedAt:       now,
	}
	require.NoError(t, store.SaveReading(ctx, old))
	require.NoError(t, store.SaveReading(ctx, latest))
	require.NoError(t, store.SaveReading(ctx, latest), "duplicates are ignored")

	got, err := store.LatestReading(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250.0, got.ValueMgdl)
	assert.Equal(t, bloodsugar.TrendRising, got.TrendArrow)
	assert.Equal(t, bloodsugar.ColorCritical, got.MeasurementColor)
	assert.True(t, got.IsHigh)
	assert.True(t, now.Equal(got.Timestamp))

	deleted, err := store.DeleteOldReadings(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestPollStateAndDisplay(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.GetPollState(ctx, "watch")
	assert.True(t, storage.IsNotFound(err))
	_, err = store.GetCachedDisplay(ctx)
	assert.True(t, storage.IsNotFound(err))

	state := domain.NewPollState("watch")
	state.RecordError(time.Now(), "auth", "rejected")
	require.NoError(t, store.SavePollState(ctx, state))
	state.RecordError(time.Now(), "auth", "rejected")
	require.NoError(t, store.SavePollState(ctx, state))

	got, err := store.GetPollState(ctx, "watch")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ErrorCount)
	assert.Equal(t, "auth", got.LastStage)

	require.NoError(t, store.CacheDisplay(ctx, &storage.CachedDisplay{
		Data:        []byte(`{"text":"---"}`),
		GeneratedAt: time.Now(),
	}))
	display, err := store.GetCachedDisplay(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"---"}`, string(display.Data))
}
