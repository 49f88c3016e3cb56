// Package storage provides storage abstractions for linkup.
package storage

import (
	"context"
	"time"

	"github.com/jwulff/linkup-go/internal/domain"
)

// Store is the interface for local persistence. It never holds credentials.
type Store interface {
	// Readings
	SaveReading(ctx context.Context, reading *domain.Reading) error
	LatestReading(ctx context.Context) (*domain.Reading, error)
	DeleteOldReadings(ctx context.Context, before time.Time) (int64, error)

	// Poll bookkeeping
	SavePollState(ctx context.Context, state *domain.PollState) error
	GetPollState(ctx context.Context, id string) (*domain.PollState, error)

	// Display cache
	CacheDisplay(ctx context.Context, display *CachedDisplay) error
	GetCachedDisplay(ctx context.Context) (*CachedDisplay, error)

	// Lifecycle
	Close() error
}

// CachedDisplay is the last display state delivered, as JSON.
type CachedDisplay struct {
	Data        []byte
	GeneratedAt time.Time
}

// ErrNotFound is returned when a record is not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e ErrNotFound) Error() string {
	return e.Resource + " not found: " + e.ID
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
