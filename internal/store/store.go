// Package store persists the neighbourhood cache and the comparison run log.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nodescope/area-compare/internal/model"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	AreaID string          `json:"area_id,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// CachedNeighbourhoods is the area set fetched for one city.
type CachedNeighbourhoods struct {
	CityKey   string       `json:"city_key"`
	City      string       `json:"city"`
	Areas     []model.Area `json:"areas"`
	FetchedAt time.Time    `json:"fetched_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Store defines the persistence interface for comparisons.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.Run) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Neighbourhood cache, keyed by geo.CityKey. A miss or expired entry returns nil, nil.
	GetNeighbourhoods(ctx context.Context, city string) (*CachedNeighbourhoods, error)
	PutNeighbourhoods(ctx context.Context, city string, areas []model.Area, ttl time.Duration) error
	DeleteExpiredNeighbourhoods(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// defaultListLimit caps ListRuns when no limit is given.
const defaultListLimit = 100

// newRun fills the id, status and timestamps CreateRun leaves to the store.
func newRun(run model.Run, id func() string) model.Run {
	if run.ID == "" {
		run.ID = id()
	}
	if run.Status == "" {
		run.Status = model.RunStatusQueued
	}
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now
	return run
}
