// Package store persists vehicles and listings to Postgres and tallies
// insert and duplicate outcomes.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-scraper/internal/model"
)

var (
	// ErrDuplicate means the row's key already exists. Callers count it
	// rather than treat it as a failure.
	ErrDuplicate = eris.New("store: duplicate key")

	// ErrVehicleNotFound means an update matched no vehicle row.
	ErrVehicleNotFound = eris.New("store: vehicle not found")
)

// VehicleFilter narrows ActiveVehicles.
type VehicleFilter struct {
	// Sources keeps vehicles listed on at least one of these sources.
	// Empty means any source.
	Sources []model.Source
	// Limit caps the result size. Zero means no limit.
	Limit int
}

// Store defines the persistence interface for the collection pipeline.
type Store interface {
	InsertVehicle(ctx context.Context, v model.Vehicle) error
	InsertListing(ctx context.Context, l model.Listing) error
	UpdateVehicle(ctx context.Context, vin string, u model.VehicleUpdate) error
	ActiveVehicles(ctx context.Context, filter VehicleFilter) ([]model.VehicleRef, error)
	Migrate(ctx context.Context) error
}
