package store

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-scraper/internal/model"
)

// Gateway writes listings through a Store and tallies outcomes. It is safe
// for concurrent use.
type Gateway struct {
	store Store

	vehiclesInserted atomic.Int64
	vehiclesDuped    atomic.Int64
	listingsInserted atomic.Int64
	listingsDuped    atomic.Int64
	skipped          atomic.Int64
}

// NewGateway creates a Gateway over s.
func NewGateway(s Store) *Gateway {
	return &Gateway{store: s}
}

// PersistListing inserts the listing's vehicle and then the listing itself.
// A duplicate at either step is counted and does not stop the listing
// insert. Any other failure counts the listing as skipped.
func (g *Gateway) PersistListing(ctx context.Context, n model.Naming, l model.Listing) error {
	log := zap.L().With(zap.String("component", "store.gateway"))

	err := g.store.InsertVehicle(ctx, model.VehicleFromListing(n, l))
	switch {
	case err == nil:
		g.vehiclesInserted.Add(1)
	case errors.Is(err, ErrDuplicate):
		g.vehiclesDuped.Add(1)
		log.Debug("duplicate vehicle", zap.String("vin", l.VIN))
	default:
		g.skipped.Add(1)
		return eris.Wrap(err, "gateway: persist vehicle")
	}

	err = g.store.InsertListing(ctx, l)
	switch {
	case err == nil:
		g.listingsInserted.Add(1)
	case errors.Is(err, ErrDuplicate):
		g.listingsDuped.Add(1)
		log.Debug("duplicate listing",
			zap.String("vin", l.VIN),
			zap.String("source", l.Source.String()),
			zap.Time("scrape_time", l.ScrapedAt),
		)
	default:
		g.skipped.Add(1)
		return eris.Wrap(err, "gateway: persist listing")
	}
	return nil
}

// ApplyUpdate writes augmentation fields to an existing vehicle.
func (g *Gateway) ApplyUpdate(ctx context.Context, vin string, u model.VehicleUpdate) error {
	if err := g.store.UpdateVehicle(ctx, vin, u); err != nil {
		g.skipped.Add(1)
		return eris.Wrap(err, "gateway: apply update")
	}
	return nil
}

// Diagnostics snapshots the tallies.
func (g *Gateway) Diagnostics() model.InsertDiagnostics {
	return model.InsertDiagnostics{
		InsertCounts: model.KindCounts{
			Vehicles: g.vehiclesInserted.Load(),
			Listings: g.listingsInserted.Load(),
		},
		DupeCounts: model.KindCounts{
			Vehicles: g.vehiclesDuped.Load(),
			Listings: g.listingsDuped.Load(),
		},
		Skipped: g.skipped.Load(),
	}
}
