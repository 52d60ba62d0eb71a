// Package augment resolves per-vehicle detail from the first preferred
// marketplace a vehicle is listed on.
package augment

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-scraper/internal/model"
	"github.com/sells-group/vehicle-scraper/internal/source"
)

// ErrNoSupportedSource means none of the vehicle's active sources has a
// detail implementation in the preference list.
var ErrNoSupportedSource = eris.New("augment: no supported source for vehicle")

// DefaultPreference is the detail-source order used when none is configured.
var DefaultPreference = []model.Source{model.SourceAutolist, model.SourceEdmunds}

// Resolver picks one detail source per vehicle.
type Resolver struct {
	reg        *source.Registry
	preference []model.Source
}

// NewResolver creates a Resolver. An empty preference uses DefaultPreference.
func NewResolver(reg *source.Registry, preference []model.Source) *Resolver {
	if len(preference) == 0 {
		preference = DefaultPreference
	}
	return &Resolver{reg: reg, preference: preference}
}

// Resolve calls the first preferred source that the vehicle is listed on and
// that has a Detailer. Exactly one source is tried: its result or error is
// final, with no fallback to the next preference.
func (r *Resolver) Resolve(ctx context.Context, v model.VehicleRef) (*model.VehicleUpdate, model.Source, error) {
	for _, src := range r.preference {
		if !v.HasSource(src) {
			continue
		}
		d, ok := r.reg.Detailer(src)
		if !ok {
			continue
		}
		upd, err := d.Detail(ctx, v)
		if err != nil {
			return nil, src, eris.Wrapf(err, "augment: %s via %s", v.VIN, src)
		}
		return upd, src, nil
	}
	return nil, "", eris.Wrapf(ErrNoSupportedSource, "vin %s with sources %v", v.VIN, v.ActiveSources)
}
