// Package source implements the per-marketplace listing searches and vehicle
// detail lookups.
package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-scraper/internal/config"
	"github.com/sells-group/vehicle-scraper/internal/model"
)

var (
	// ErrMissingParams means the model has no query params for a source.
	// It is a configuration error.
	ErrMissingParams = eris.New("source: missing source params")

	// ErrCallCeiling means pagination stopped at the per-source call limit.
	// Listings gathered before the limit are still returned.
	ErrCallCeiling = eris.New("source: api call ceiling reached")

	// ErrUnknownSource means no implementation is registered for a source.
	ErrUnknownSource = eris.New("source: no implementation registered")
)

// DefaultMaxCalls is the per-source request ceiling for one model scrape.
const DefaultMaxCalls = 50

// singleAttempt disables fetcher retries. Each paginated page counts as one
// call against the ceiling, and augmentation makes at most one call per
// vehicle.
const singleAttempt = 1

// Query is one model's search against one marketplace.
type Query struct {
	ModelKey  string
	Model     config.ModelConfig
	Location  config.LocationConfig
	ScrapedAt time.Time
	// MaxCalls caps the requests a paginated search may send.
	MaxCalls int
}

func (q Query) maxCalls() int {
	if q.MaxCalls > 0 {
		return q.MaxCalls
	}
	return DefaultMaxCalls
}

// Searcher finds current listings for a model on one marketplace.
type Searcher interface {
	Source() model.Source
	Search(ctx context.Context, q Query) ([]model.Listing, error)
}

// Detailer fetches per-vehicle detail used to augment a stored vehicle.
type Detailer interface {
	Source() model.Source
	Detail(ctx context.Context, v model.VehicleRef) (*model.VehicleUpdate, error)
}

func missingParams(src model.Source, modelKey string) error {
	return eris.Wrapf(ErrMissingParams, "%s has no params for model %s", src, modelKey)
}
