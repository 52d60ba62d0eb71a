// Package scrape runs the enabled marketplace searches for one model and
// reports what each one returned.
package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-scraper/internal/config"
	"github.com/sells-group/vehicle-scraper/internal/model"
	"github.com/sells-group/vehicle-scraper/internal/source"
)

// Options configures an Orchestrator.
type Options struct {
	// Sources are searched in this order.
	Sources []model.Source
	// MaxCalls is the per-source request ceiling.
	MaxCalls int
}

// Orchestrator runs searches sequentially so each marketplace sees at most
// one in-flight request from a run.
type Orchestrator struct {
	reg  *source.Registry
	opts Options
	now  func() time.Time
}

// Result is the combined output of one model's scrape.
type Result struct {
	Listings    []model.Listing
	Diagnostics model.ScrapeDiagnostics
}

// New creates an Orchestrator.
func New(reg *source.Registry, opts Options) *Orchestrator {
	if opts.MaxCalls <= 0 {
		opts.MaxCalls = source.DefaultMaxCalls
	}
	return &Orchestrator{reg: reg, opts: opts, now: time.Now}
}

// Scrape searches every enabled source for one model. A source that fails or
// hits its call ceiling keeps whatever listings it gathered and is marked
// failed or degraded. Only configuration problems are returned as errors.
func (o *Orchestrator) Scrape(ctx context.Context, modelKey string, mc config.ModelConfig, loc config.LocationConfig) (*Result, error) {
	log := zap.L().With(zap.String("component", "scrape.orchestrator"), zap.String("model", modelKey))

	searchers, err := o.reg.Searchers(o.opts.Sources)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: resolve sources")
	}

	res := &Result{Diagnostics: model.NewScrapeDiagnostics()}
	for _, s := range searchers {
		src := s.Source()
		q := source.Query{
			ModelKey:  modelKey,
			Model:     mc,
			Location:  loc,
			ScrapedAt: o.now().UTC().Truncate(time.Second),
			MaxCalls:  o.opts.MaxCalls,
		}

		listings, err := s.Search(ctx, q)
		status := model.SourceOK
		switch {
		case err == nil:
		case errors.Is(err, source.ErrMissingParams):
			return nil, eris.Wrapf(err, "scrape: %s", modelKey)
		case errors.Is(err, source.ErrCallCeiling):
			status = model.SourceDegraded
			log.Warn("call ceiling reached, keeping partial results",
				zap.String("source", src.String()),
				zap.Int("count", len(listings)),
				zap.Error(err),
			)
		default:
			status = model.SourceFailed
			log.Error("search failed, keeping partial results",
				zap.String("source", src.String()),
				zap.Int("count", len(listings)),
				zap.Error(err),
			)
		}

		res.Listings = append(res.Listings, listings...)
		res.Diagnostics.SourceCounts[src] = len(listings)
		res.Diagnostics.SourceStatus[src] = status
		res.Diagnostics.Total += len(listings)

		if ctx.Err() != nil {
			return res, eris.Wrap(ctx.Err(), "scrape: cancelled")
		}
	}

	log.Info("finished scraping",
		zap.Int("total", res.Diagnostics.Total),
		zap.Any("source_counts", res.Diagnostics.SourceCounts),
	)
	return res, nil
}
