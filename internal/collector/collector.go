// Package collector ties scraping, persistence, and augmentation together
// into the two top-level runs.
package collector

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-scraper/internal/augment"
	"github.com/sells-group/vehicle-scraper/internal/config"
	"github.com/sells-group/vehicle-scraper/internal/governor"
	"github.com/sells-group/vehicle-scraper/internal/model"
	"github.com/sells-group/vehicle-scraper/internal/normalize"
	"github.com/sells-group/vehicle-scraper/internal/scrape"
	"github.com/sells-group/vehicle-scraper/internal/store"
)

// Options configures a Coordinator.
type Options struct {
	// RowConcurrency bounds concurrent listing inserts.
	RowConcurrency int
	// Augment paces augmentation requests.
	Augment governor.Options
}

// Coordinator runs collection and augmentation.
type Coordinator struct {
	orch     *scrape.Orchestrator
	resolver *augment.Resolver
	store    store.Store
	opts     Options
}

// New creates a Coordinator.
func New(orch *scrape.Orchestrator, resolver *augment.Resolver, st store.Store, opts Options) *Coordinator {
	if opts.RowConcurrency <= 0 {
		opts.RowConcurrency = 8
	}
	return &Coordinator{orch: orch, resolver: resolver, store: st, opts: opts}
}

// RunCollection scrapes and persists every model in key order. Diagnostics
// for completed models are returned even when a later model fails.
func (c *Coordinator) RunCollection(ctx context.Context, models map[string]config.ModelConfig, loc config.LocationConfig) (model.RunDiagnostics, error) {
	log := zap.L().With(zap.String("component", "collector.coordinator"))

	keys := make([]string, 0, len(models))
	for k := range models {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	diags := make(model.RunDiagnostics, len(keys))
	for _, key := range keys {
		mc := models[key]

		res, err := c.orch.Scrape(ctx, key, mc, loc)
		if err != nil {
			return diags, eris.Wrapf(err, "collector: scrape %s", key)
		}

		gw := store.NewGateway(c.store)
		gov := governor.New(governor.Options{Width: c.opts.RowConcurrency, Name: "insert:" + key})
		_, err = governor.ForEach(ctx, gov, res.Listings, func(ctx context.Context, l model.Listing) error {
			return gw.PersistListing(ctx, mc.Naming(), l)
		})

		diags[key] = model.ModelDiagnostics{Scrape: res.Diagnostics, Insert: gw.Diagnostics()}
		log.Info("finished inserting scrape results",
			zap.String("model", key),
			zap.Any("insert_diagnostics", diags[key].Insert),
		)
		if err != nil {
			return diags, eris.Wrapf(err, "collector: insert %s", key)
		}
	}
	return diags, nil
}

// RunAugmentation resolves and applies detail for each vehicle, pausing
// every checkpoint. Unresolvable vehicles are counted as skipped. A model
// name missing from the mapping tables fails the whole run.
func (c *Coordinator) RunAugmentation(ctx context.Context, vehicles []model.VehicleRef) (model.AugmentDiagnostics, error) {
	log := zap.L().With(zap.String("component", "collector.coordinator"))

	gw := store.NewGateway(c.store)
	opts := c.opts.Augment
	opts.Name = "augment"
	opts.Fatal = isConfigError
	gov := governor.New(opts)

	var (
		mu       sync.Mutex
		counts   = make(map[model.Source]int)
		resolved atomic.Int64
	)

	stats, err := governor.ForEach(ctx, gov, vehicles, func(ctx context.Context, v model.VehicleRef) error {
		upd, src, err := c.resolver.Resolve(ctx, v)
		if err != nil {
			return err
		}
		if err := gw.ApplyUpdate(ctx, v.VIN, *upd); err != nil {
			return err
		}
		resolved.Add(1)
		mu.Lock()
		counts[src]++
		mu.Unlock()
		return nil
	})

	diag := model.AugmentDiagnostics{
		Total:        len(vehicles),
		Augmented:    resolved.Load(),
		Skipped:      stats.Skipped,
		Pauses:       stats.Pauses,
		SourceCounts: counts,
	}
	log.Info("augmented vehicles",
		zap.Int64("augmented", diag.Augmented),
		zap.Int("total", diag.Total),
		zap.Int64("skipped", diag.Skipped),
	)
	if err != nil {
		return diag, eris.Wrap(err, "collector: augment")
	}
	return diag, nil
}

// isConfigError reports item errors caused by missing configuration rather
// than by the vehicle or the upstream.
func isConfigError(err error) bool {
	return errors.Is(err, normalize.ErrUnmappedModel)
}
