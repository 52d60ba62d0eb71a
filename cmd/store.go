package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-scraper/internal/augment"
	"github.com/sells-group/vehicle-scraper/internal/collector"
	"github.com/sells-group/vehicle-scraper/internal/config"
	"github.com/sells-group/vehicle-scraper/internal/db"
	"github.com/sells-group/vehicle-scraper/internal/fetcher"
	"github.com/sells-group/vehicle-scraper/internal/governor"
	"github.com/sells-group/vehicle-scraper/internal/model"
	"github.com/sells-group/vehicle-scraper/internal/scrape"
	"github.com/sells-group/vehicle-scraper/internal/source"
	"github.com/sells-group/vehicle-scraper/internal/store"
)

// openStore connects to Postgres and returns the store with its pool. The
// caller closes the pool.
func openStore(ctx context.Context) (*store.PostgresStore, *pgxpool.Pool, error) {
	pool, err := db.Open(ctx, cfg.Store.DatabaseURL, cfg.Store.PoolConfig())
	if err != nil {
		return nil, nil, eris.Wrap(err, "open store")
	}
	return store.NewPostgresStore(pool), pool, nil
}

// newFetcher builds the shared HTTP fetcher from the http config section.
func newFetcher(c *config.Config) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.HTTP.UserAgent,
		Timeout:    time.Duration(c.HTTP.TimeoutSecs) * time.Second,
		MaxRetries: c.HTTP.MaxRetries,
	})
}

// newCoordinator wires the source registry, orchestrator, resolver, and
// store into a collector.
func newCoordinator(c *config.Config, f fetcher.Fetcher, st store.Store) (*collector.Coordinator, error) {
	scrapeSources, err := model.ParseSources(c.Scrape.Sources)
	if err != nil {
		return nil, eris.Wrap(err, "parse scrape.sources")
	}
	preference, err := model.ParseSources(c.Augment.Sources)
	if err != nil {
		return nil, eris.Wrap(err, "parse augment.sources")
	}

	reg := source.DefaultRegistry(f, c)
	orch := scrape.New(reg, scrape.Options{Sources: scrapeSources, MaxCalls: c.Scrape.MaxAPICalls})
	resolver := augment.NewResolver(reg, preference)

	return collector.New(orch, resolver, st, collector.Options{
		RowConcurrency: c.Scrape.RowConcurrency,
		Augment: governor.Options{
			Width:      c.Augment.Concurrency,
			Checkpoint: c.Augment.Checkpoint,
			Cooldown:   time.Duration(c.Augment.CooldownMs) * time.Millisecond,
		},
	}), nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
