package source

import (
	"github.com/sells-group/vehicle-scraper/internal/config"
	"github.com/sells-group/vehicle-scraper/internal/fetcher"
)

// DefaultRegistry registers every implemented marketplace in search order.
func DefaultRegistry(f fetcher.Fetcher, cfg *config.Config) *Registry {
	r := NewRegistry()
	r.Register(NewAutoTrader(f))
	r.Register(NewAutolist(f, cfg.Location))
	r.Register(NewCarsDotCom(f))
	r.Register(NewEdmunds(f, cfg.Augment.EdmundsMake))
	return r
}
