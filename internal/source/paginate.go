package source

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-scraper/internal/model"
)

// pageFunc fetches one 1-based page and reports the listings it held and
// whether another page follows.
type pageFunc func(ctx context.Context, page int) ([]model.Listing, bool, error)

// paginate requests pages in order until fetch reports no further page. It
// checks the call ceiling before every request; on the ceiling or a failed
// page it returns the listings gathered so far together with the error.
func paginate(ctx context.Context, src model.Source, maxCalls int, fetch pageFunc) ([]model.Listing, error) {
	log := zap.L().With(zap.String("component", "source.paginate"), zap.String("source", src.String()))

	var out []model.Listing
	calls := 0
	for page := 1; ; page++ {
		if calls >= maxCalls {
			return out, eris.Wrapf(ErrCallCeiling, "%s stopped after %d calls with %d listings", src, calls, len(out))
		}

		got, more, err := fetch(ctx, page)
		calls++
		if err != nil {
			return out, eris.Wrapf(err, "%s page %d", src, page)
		}
		out = append(out, got...)
		log.Debug("fetched page", zap.Int("page", page), zap.Int("count", len(got)), zap.Bool("more", more))

		if !more {
			return out, nil
		}
	}
}
