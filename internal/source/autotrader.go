package source

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-scraper/internal/fetcher"
	"github.com/sells-group/vehicle-scraper/internal/model"
	"github.com/sells-group/vehicle-scraper/internal/normalize"
)

const autoTraderURL = "https://www.autotrader.com/rest/searchresults/base"

// AutoTrader searches autotrader.com. Its endpoint returns up to 100
// listings in one response, so it is never paginated.
type AutoTrader struct {
	fetcher fetcher.Fetcher
	baseURL string
}

// NewAutoTrader creates an autotrader.com searcher.
func NewAutoTrader(f fetcher.Fetcher) *AutoTrader {
	return &AutoTrader{fetcher: f, baseURL: autoTraderURL}
}

// Source implements Searcher.
func (a *AutoTrader) Source() model.Source { return model.SourceAutoTrader }

type autoTraderResponse struct {
	Listings []struct {
		VIN           string     `json:"vin"`
		Year          int        `json:"year"`
		Zip           flexString `json:"zip"`
		Title         string     `json:"title"`
		Trim          string     `json:"trim"`
		OwnerName     string     `json:"ownerName"`
		PricingDetail struct {
			Derived string `json:"derived"`
		} `json:"pricingDetail"`
		Specifications struct {
			Mileage struct {
				Value string `json:"value"`
			} `json:"mileage"`
		} `json:"specifications"`
	} `json:"listings"`
}

// Search implements Searcher.
func (a *AutoTrader) Search(ctx context.Context, q Query) ([]model.Listing, error) {
	p := q.Model.Params.AutoTrader
	if p == nil {
		return nil, missingParams(a.Source(), q.ModelKey)
	}

	req := fetcher.Request{
		URL:    a.baseURL,
		Header: curlHeaders(),
		Query: url.Values{
			"makeCodeList":   {p.MakeCodeList},
			"modelCodeList":  {p.ModelCodeList},
			"startYear":      {strconv.Itoa(q.Model.MinYear)},
			"maxPrice":       {strconv.Itoa(q.Model.MaxPrice)},
			"maxMileage":     {strconv.Itoa(q.Model.MaxMiles)},
			"city":           {q.Location.City},
			"state":          {q.Location.State},
			"zip":            {q.Location.Zip},
			"searchRadius":   {strconv.Itoa(q.Model.Radius)},
			"sortBy":         {"derivedpriceASC"},
			"numRecords":     {"100"},
			"allListingType": {"all-cars"},
			"channel":        {"ATC"},
			"isNewSearch":    {"true"},
		},
		// One request per search, so retries stay inside the call ceiling.
		MaxAttempts: q.maxCalls(),
	}

	resp, err := fetcher.GetJSON[autoTraderResponse](ctx, a.fetcher, req)
	if err != nil {
		return nil, eris.Wrap(err, "auto_trader: search")
	}

	log := zap.L().With(zap.String("component", "source.auto_trader"))
	out := make([]model.Listing, 0, len(resp.Listings))
	for _, l := range resp.Listings {
		if l.VIN == "" {
			continue
		}
		price, err := normalize.ParsePrice(l.PricingDetail.Derived)
		if err != nil {
			log.Debug("unparseable price", zap.String("vin", l.VIN), zap.Error(err))
		}
		miles, err := normalize.ParseMileage(l.Specifications.Mileage.Value)
		if err != nil {
			log.Debug("unparseable mileage", zap.String("vin", l.VIN), zap.Error(err))
		}
		out = append(out, model.Listing{
			VIN:       l.VIN,
			Source:    model.SourceAutoTrader,
			ScrapedAt: q.ScrapedAt,
			Year:      l.Year,
			Version:   l.Trim,
			Price:     price,
			Mileage:   miles,
			Owner:     l.OwnerName,
			Zip:       string(l.Zip),
			Title:     l.Title,
		})
	}
	return out, nil
}
