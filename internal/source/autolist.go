package source

import (
	"context"
	"math"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-scraper/internal/config"
	"github.com/sells-group/vehicle-scraper/internal/fetcher"
	"github.com/sells-group/vehicle-scraper/internal/model"
	"github.com/sells-group/vehicle-scraper/internal/normalize"
)

const (
	autolistSearchURL  = "https://www.autolist.com/search"
	autolistVehicleURL = "https://www.autolist.com/api/vehicles/"
)

// Autolist searches autolist.com and resolves vehicle detail from its
// vehicle API. Searches are nationwide, so Remote is derived from the
// distance autolist reports.
type Autolist struct {
	fetcher   fetcher.Fetcher
	location  config.LocationConfig
	searchURL string
	detailURL string
}

// NewAutolist creates an autolist.com searcher and detailer. loc is the
// origin used for vehicle distances in Detail.
func NewAutolist(f fetcher.Fetcher, loc config.LocationConfig) *Autolist {
	return &Autolist{
		fetcher:   f,
		location:  loc,
		searchURL: autolistSearchURL,
		detailURL: autolistVehicleURL,
	}
}

// Source implements Searcher and Detailer.
func (a *Autolist) Source() model.Source { return model.SourceAutolist }

type autolistPage struct {
	TotalCount int `json:"total_count"`
	Records    []struct {
		VIN                string     `json:"vin"`
		Year               int        `json:"year"`
		Trim               string     `json:"trim"`
		Price              string     `json:"price"`
		Mileage            string     `json:"mileage"`
		DealerName         string     `json:"dealer_name"`
		Zip                flexString `json:"zip"`
		DistanceFromOrigin float64    `json:"distance_from_origin"`
	} `json:"records"`
}

// Search implements Searcher.
func (a *Autolist) Search(ctx context.Context, q Query) ([]model.Listing, error) {
	p := q.Model.Params.Autolist
	if p == nil {
		return nil, missingParams(a.Source(), q.ModelKey)
	}

	base := url.Values{
		"make":        {p.Make},
		"model":       {p.Model},
		"year_min":    {strconv.Itoa(q.Model.MinYear)},
		"price_max":   {strconv.Itoa(q.Model.MaxPrice)},
		"mileage":     {strconv.Itoa(q.Model.MaxMiles)},
		"latitude":    {strconv.FormatFloat(q.Location.Lat, 'f', -1, 64)},
		"longitude":   {strconv.FormatFloat(q.Location.Lon, 'f', -1, 64)},
		"radius":      {strconv.Itoa(q.Model.Radius)},
		"sort_filter": {""},
	}

	log := zap.L().With(zap.String("component", "source.autolist"))
	collected := 0

	return paginate(ctx, a.Source(), q.maxCalls(), func(ctx context.Context, page int) ([]model.Listing, bool, error) {
		query := cloneValues(base)
		query.Set("page", strconv.Itoa(page))

		resp, err := fetcher.GetJSON[autolistPage](ctx, a.fetcher, fetcher.Request{
			URL:         a.searchURL,
			Query:       query,
			Header:      jsonHeaders(),
			MaxAttempts: singleAttempt,
		})
		if err != nil {
			return nil, false, err
		}
		collected += len(resp.Records)

		out := make([]model.Listing, 0, len(resp.Records))
		for _, r := range resp.Records {
			if r.VIN == "" {
				continue
			}
			price, err := normalize.ParsePrice(r.Price)
			if err != nil {
				log.Debug("unparseable price", zap.String("vin", r.VIN), zap.Error(err))
			}
			miles, err := normalize.ParseMileage(r.Mileage)
			if err != nil {
				log.Debug("unparseable mileage", zap.String("vin", r.VIN), zap.Error(err))
			}
			out = append(out, model.Listing{
				VIN:       r.VIN,
				Source:    model.SourceAutolist,
				ScrapedAt: q.ScrapedAt,
				Year:      r.Year,
				Version:   r.Trim,
				Price:     price,
				Mileage:   miles,
				Owner:     r.DealerName,
				Zip:       string(r.Zip),
				Remote:    normalize.Remote(r.DistanceFromOrigin, float64(q.Model.Radius)),
			})
		}

		more := len(resp.Records) > 0 && resp.TotalCount > collected
		return out, more, nil
	})
}

type autolistVehicle struct {
	JumpstartInfo struct {
		Mod string `json:"mod"`
	} `json:"jumpstart_info"`
	Driveline               string   `json:"driveline"`
	ExteriorColor           string   `json:"exterior_color"`
	Price                   flexInt  `json:"price"`
	RelativePriceDifference float64  `json:"relative_price_difference"`
	DealerName              string   `json:"dealer_name"`
	Year                    flexInt  `json:"year"`
	Lat                     *float64 `json:"lat"`
	Lon                     *float64 `json:"lon"`
}

// Detail implements Detailer.
func (a *Autolist) Detail(ctx context.Context, v model.VehicleRef) (*model.VehicleUpdate, error) {
	data, err := fetcher.GetJSON[autolistVehicle](ctx, a.fetcher, fetcher.Request{
		URL:         a.detailURL + url.PathEscape(v.VIN),
		Query:       url.Values{"jumpstart": {"desktop"}},
		Header:      jsonHeaders(),
		MaxAttempts: singleAttempt,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "autolist: detail %s", v.VIN)
	}

	modelName, err := normalize.ModelName(model.SourceAutolist, data.JumpstartInfo.Mod)
	if err != nil {
		return nil, err
	}

	upd := &model.VehicleUpdate{
		Model:          modelName,
		Drivetrain:     normalize.Drivetrain(data.Driveline),
		Color:          normalize.Color(data.ExteriorColor),
		EstimatedValue: estimatedValue(data.Price.Ptr(), data.RelativePriceDifference),
		Owner:          data.DealerName,
		Year:           data.Year.Int(),
	}
	if data.Lat != nil && data.Lon != nil {
		upd.Distance = model.IntPtr(normalize.DistanceMiles(a.location.Lat, a.location.Lon, *data.Lat, *data.Lon))
	}
	return upd, nil
}

// estimatedValue backs the market value out of a listing price and its
// percentage difference from market: price / ((100 + diff) / 100).
func estimatedValue(price *int, relDiff float64) *int {
	if price == nil || relDiff <= -100 {
		return nil
	}
	return model.IntPtr(int(math.Round(float64(*price) / ((100 + relDiff) / 100))))
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
