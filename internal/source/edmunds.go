package source

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-scraper/internal/fetcher"
	"github.com/sells-group/vehicle-scraper/internal/model"
	"github.com/sells-group/vehicle-scraper/internal/normalize"
)

const (
	edmundsSearchURL = "https://www.edmunds.com/gateway/api/purchasefunnel/v1/srp/inventory"
	edmundsSiteURL   = "https://www.edmunds.com"

	preloadedStateMarker = "window.__PRELOADED_STATE__ = "
)

// Edmunds searches edmunds.com inventory and resolves vehicle detail from
// the state embedded in its vehicle pages.
type Edmunds struct {
	fetcher     fetcher.Fetcher
	defaultMake string
	searchURL   string
	siteURL     string
}

// NewEdmunds creates an edmunds.com searcher and detailer. defaultMake is the
// make slug used for detail pages when a vehicle carries no make.
func NewEdmunds(f fetcher.Fetcher, defaultMake string) *Edmunds {
	return &Edmunds{
		fetcher:     f,
		defaultMake: defaultMake,
		searchURL:   edmundsSearchURL,
		siteURL:     edmundsSiteURL,
	}
}

// Source implements Searcher and Detailer.
func (e *Edmunds) Source() model.Source { return model.SourceEdmunds }

type edmundsPage struct {
	Inventories struct {
		TotalPages int `json:"totalPages"`
		Results    []struct {
			VIN         string `json:"vin"`
			VehicleInfo struct {
				Mileage   flexInt `json:"mileage"`
				StyleInfo struct {
					Year flexInt `json:"year"`
					Trim string  `json:"trim"`
				} `json:"styleInfo"`
			} `json:"vehicleInfo"`
			Prices struct {
				DisplayPrice flexInt `json:"displayPrice"`
			} `json:"prices"`
			DealerInfo struct {
				Name     string  `json:"name"`
				Distance float64 `json:"distance"`
				Address  struct {
					Zip flexString `json:"zip"`
				} `json:"address"`
			} `json:"dealerInfo"`
		} `json:"results"`
	} `json:"inventories"`
}

// Search implements Searcher.
func (e *Edmunds) Search(ctx context.Context, q Query) ([]model.Listing, error) {
	p := q.Model.Params.Edmunds
	if p == nil {
		return nil, missingParams(e.Source(), q.ModelKey)
	}

	base := url.Values{
		"make":                 {p.Make},
		"model":                {p.Model},
		"lat":                  {strconv.FormatFloat(q.Location.Lat, 'f', -1, 64)},
		"lon":                  {strconv.FormatFloat(q.Location.Lon, 'f', -1, 64)},
		"zip":                  {q.Location.Zip},
		"displayPrice":         {"10000-" + strconv.Itoa(q.Model.MaxPrice)},
		"dma":                  {strconv.Itoa(q.Location.DMA)},
		"inventoryType":        {"used,cpo"},
		"mileage":              {"0-" + strconv.Itoa(q.Model.MaxMiles)},
		"radius":               {strconv.Itoa(q.Model.Radius)},
		"sortBy":               {"price:asc"},
		"year":                 {strconv.Itoa(q.Model.MinYear) + "-*"},
		"fetchSuggestedFacets": {"true"},
	}

	return paginate(ctx, e.Source(), q.maxCalls(), func(ctx context.Context, page int) ([]model.Listing, bool, error) {
		query := cloneValues(base)
		query.Set("pageNum", strconv.Itoa(page))

		resp, err := fetcher.GetJSON[edmundsPage](ctx, e.fetcher, fetcher.Request{
			URL:         e.searchURL,
			Query:       query,
			Header:      navigationHeaders(),
			MaxAttempts: singleAttempt,
		})
		if err != nil {
			return nil, false, err
		}

		out := make([]model.Listing, 0, len(resp.Inventories.Results))
		for _, r := range resp.Inventories.Results {
			if r.VIN == "" {
				continue
			}
			out = append(out, model.Listing{
				VIN:       r.VIN,
				Source:    model.SourceEdmunds,
				ScrapedAt: q.ScrapedAt,
				Year:      r.VehicleInfo.StyleInfo.Year.Int(),
				Version:   r.VehicleInfo.StyleInfo.Trim,
				Price:     r.Prices.DisplayPrice.Ptr(),
				Mileage:   r.VehicleInfo.Mileage.Ptr(),
				Owner:     r.DealerInfo.Name,
				Zip:       string(r.DealerInfo.Address.Zip),
				Remote:    normalize.Remote(r.DealerInfo.Distance, float64(q.Model.Radius)),
			})
		}
		return out, resp.Inventories.TotalPages > page, nil
	})
}

type edmundsState struct {
	SEO struct {
		HeadContent struct {
			JSONLD []struct {
				DriveWheelConfiguration string `json:"driveWheelConfiguration"`
				Color                   string `json:"color"`
			} `json:"jsonld"`
		} `json:"headContent"`
	} `json:"seo"`
	Inventory struct {
		VIN map[string]struct {
			ThirdPartyInfo struct {
				PriceValidation struct {
					ListPriceEstimate flexInt `json:"listPriceEstimate"`
				} `json:"priceValidation"`
			} `json:"thirdPartyInfo"`
			DealerInfo struct {
				Name     string  `json:"name"`
				Distance flexInt `json:"distance"`
			} `json:"dealerInfo"`
		} `json:"vin"`
	} `json:"inventory"`
	PageContext struct {
		Vehicle struct {
			ModelYear struct {
				Year flexInt `json:"year"`
			} `json:"modelYear"`
		} `json:"vehicle"`
	} `json:"pageContext"`
}

// Detail implements Detailer. The model is taken from the stored vehicle
// since the page is addressed by it.
func (e *Edmunds) Detail(ctx context.Context, v model.VehicleRef) (*model.VehicleUpdate, error) {
	body, err := e.fetcher.Get(ctx, fetcher.Request{
		URL:         e.detailURL(v),
		Header:      navigationHeaders(),
		MaxAttempts: singleAttempt,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "edmunds: detail %s", v.VIN)
	}

	var state edmundsState
	if err := fetcher.ExtractScriptJSON(body, preloadedStateMarker, &state); err != nil {
		return nil, eris.Wrapf(err, "edmunds: detail %s", v.VIN)
	}

	inv, ok := state.Inventory.VIN[v.VIN]
	if !ok {
		return nil, eris.Errorf("edmunds: detail %s: vin missing from page inventory", v.VIN)
	}

	upd := &model.VehicleUpdate{
		Model:          v.Model,
		EstimatedValue: inv.ThirdPartyInfo.PriceValidation.ListPriceEstimate.Ptr(),
		Owner:          inv.DealerInfo.Name,
		Distance:       inv.DealerInfo.Distance.Ptr(),
		Year:           state.PageContext.Vehicle.ModelYear.Year.Int(),
	}
	if ld := state.SEO.HeadContent.JSONLD; len(ld) > 0 {
		upd.Drivetrain = normalize.Drivetrain(ld[0].DriveWheelConfiguration)
		upd.Color = normalize.Color(ld[0].Color)
	}
	if upd.Year == 0 {
		upd.Year = v.Year
	}
	return upd, nil
}

func (e *Edmunds) detailURL(v model.VehicleRef) string {
	mk := v.Make
	if mk == "" {
		mk = e.defaultMake
	}
	return e.siteURL + "/" + slug(mk) + "/" + slug(v.Model) + "/" + strconv.Itoa(v.Year) + "/vin/" + url.PathEscape(v.VIN)
}

// slug turns a stored name like "grand_cherokee" into a URL path segment.
func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "-", " ", "-").Replace(s)
}
