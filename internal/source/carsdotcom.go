package source

import (
	"context"
	"net/url"
	"strconv"

	"github.com/sells-group/vehicle-scraper/internal/fetcher"
	"github.com/sells-group/vehicle-scraper/internal/model"
)

const carsDotComURL = "https://www.cars.com/for-sale/listings/"

// CarsDotCom searches cars.com. The endpoint cannot filter by year, so
// listings older than the model's min year are dropped after each page.
type CarsDotCom struct {
	fetcher fetcher.Fetcher
	baseURL string
}

// NewCarsDotCom creates a cars.com searcher.
func NewCarsDotCom(f fetcher.Fetcher) *CarsDotCom {
	return &CarsDotCom{fetcher: f, baseURL: carsDotComURL}
}

// Source implements Searcher.
func (c *CarsDotCom) Source() model.Source { return model.SourceCarsDotCom }

type carsDotComPage struct {
	DTM struct {
		Vehicle []struct {
			VIN        string     `json:"vin"`
			Year       flexInt    `json:"year"`
			Price      flexInt    `json:"price"`
			Mileage    flexInt    `json:"mileage"`
			Trim       string     `json:"trim"`
			CustomerID flexString `json:"customerId"`
		} `json:"vehicle"`
	} `json:"dtm"`
	JSON struct {
		Pagination struct {
			NumberOfPages int `json:"numberOfPages"`
		} `json:"pagination"`
	} `json:"json"`
}

// Search implements Searcher.
func (c *CarsDotCom) Search(ctx context.Context, q Query) ([]model.Listing, error) {
	p := q.Model.Params.CarsCom
	if p == nil {
		return nil, missingParams(c.Source(), q.ModelKey)
	}

	base := url.Values{
		"mkId":         {p.MkID},
		"mdId":         {p.MdID},
		"prMx":         {strconv.Itoa(q.Model.MaxPrice)},
		"zc":           {q.Location.Zip},
		"rd":           {strconv.Itoa(q.Model.Radius)},
		"sort":         {"price-lowest"},
		"perPage":      {"100"},
		"returnRecs":   {"false"},
		"searchSource": {"PAGINATION"},
	}
	if p.MlgID != "" {
		base.Set("mlgId", p.MlgID)
	}

	return paginate(ctx, c.Source(), q.maxCalls(), func(ctx context.Context, page int) ([]model.Listing, bool, error) {
		query := cloneValues(base)
		query.Set("page", strconv.Itoa(page))

		resp, err := fetcher.GetJSON[carsDotComPage](ctx, c.fetcher, fetcher.Request{
			URL:         c.baseURL,
			Query:       query,
			Header:      curlHeaders(),
			MaxAttempts: singleAttempt,
		})
		if err != nil {
			return nil, false, err
		}

		out := make([]model.Listing, 0, len(resp.DTM.Vehicle))
		for _, v := range resp.DTM.Vehicle {
			if v.VIN == "" || v.Year.Int() < q.Model.MinYear {
				continue
			}
			out = append(out, model.Listing{
				VIN:       v.VIN,
				Source:    model.SourceCarsDotCom,
				ScrapedAt: q.ScrapedAt,
				Year:      v.Year.Int(),
				Version:   v.Trim,
				Price:     v.Price.Ptr(),
				Mileage:   v.Mileage.Ptr(),
				Owner:     "cars.com_" + string(v.CustomerID),
			})
		}
		return out, resp.JSON.Pagination.NumberOfPages > page, nil
	})
}
