// Package fetcher issues rate-limited, retrying HTTP requests against the
// marketplaces and decodes the JSON, HTML, and CSV payloads they return.
package fetcher

import (
	"context"
	"net/http"
	"net/url"
)

// Request describes a single GET against a marketplace endpoint.
type Request struct {
	URL    string
	Query  url.Values
	Header http.Header
	// MaxAttempts caps the attempts for this request, retries included. Zero
	// uses the fetcher's configured attempts.
	MaxAttempts int
}

// Fetcher retrieves the body of a request.
type Fetcher interface {
	Get(ctx context.Context, req Request) ([]byte, error)
}

// FullURL renders the request URL with its query string appended.
func (r Request) FullURL() (string, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", err
	}
	if len(r.Query) > 0 {
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
