package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestFetcher(retries int) *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		Timeout:      2 * time.Second,
		MaxRetries:   retries,
		RetryBackoff: time.Millisecond,
		Limiters:     map[string]*AdaptiveLimiter{},
	})
}

func TestHTTPFetcher_GetSendsQueryAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "jeep", r.URL.Query().Get("make"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "curl/7.68.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := newTestFetcher(1)
	body, err := f.Get(context.Background(), Request{
		URL:    srv.URL + "/search?make=jeep",
		Query:  url.Values{"page": {"1"}},
		Header: http.Header{"User-Agent": {"curl/7.68.0"}, "Accept": {"application/json"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestHTTPFetcher_DefaultUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := newTestFetcher(1).Get(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("done"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(3).Get(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "done", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPFetcher_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestFetcher(3).Get(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPFetcher_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestFetcher(2).Get(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 429")
	assert.Equal(t, int32(2), calls.Load())
}

func TestAdaptiveLimiter_Bounds(t *testing.T) {
	a := NewAdaptiveLimiter(4, 4)
	for range 10 {
		a.OnSuccess()
	}
	assert.Equal(t, rate.Limit(8), a.Limit())
	for range 10 {
		a.OnRateLimit()
	}
	assert.Equal(t, rate.Limit(1), a.Limit())
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"total_count": 42, "records": [{"vin": "1C4"}]}`))
	}))
	defer srv.Close()

	type page struct {
		TotalCount int `json:"total_count"`
		Records    []struct {
			VIN string `json:"vin"`
		} `json:"records"`
	}
	got, err := GetJSON[page](context.Background(), newTestFetcher(1), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, 42, got.TotalCount)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "1C4", got.Records[0].VIN)
}

func TestDecodeJSON_Invalid(t *testing.T) {
	_, err := DecodeJSON[map[string]any]([]byte("<html>"))
	require.Error(t, err)
}

func TestExtractScriptJSON(t *testing.T) {
	page := `<html><head>
<script src="/bundle.js"></script>
<script>window.analytics = {};</script>
<script>window.__PRELOADED_STATE__ = {"vehicle":{"vin":"1C4RJFBG5KC123456","price":{"listPriceEstimate":31500}}};window.__OTHER__ = 1;</script>
</head><body></body></html>`

	var state struct {
		Vehicle struct {
			VIN   string `json:"vin"`
			Price struct {
				ListPriceEstimate int `json:"listPriceEstimate"`
			} `json:"price"`
		} `json:"vehicle"`
	}
	err := ExtractScriptJSON([]byte(page), "window.__PRELOADED_STATE__ = ", &state)
	require.NoError(t, err)
	assert.Equal(t, "1C4RJFBG5KC123456", state.Vehicle.VIN)
	assert.Equal(t, 31500, state.Vehicle.Price.ListPriceEstimate)
}

func TestExtractScriptJSON_Missing(t *testing.T) {
	var v map[string]any
	err := ExtractScriptJSON([]byte(`<html><script>var x = 1;</script></html>`), "window.__PRELOADED_STATE__ = ", &v)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddedJSONNotFound)
}

func TestStreamCSV(t *testing.T) {
	in := "VIN, Model ,year,active_sources\n" +
		"1C4AAA,wrangler,2019,\"[autolist,edmunds]\"\n" +
		"1C4BBB,cherokee,2020\n"

	rows, errs := StreamCSV(context.Background(), strings.NewReader(in), CSVOptions{})
	var got []Record
	for r := range rows {
		got = append(got, r)
	}
	require.NoError(t, <-errs)
	require.Len(t, got, 2)
	assert.Equal(t, "1C4AAA", got[0]["vin"])
	assert.Equal(t, "wrangler", got[0]["model"])
	assert.Equal(t, "[autolist,edmunds]", got[0]["active_sources"])
	assert.Equal(t, "", got[1]["active_sources"])
}

func TestStreamCSV_Empty(t *testing.T) {
	rows, errs := StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	for range rows {
		t.Fatal("unexpected row")
	}
	assert.NoError(t, <-errs)
}

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   BlockKind
	}{
		{"cloudflare ray", 403, http.Header{"Cf-Ray": {"8a1b"}}, "", BlockCloudflare},
		{"cloudflare server", 503, http.Header{"Server": {"cloudflare"}}, "", BlockCloudflare},
		{"plain 403", 403, http.Header{}, "", BlockNone},
		{"challenge body", 200, http.Header{}, "<title>Just a moment...</title>Checking your browser", BlockCloudflare},
		{"captcha body", 200, http.Header{}, `<div id="px-captcha"></div>`, BlockCaptcha},
		{"js shell", 200, http.Header{}, "<noscript>Please enable JavaScript</noscript>", BlockJSShell},
		{"json", 200, http.Header{}, `{"records":[],"total_count":0}`, BlockNone},
		{"large page with captcha widget", 200, http.Header{}, strings.Repeat("x", challengeMaxBody) + "recaptcha", BlockNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectBlock(tt.status, tt.header, []byte(tt.body)))
		})
	}
}

func TestHTTPFetcher_BlockedPageNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Cf-Ray", "8a1b")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher(3).Get(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBlocked)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPFetcher_RequestCapsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestFetcher(3).Get(context.Background(), Request{URL: srv.URL, MaxAttempts: 1})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	calls.Store(0)
	_, err = newTestFetcher(2).Get(context.Background(), Request{URL: srv.URL, MaxAttempts: 5})
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load(), "request cap never raises the configured attempts")
}
