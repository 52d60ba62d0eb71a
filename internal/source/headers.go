package source

import (
	"net/http"

	"github.com/sells-group/vehicle-scraper/internal/fetcher"
)

// curlUserAgent is sent to hosts that answer browser agents with an HTML
// error page or a stalled connection.
const curlUserAgent = "curl/7.64.1"

func curlHeaders() http.Header {
	return http.Header{
		"User-Agent": {curlUserAgent},
		"Accept":     {"application/json, text/plain, */*"},
	}
}

func jsonHeaders() http.Header {
	return http.Header{
		"User-Agent": {fetcher.DefaultUserAgent},
		"Accept":     {"application/json, text/plain, */*"},
	}
}

// navigationHeaders mimics a top-level browser page load. Accept-Encoding is
// left to the transport so gzip bodies are decoded transparently.
func navigationHeaders() http.Header {
	return http.Header{
		"User-Agent":                {fetcher.DefaultUserAgent},
		"Accept":                    {"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
		"Accept-Language":           {"en-US,en;q=0.9"},
		"Sec-Fetch-Dest":            {"document"},
		"Sec-Fetch-Mode":            {"navigate"},
		"Sec-Fetch-Site":            {"none"},
		"Upgrade-Insecure-Requests": {"1"},
	}
}
