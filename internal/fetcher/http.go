package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/vehicle-scraper/internal/resilience"
)

// DefaultUserAgent is sent when a request does not set its own.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RetryBackoff overrides the initial delay between attempts.
	RetryBackoff time.Duration
	Limiters     map[string]*AdaptiveLimiter
}

// HTTPFetcher implements Fetcher over net/http with per-host rate limiting
// and retries on throttling and upstream failures.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	retry    resilience.RetryConfig
	limiters map[string]*AdaptiveLimiter
	fallback *rate.Limiter
}

// NewHTTPFetcher creates an HTTPFetcher. Zero-valued options fall back to a
// 10s timeout, 3 attempts, and the default marketplace limiters.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Limiters == nil {
		opts.Limiters = DefaultLimiters()
	}
	retry := resilience.DefaultRetryConfig().WithAttempts(opts.MaxRetries)
	if opts.RetryBackoff > 0 {
		retry.InitialBackoff = opts.RetryBackoff
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		retry:    retry,
		limiters: opts.Limiters,
		fallback: rate.NewLimiter(10, 10),
	}
}

// Get sends req and returns the response body of a 2xx reply. 429 and 5xx
// replies are retried up to the smaller of the configured attempts and
// req.MaxAttempts; any other status or an anti-bot page fails immediately.
func (f *HTTPFetcher) Get(ctx context.Context, req Request) ([]byte, error) {
	target, err := req.FullURL()
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %s", req.URL)
	}
	u, _ := url.Parse(target)

	retry := f.retry
	if req.MaxAttempts > 0 && req.MaxAttempts < retry.MaxAttempts {
		retry.MaxAttempts = req.MaxAttempts
	}
	retry.OnRetry = resilience.LogRetries(u.Host)

	body, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		return f.attempt(ctx, u, req.Header)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: get %s", u.Host+u.Path)
	}
	return body, nil
}

func (f *HTTPFetcher) attempt(ctx context.Context, u *url.URL, header http.Header) ([]byte, error) {
	adaptive := f.limiters[u.Host]
	if adaptive != nil {
		if err := adaptive.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}
	} else if err := f.fallback.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	for k, vs := range header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", f.opts.UserAgent)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests && adaptive != nil {
		adaptive.OnRateLimit()
	}
	if kind := DetectBlock(resp.StatusCode, resp.Header, nil); kind != BlockNone {
		return nil, blockedError(kind, u.Host, resp.StatusCode)
	}
	if resilience.RetryableStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("http %d from %s", resp.StatusCode, u.Host), resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zap.L().Debug("unexpected status",
			zap.String("host", u.Host),
			zap.String("path", u.Path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, eris.Errorf("unexpected status %d from %s", resp.StatusCode, u.Host)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read body"), 0)
	}
	if kind := DetectBlock(resp.StatusCode, resp.Header, body); kind != BlockNone {
		return nil, blockedError(kind, u.Host, resp.StatusCode)
	}
	if adaptive != nil {
		adaptive.OnSuccess()
	}
	return body, nil
}
