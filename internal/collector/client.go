package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// ClientOptions configures the HTTP client shared by the REST fetchers.
type ClientOptions struct {
	Timeout         time.Duration
	RequestsPerSec  float64
	Burst           int
	MaxRetryElapsed time.Duration
	Proxy           string
}

// apiClient is an HTTP client with rate limiting and retries.
type apiClient struct {
	http       *http.Client
	limiter    *rate.Limiter
	maxElapsed time.Duration
}

func newAPIClient(opts ClientOptions) *apiClient {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.MaxRetryElapsed == 0 {
		opts.MaxRetryElapsed = 30 * time.Second
	}
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if opts.Proxy != "" {
		if u, err := url.Parse(opts.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &apiClient{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
		maxElapsed: opts.MaxRetryElapsed,
	}
}

// StatusError is returned for a non-200 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// getJSON performs a GET and decodes the body into out. Transport errors,
// 429 and 5xx are retried with exponential backoff.
func (c *apiClient) getJSON(ctx context.Context, endpoint string, header http.Header, out any) error {
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			serr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
			if retryable(resp.StatusCode) {
				return serr
			}
			return backoff.Permanent(serr)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.maxElapsed
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
