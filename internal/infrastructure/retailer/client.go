// Package retailer fetches product listings from retailer web sites and APIs.
package retailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/msrptw/backend/internal/domain"
)

// ClientOptions tunes the HTTP client shared by one retailer's fetchers
type ClientOptions struct {
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	UserAgent     string
	Retries       int // extra attempts after a 5xx or connection error; 0 disables retrying
	Logger        *zap.Logger
}

// Client is a rate-limited HTTP client that decodes response bodies to UTF-8
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	userAgent   string
	maxAttempts int
	logger      *zap.Logger
}

// NewClient creates a retailer client; zero options fall back to 30s timeout,
// 2 requests per second with a burst of 4.
func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Limit(opts.RatePerSecond)
	if opts.RatePerSecond <= 0 {
		limit = 2
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 4
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "msrptw/1.0"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		rateLimiter: rate.NewLimiter(limit, burst),
		userAgent:   userAgent,
		maxAttempts: 1 + max(opts.Retries, 0),
		logger:      logger,
	}
}

// Get fetches url and returns the body decoded according to its declared or
// sniffed charset. When retries are enabled, connection errors and 5xx
// responses are retried with backoff; timeouts never are.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		body, retry, err := c.get(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || attempt == c.maxAttempts {
			break
		}

		c.logger.Debug("retrying request",
			zap.String("location", url),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(exponentialBackoff(attempt)):
		}
	}
	return nil, lastErr
}

func (c *Client) get(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retryable(err), fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("%w: %s", domain.ErrNotFound, url)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("request %s: status %d", url, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("request %s: status %d", url, resp.StatusCode)
	}

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", url, err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, true, fmt.Errorf("read %s: %w", url, err)
	}
	return body, false, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return !(errors.As(err, &netErr) && netErr.Timeout())
}

func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}
