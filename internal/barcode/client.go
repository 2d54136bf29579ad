package barcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

const maxFetchAttempts = 4

// Client downloads the bundled barcodes.json when it is served over HTTP.
type Client struct {
	httpClient *http.Client
	sleep      func(time.Duration)
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		sleep:      time.Sleep,
	}
}

func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.backoff(attempt)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < maxFetchAttempts {
				lastErr = fmt.Errorf("barcodes status %d", resp.StatusCode)
				c.backoff(attempt)
				continue
			}
			return nil, fmt.Errorf("barcodes fetch failed: status=%d", resp.StatusCode)
		}
		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("barcodes fetch failed")
	}
	return nil, lastErr
}

func (c *Client) backoff(attempt int) {
	c.sleep(time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond)
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
