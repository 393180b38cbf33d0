package httpclient

import (
	"context"
	"io"
	"net/http"
	"time"
)

// RetryPolicy controls GetWithRetry. After the n-th failed attempt the
// client sleeps n*n*Unit, so the defaults wait 1s then 4s.
type RetryPolicy struct {
	MaxRetries int
	Unit       time.Duration
}

// DefaultRetryPolicy retries twice.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, Unit: time.Second}
}

// Backoff returns the sleep after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return time.Duration(attempt*attempt) * p.Unit
}

// GetWithRetry performs a GET and repeats it on transport errors and on
// 5xx responses, up to MaxRetries extra attempts. The last response or
// error is returned; a 5xx response is returned as-is once retries run out.
func (c *Client) GetWithRetry(ctx context.Context, url string, policy RetryPolicy) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.Get(ctx, url)
		if !retryable(resp, err) || attempt >= policy.MaxRetries || ctx.Err() != nil {
			return resp, err
		}
		drain(resp)

		timer := time.NewTimer(policy.Backoff(attempt + 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func retryable(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode >= http.StatusInternalServerError
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
