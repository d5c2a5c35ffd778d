// Package httpclient wraps resty for the outbound fetches made by the feed
// parser and the thumbnail resolver.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// UserAgent is sent with every request; several news sites reject Go's default.
const UserAgent = "Mozilla/5.0 (compatible; milnews/1.0; +https://github.com/deusflow/milnews)"

// ErrBodyTooLarge is returned when a response body exceeds the caller's limit.
// The read stops at the limit, so oversized bodies are never fully buffered.
var ErrBodyTooLarge = errors.New("response body too large")

// Client is the minimal surface the fetchers need.
type Client interface {
	// Get fetches url. maxBody caps the response body in bytes; zero or less
	// means unlimited.
	Get(ctx context.Context, url string, headers map[string]string, maxBody int) (*resty.Response, error)
}

type restyClient struct {
	client *resty.Client
}

// NewRestyClient builds a Client with the given per-request timeout.
func NewRestyClient(timeout time.Duration) Client {
	c := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetHeader("User-Agent", UserAgent)
	return &restyClient{client: c}
}

// Get performs a GET request. Non-2xx responses are returned without error so
// callers can decide how to treat the status.
func (c *restyClient) Get(ctx context.Context, url string, headers map[string]string, maxBody int) (*resty.Response, error) {
	req := c.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	if maxBody > 0 {
		req.SetResponseBodyLimit(maxBody)
	}
	resp, err := req.Get(url)
	if err != nil {
		if errors.Is(err, resty.ErrResponseBodyTooLarge) {
			return nil, fmt.Errorf("get %s: %w (limit %d bytes)", url, ErrBodyTooLarge, maxBody)
		}
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	return resp, nil
}
