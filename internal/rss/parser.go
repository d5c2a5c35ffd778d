package rss

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/deusflow/milnews/internal/httpclient"
	"github.com/deusflow/milnews/internal/retry"
)

const (
	maxFeedBodyBytes = 8 << 20 // 8 MiB
	defaultTimeout   = 10 * time.Second
)

var feedHeaders = map[string]string{
	"Accept": "application/rss+xml, application/atom+xml, application/xml, text/xml, application/json;q=0.9, */*;q=0.8",
}

// Parser downloads and parses feeds.
type Parser struct {
	client httpclient.Client
	retry  retry.RetryConfig
}

// NewParser builds a Parser. A nil client gets a default resty client.
func NewParser(client httpclient.Client, rc retry.RetryConfig) *Parser {
	if client == nil {
		client = httpclient.NewRestyClient(defaultTimeout)
	}
	return &Parser{client: client, retry: rc}
}

// Fetch downloads the feed at url and returns its entries in feed order.
// Transport failures and 5xx responses are retried; other statuses and
// malformed documents fail immediately.
func (p *Parser) Fetch(ctx context.Context, url string) ([]Entry, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrEmptyURL
	}

	var body []byte
	err := retry.WithRetry(ctx, p.retry, func() error {
		resp, err := p.client.Get(ctx, url, feedHeaders, maxFeedBodyBytes)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, httpclient.ErrBodyTooLarge) {
				return retry.Permanent(err)
			}
			return err
		}
		status := resp.StatusCode()
		switch {
		case status >= http.StatusInternalServerError:
			return fmt.Errorf("feed %s returned status %d", url, status)
		case status != http.StatusOK:
			return retry.Permanent(fmt.Errorf("feed %s returned status %d", url, status))
		}
		body = resp.Body()
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Clients that ignore maxBody still get the cap applied here.
	if len(body) > maxFeedBodyBytes {
		return nil, fmt.Errorf("feed %s body too large (%d bytes)", url, len(body))
	}

	return ParseEntries(body)
}

// ParseEntries parses a raw RSS, Atom or JSON feed document.
func ParseEntries(body []byte) ([]Entry, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	if feed == nil {
		return nil, nil
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, FromItem(item))
	}
	return entries, nil
}
