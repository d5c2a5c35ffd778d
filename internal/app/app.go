// Package app wires the feed pipeline, the query engine and the thumbnail
// resolver into one long-lived service.
package app

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/deusflow/milnews/internal/cache"
	"github.com/deusflow/milnews/internal/config"
	"github.com/deusflow/milnews/internal/httpclient"
	"github.com/deusflow/milnews/internal/logger"
	"github.com/deusflow/milnews/internal/metrics"
	"github.com/deusflow/milnews/internal/news"
	"github.com/deusflow/milnews/internal/query"
	"github.com/deusflow/milnews/internal/retry"
	"github.com/deusflow/milnews/internal/rss"
	"github.com/deusflow/milnews/internal/storage"
	"github.com/deusflow/milnews/internal/thumbnail"
)

const (
	ViewGrid = "grid"
	ViewList = "list"

	aggregateKey = "articles"
)

// Params are the user-facing query parameters of a listing.
type Params struct {
	Q      string
	Region string
	Domain string
	Source string
	View   string
	Page   int
}

// ParseParams reads listing parameters from a query string. Bad values are
// defaulted, never rejected.
func ParseParams(values url.Values) Params {
	page, err := strconv.Atoi(strings.TrimSpace(values.Get("page")))
	if err != nil {
		page = 1
	}
	return Params{
		Q:      values.Get("q"),
		Region: values.Get("region"),
		Domain: values.Get("domain"),
		Source: values.Get("source"),
		View:   values.Get("view"),
		Page:   page,
	}.Normalized()
}

// Normalized trims every field, lower-cases the text filters and defaults
// the view and page.
func (p Params) Normalized() Params {
	f := p.Filters()
	view := strings.ToLower(strings.TrimSpace(p.View))
	if view != ViewList {
		view = ViewGrid
	}
	return Params{
		Q:      f.Q,
		Region: f.Region,
		Domain: f.Domain,
		Source: f.Source,
		View:   view,
		Page:   max(p.Page, 1),
	}
}

// Filters returns the query-engine filters carried by p.
func (p Params) Filters() query.Filters {
	return query.Filters{Q: p.Q, Region: p.Region, Domain: p.Domain, Source: p.Source}.Normalized()
}

// Listing is one rendered page of articles with everything a front end needs
// to draw the filter bar.
type Listing struct {
	query.Result
	View    string   `json:"view"`
	Regions []string `json:"regions"`
	Domains []string `json:"domains"`
}

// Service owns the cached aggregate. It is safe for concurrent use.
type Service struct {
	cfg       *config.Config
	fetcher   news.Fetcher
	thumbs    *thumbnail.Resolver
	thumbDisk *storage.FileCache
	aggregate *cache.Cache[[]news.Article]
	trends    query.TrendConfig
	refresh   singleflight.Group
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithFetcher replaces the HTTP feed fetcher.
func WithFetcher(f news.Fetcher) Option {
	return func(s *Service) { s.fetcher = f }
}

// WithResolver replaces the thumbnail resolver.
func WithResolver(r *thumbnail.Resolver) Option {
	return func(s *Service) { s.thumbs = r }
}

// New builds a Service from cfg. Call Close when done.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:       cfg,
		aggregate: cache.New[[]news.Article](cfg.RefreshInterval),
		trends: query.TrendConfig{
			StopWords:   query.DefaultStopWords(),
			TopSources:  query.DefaultTopSources,
			TopKeywords: cfg.TopKeywords,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.fetcher == nil {
		s.fetcher = rss.NewParser(
			httpclient.NewRestyClient(cfg.FetchTimeout),
			retry.RetryConfig{MaxAttempts: cfg.RetryAttempts, Delay: cfg.RetryDelay, Backoff: true},
		)
	}
	if s.thumbs == nil {
		s.thumbDisk = storage.NewFileCache(cfg.ThumbCacheDir, ".jpg")
		s.thumbs = thumbnail.NewResolver(
			httpclient.NewRestyClient(cfg.ThumbTimeout),
			s.thumbDisk,
			thumbnail.Options{Timeout: cfg.ThumbTimeout, Quality: cfg.ThumbQuality, MaxDim: cfg.ThumbMaxDim},
		)
	}
	return s
}

// Close releases background resources.
func (s *Service) Close() {
	s.aggregate.Close()
}

// Sources reloads the feed registry.
func (s *Service) Sources() ([]rss.FeedSource, error) {
	return rss.LoadFeeds(s.cfg.FeedsConfigPath)
}

// Articles returns the current aggregate, refreshing it when the cached copy
// is older than the refresh interval. Concurrent callers share one refresh.
func (s *Service) Articles(ctx context.Context) ([]news.Article, error) {
	if articles, ok := s.aggregate.Get(aggregateKey); ok {
		return articles, nil
	}

	v, err, _ := s.refresh.Do(aggregateKey, func() (any, error) {
		if articles, ok := s.aggregate.Get(aggregateKey); ok {
			return articles, nil
		}
		return s.fetch(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.([]news.Article), nil
}

// Refresh fetches a new aggregate and swaps it in. Readers keep getting the
// previous aggregate until the fetch completes; a failed fetch leaves it in
// place.
func (s *Service) Refresh(ctx context.Context) ([]news.Article, error) {
	v, err, _ := s.refresh.Do(aggregateKey, func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.([]news.Article), nil
}

func (s *Service) fetch(ctx context.Context) ([]news.Article, error) {
	start := time.Now()

	sources, err := s.Sources()
	if err != nil {
		metrics.Global.SetError(err.Error())
		return nil, fmt.Errorf("load feeds: %w", err)
	}

	articles := news.FetchAll(ctx, s.fetcher, sources, news.Options{
		Now:             s.now(),
		FreshnessWindow: s.cfg.FreshnessWindow,
		MaxPerSource:    s.cfg.MaxPerSource,
		Concurrency:     s.cfg.FetchConcurrency,
		SourceTimeout:   s.cfg.FetchTimeout,
	})

	elapsed := time.Since(start)
	metrics.Global.RecordRefreshTime(elapsed)
	metrics.Global.SetLastRun()
	s.aggregate.Set(aggregateKey, articles, s.cfg.RefreshInterval)

	logger.Info("Refreshed articles",
		"sources", len(sources),
		"articles", len(articles),
		"duration", elapsed)
	return articles, nil
}

// Stats reports the state of the caches the service owns.
func (s *Service) Stats() map[string]any {
	stats := map[string]any{}
	if articles, ok := s.aggregate.Get(aggregateKey); ok {
		stats["cached_articles"] = len(articles)
	} else {
		stats["cached_articles"] = 0
	}
	if s.thumbDisk != nil {
		stats["thumbnail_cache"] = s.thumbDisk.GetStats()
	}
	return stats
}

// Query filters and paginates the aggregate.
func (s *Service) Query(ctx context.Context, p Params) (Listing, error) {
	p = p.Normalized()
	articles, err := s.Articles(ctx)
	if err != nil {
		return Listing{}, err
	}

	return Listing{
		Result:  query.Run(articles, p.Filters(), p.Page, s.cfg.PageSize, s.trends),
		View:    p.View,
		Regions: query.Regions(),
		Domains: query.Domains(),
	}, nil
}

// Thumbnail resolves a cropped JPEG for an image URL. Every failure is
// reported as thumbnail.ErrNotFound.
func (s *Service) Thumbnail(ctx context.Context, imageURL string, w, h int) ([]byte, error) {
	return s.thumbs.Resolve(ctx, imageURL, w, h)
}
