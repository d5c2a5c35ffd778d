package news

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/milnews/internal/logger"
	"github.com/deusflow/milnews/internal/metrics"
	"github.com/deusflow/milnews/internal/rss"
)

const (
	DefaultFreshnessWindow = 24 * time.Hour
	DefaultMaxPerSource    = 5
	DefaultConcurrency     = 8
)

// Fetcher is the feed-parsing collaborator: it returns a source's raw entries
// in feed order.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]rss.Entry, error)
}

// Options tunes one fetch cycle. Zero values take the package defaults.
type Options struct {
	Now             time.Time
	FreshnessWindow time.Duration
	MaxPerSource    int
	Concurrency     int
	SourceTimeout   time.Duration // 0 disables the per-source deadline
}

func (o Options) withDefaults() Options {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.FreshnessWindow <= 0 {
		o.FreshnessWindow = DefaultFreshnessWindow
	}
	if o.MaxPerSource <= 0 {
		o.MaxPerSource = DefaultMaxPerSource
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// FetchAll fetches every source through a bounded worker pool and returns the
// aggregate newest first. A failing source contributes nothing; FetchAll
// itself never fails.
func FetchAll(ctx context.Context, fetcher Fetcher, sources []rss.FeedSource, opts Options) []Article {
	opts = opts.withDefaults()
	cutoff := opts.Now.Add(-opts.FreshnessWindow)

	perSource := make([][]Article, len(sources))
	var g errgroup.Group
	g.SetLimit(opts.Concurrency)

	for i, src := range sources {
		g.Go(func() error {
			perSource[i] = fetchSource(ctx, fetcher, src, cutoff, opts)
			return nil
		})
	}
	_ = g.Wait()

	var all []Article
	for _, articles := range perSource {
		all = append(all, articles...)
	}
	SortNewestFirst(all)
	metrics.Global.AddArticles(len(all))
	return all
}

func fetchSource(ctx context.Context, fetcher Fetcher, src rss.FeedSource, cutoff time.Time, opts Options) (articles []Article) {
	defer func() {
		if r := recover(); r != nil {
			metrics.Global.IncrementFeedsFailed()
			logger.Error("Feed fetch panicked", "source", src.Name, "url", src.URL, "panic", fmt.Sprint(r))
			articles = nil
		}
	}()

	if src.URL == "" {
		return nil
	}

	sctx := ctx
	if opts.SourceTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, opts.SourceTimeout)
		defer cancel()
	}

	started := time.Now()
	entries, err := fetcher.Fetch(sctx, src.URL)
	if err != nil {
		metrics.Global.IncrementFeedsFailed()
		logger.Warn("Feed fetch failed", "source", src.Name, "url", src.URL, "error", err)
		return nil
	}
	metrics.Global.IncrementFeedsFetched()

	articles, skipped := SelectFresh(entries, src, cutoff, opts.Now, opts.MaxPerSource)
	metrics.Global.AddEntries(len(entries), skipped)
	logger.Debug("Feed fetched",
		"source", src.Name,
		"entries", len(entries),
		"kept", len(articles),
		"skipped", skipped,
		"elapsed", time.Since(started),
	)
	return articles
}

// SelectFresh walks entries in feed order, normalizing only those with a
// timestamp at or after cutoff, and stops once max articles are collected.
// Timestamps later than now are clamped to now. It returns the articles and
// the number of entries rejected by the freshness policy.
func SelectFresh(entries []rss.Entry, src rss.FeedSource, cutoff, now time.Time, max int) ([]Article, int) {
	var (
		out     []Article
		skipped int
	)
	for _, entry := range entries {
		if len(out) >= max {
			break
		}
		ts, ok := PublishedAt(entry)
		if !ok || ts.Before(cutoff) {
			skipped++
			continue
		}

		article := Normalize(entry, src)
		if article.Published.After(now) {
			article.Published = now
		}
		out = append(out, article)
	}
	return out, skipped
}

// SortNewestFirst orders articles by publish time descending. Articles without
// a timestamp sort last; ties keep their relative order.
func SortNewestFirst(articles []Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].Published.After(articles[j].Published)
	})
}
