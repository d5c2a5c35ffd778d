package news

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/milnews/internal/httpclient"
	"github.com/deusflow/milnews/internal/retry"
	"github.com/deusflow/milnews/internal/rss"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	mu       sync.Mutex
	feeds    map[string][]rss.Entry
	errs     map[string]error
	delay    map[string]time.Duration
	inFlight int32
	peak     int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]rss.Entry, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if cur <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, cur) {
			break
		}
	}

	f.mu.Lock()
	delay := f.delay[url]
	err := f.errs[url]
	entries := f.feeds[url]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func entryAt(title string, age time.Duration) rss.Entry {
	ts := now.Add(-age)
	return rss.Entry{Title: title, Link: "https://example.com/" + title, PublishedParsed: &ts}
}

func TestFetchAll_SortedNewestFirst(t *testing.T) {
	f := &fakeFetcher{feeds: map[string][]rss.Entry{
		"a": {entryAt("a1", 5*time.Hour), entryAt("a2", 1*time.Hour)},
		"b": {entryAt("b1", 3*time.Hour), entryAt("b2", 30*time.Minute)},
	}}
	sources := []rss.FeedSource{{URL: "a", Name: "A"}, {URL: "b", Name: "B"}}

	got := FetchAll(context.Background(), f, sources, Options{Now: now})
	require.Len(t, got, 4)

	titles := make([]string, len(got))
	for i, a := range got {
		titles[i] = a.Title
		if i > 0 {
			assert.False(t, got[i].Published.After(got[i-1].Published), "not sorted at %d", i)
		}
	}
	assert.Equal(t, []string{"b2", "a2", "b1", "a1"}, titles)
}

func TestFetchAll_StrictFreshness(t *testing.T) {
	f := &fakeFetcher{feeds: map[string][]rss.Entry{
		"a": {
			{Title: "undated", Link: "https://example.com/undated"},
			entryAt("stale", 25*time.Hour),
			entryAt("edge", 24*time.Hour),
			entryAt("fresh", time.Hour),
		},
	}}

	got := FetchAll(context.Background(), f, []rss.FeedSource{{URL: "a", Name: "A"}}, Options{Now: now, FreshnessWindow: 24 * time.Hour})
	require.Len(t, got, 2)
	assert.Equal(t, "fresh", got[0].Title)
	assert.Equal(t, "edge", got[1].Title)
	for _, a := range got {
		assert.True(t, a.HasTimestamp())
	}
}

func TestFetchAll_MaxPerSource(t *testing.T) {
	var entries []rss.Entry
	for i := 0; i < 10; i++ {
		entries = append(entries, entryAt(fmt.Sprintf("e%d", i), time.Duration(i+1)*time.Minute))
	}
	f := &fakeFetcher{feeds: map[string][]rss.Entry{"a": entries}}

	got := FetchAll(context.Background(), f, []rss.FeedSource{{URL: "a", Name: "A"}}, Options{Now: now, MaxPerSource: 3})
	require.Len(t, got, 3)
	assert.Equal(t, "e0", got[0].Title)
	assert.Equal(t, "e2", got[2].Title)
}

func TestFetchAll_FailingSourceIsIsolated(t *testing.T) {
	f := &fakeFetcher{
		feeds: map[string][]rss.Entry{"good": {entryAt("ok", time.Hour)}},
		errs:  map[string]error{"bad": errors.New("parse feed: unexpected EOF")},
	}
	sources := []rss.FeedSource{{URL: "bad", Name: "Bad"}, {URL: "good", Name: "Good"}, {Name: "No URL"}}

	got := FetchAll(context.Background(), f, sources, Options{Now: now})
	require.Len(t, got, 1)
	assert.Equal(t, "Good", got[0].Source)
}

func TestFetchAll_SlowSourceTimesOut(t *testing.T) {
	f := &fakeFetcher{
		feeds: map[string][]rss.Entry{"slow": {entryAt("late", time.Hour)}, "fast": {entryAt("quick", time.Hour)}},
		delay: map[string]time.Duration{"slow": 5 * time.Second},
	}
	sources := []rss.FeedSource{{URL: "slow", Name: "Slow"}, {URL: "fast", Name: "Fast"}}

	started := time.Now()
	got := FetchAll(context.Background(), f, sources, Options{Now: now, SourceTimeout: 50 * time.Millisecond})
	assert.Less(t, time.Since(started), 2*time.Second)
	require.Len(t, got, 1)
	assert.Equal(t, "quick", got[0].Title)
}

func TestFetchAll_BoundedConcurrency(t *testing.T) {
	f := &fakeFetcher{feeds: map[string][]rss.Entry{}, delay: map[string]time.Duration{}}
	var sources []rss.FeedSource
	for i := 0; i < 12; i++ {
		url := fmt.Sprintf("src-%d", i)
		f.feeds[url] = []rss.Entry{entryAt(url, time.Hour)}
		f.delay[url] = 20 * time.Millisecond
		sources = append(sources, rss.FeedSource{URL: url, Name: url})
	}

	got := FetchAll(context.Background(), f, sources, Options{Now: now, Concurrency: 3})
	assert.Len(t, got, 12)
	assert.LessOrEqual(t, atomic.LoadInt32(&f.peak), int32(3))
}

func TestSelectFresh_ClampsFutureTimestamps(t *testing.T) {
	future := now.Add(2 * time.Hour)
	entries := []rss.Entry{{Title: "ahead", PublishedParsed: &future}}

	got, skipped := SelectFresh(entries, rss.FeedSource{Name: "A"}, now.Add(-time.Hour), now, 5)
	require.Len(t, got, 1)
	assert.Zero(t, skipped)
	assert.True(t, got[0].Published.Equal(now))
}

func TestSortNewestFirst_UndatedLast(t *testing.T) {
	articles := []Article{
		{Title: "undated"},
		{Title: "old", Published: now.Add(-time.Hour)},
		{Title: "new", Published: now},
	}
	SortNewestFirst(articles)
	assert.Equal(t, "new", articles[0].Title)
	assert.Equal(t, "old", articles[1].Title)
	assert.Equal(t, "undated", articles[2].Title)
}

func TestFetchAll_MalformedFeedOverHTTP(t *testing.T) {
	fresh := time.Now().Add(-time.Hour).UTC().Format(time.RFC1123Z)
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Good</title>
<item><title>Air wing redeploys</title><link>https://example.com/air</link><pubDate>%s</pubDate></item>
</channel></rss>`, fresh)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<<<not xml at all"))
	}))
	defer bad.Close()

	parser := rss.NewParser(httpclient.NewRestyClient(2*time.Second), retry.RetryConfig{MaxAttempts: 1})
	sources := []rss.FeedSource{{URL: bad.URL, Name: "Bad"}, {URL: good.URL, Name: "Good", Domain: "air"}}

	got := FetchAll(context.Background(), parser, sources, Options{SourceTimeout: 3 * time.Second})
	require.Len(t, got, 1)
	assert.Equal(t, "Air wing redeploys", got[0].Title)
	assert.Equal(t, "air", got[0].Domain)
}
