package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Feed counters
	FeedsFetched      int64
	FeedsFailed       int64
	EntriesSeen       int64
	EntriesSkipped    int64
	ArticlesCollected int64

	// Thumbnail counters
	ThumbnailHits     int64
	ThumbnailMisses   int64
	ThumbnailFailures int64

	// Timings
	LastRefreshTime    time.Duration
	AverageRefreshTime time.Duration
	TotalRefreshTime   time.Duration
	RefreshCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) IncrementFeedsFetched() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedsFetched++
}

func (m *Metrics) IncrementFeedsFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedsFailed++
}

// AddEntries records how many raw entries a source yielded and how many of
// them were dropped by the freshness policy.
func (m *Metrics) AddEntries(seen, skipped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EntriesSeen += int64(seen)
	m.EntriesSkipped += int64(skipped)
}

func (m *Metrics) AddArticles(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesCollected += int64(n)
}

func (m *Metrics) IncrementThumbnailHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ThumbnailHits++
}

func (m *Metrics) IncrementThumbnailMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ThumbnailMisses++
}

func (m *Metrics) IncrementThumbnailFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ThumbnailFailures++
}

func (m *Metrics) RecordRefreshTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastRefreshTime = duration
	m.TotalRefreshTime += duration
	m.RefreshCount++
	m.AverageRefreshTime = m.TotalRefreshTime / time.Duration(m.RefreshCount)
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"feeds_fetched":           m.FeedsFetched,
		"feeds_failed":            m.FeedsFailed,
		"entries_seen":            m.EntriesSeen,
		"entries_skipped":         m.EntriesSkipped,
		"articles_collected":      m.ArticlesCollected,
		"thumbnail_hits":          m.ThumbnailHits,
		"thumbnail_misses":        m.ThumbnailMisses,
		"thumbnail_failures":      m.ThumbnailFailures,
		"last_refresh_time_ms":    m.LastRefreshTime.Milliseconds(),
		"average_refresh_time_ms": m.AverageRefreshTime.Milliseconds(),
		"last_run_time":           m.LastRunTime.Format(time.RFC3339),
		"last_error_time":         m.LastErrorTime.Format(time.RFC3339),
		"last_error":              m.LastError,
		"is_healthy":              m.IsHealthy,
	}
}
