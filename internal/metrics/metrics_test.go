package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_ConcurrentCounters(t *testing.T) {
	m := &Metrics{IsHealthy: true}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementFeedsFetched()
			m.AddEntries(3, 1)
			m.IncrementThumbnailHits()
		}()
	}
	wg.Wait()

	stats := m.GetStats()
	assert.Equal(t, int64(50), stats["feeds_fetched"])
	assert.Equal(t, int64(150), stats["entries_seen"])
	assert.Equal(t, int64(50), stats["entries_skipped"])
	assert.Equal(t, int64(50), stats["thumbnail_hits"])
}

func TestMetrics_HealthTransitions(t *testing.T) {
	m := &Metrics{IsHealthy: true}

	m.SetError("all feeds failed")
	assert.False(t, m.Healthy())
	assert.Equal(t, "all feeds failed", m.GetStats()["last_error"])

	m.SetLastRun()
	assert.True(t, m.Healthy())
}

func TestMetrics_RefreshAverage(t *testing.T) {
	m := &Metrics{}
	m.RecordRefreshTime(100 * time.Millisecond)
	m.RecordRefreshTime(300 * time.Millisecond)

	stats := m.GetStats()
	assert.Equal(t, int64(300), stats["last_refresh_time_ms"])
	assert.Equal(t, int64(200), stats["average_refresh_time_ms"])
}
