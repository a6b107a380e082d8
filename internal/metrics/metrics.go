package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

type Metrics struct {
	// Counters, safe to bump from any worker
	FeedsFetched       atomic.Int64
	FeedsFailed        atomic.Int64
	EntriesFetched     atomic.Int64
	ArticlesExtracted  atomic.Int64
	ExtractionFailed   atomic.Int64
	ArticlesAccepted   atomic.Int64
	ArticlesRejected   atomic.Int64
	ArticlesPersisted  atomic.Int64
	PersistFailed      atomic.Int64
	ArticlesRated      atomic.Int64
	ArticlesSummarized atomic.Int64
	ThumbnailsSaved    atomic.Int64

	mu sync.RWMutex

	// Timings
	LastProcessingTime time.Duration

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = New()

func New() *Metrics {
	return &Metrics{IsHealthy: true}
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastProcessingTime = duration
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
		"feeds_fetched":           m.FeedsFetched.Load(),
		"feeds_failed":            m.FeedsFailed.Load(),
		"entries_fetched":         m.EntriesFetched.Load(),
		"articles_extracted":      m.ArticlesExtracted.Load(),
		"extraction_failed":       m.ExtractionFailed.Load(),
		"articles_accepted":       m.ArticlesAccepted.Load(),
		"articles_rejected":       m.ArticlesRejected.Load(),
		"articles_persisted":      m.ArticlesPersisted.Load(),
		"persist_failed":          m.PersistFailed.Load(),
		"articles_rated":          m.ArticlesRated.Load(),
		"articles_summarized":     m.ArticlesSummarized.Load(),
		"thumbnails_saved":        m.ThumbnailsSaved.Load(),
		"last_processing_time_ms": m.LastProcessingTime.Milliseconds(),
		"last_run_time":           m.LastRunTime.Format(time.RFC3339),
		"last_error_time":         m.LastErrorTime.Format(time.RFC3339),
		"last_error":              m.LastError,
		"is_healthy":              m.IsHealthy,
	}
}
