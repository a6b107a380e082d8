package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountersAreConcurrencySafe(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.EntriesFetched.Add(2)
			m.ArticlesAccepted.Add(1)
			m.ThumbnailsSaved.Add(1)
		}()
	}
	wg.Wait()

	stats := m.GetStats()
	require.Equal(t, int64(100), stats["entries_fetched"])
	require.Equal(t, int64(50), stats["articles_accepted"])
	require.Equal(t, int64(50), stats["thumbnails_saved"])
}

func TestHealthTransitions(t *testing.T) {
	m := New()
	require.True(t, m.Healthy())

	m.SetError("subscription list unreadable")
	require.False(t, m.Healthy())
	require.Equal(t, "subscription list unreadable", m.GetStats()["last_error"])

	m.SetLastRun()
	require.True(t, m.Healthy())
}
