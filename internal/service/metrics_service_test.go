package service

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrapeMetrics(t *testing.T, svc *MetricsService) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestMetricsServiceCacheHitRatio(t *testing.T) {
	svc := NewMetricsService()

	svc.RecordCacheOperation(true, time.Millisecond)
	svc.RecordCacheOperation(true, time.Millisecond)
	svc.RecordCacheOperation(true, time.Millisecond)
	svc.RecordCacheOperation(false, time.Millisecond)

	body := scrapeMetrics(t, svc)
	assert.Contains(t, body, "cache_hits_total 3")
	assert.Contains(t, body, "cache_misses_total 1")
	assert.Contains(t, body, "cache_hit_ratio 0.75")
}

// Cache lookups report from every request goroutine, so recording must be
// safe under the race detector.
func TestMetricsServiceConcurrentCacheRecording(t *testing.T) {
	svc := NewMetricsService()

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		hit := i%2 == 0
		go func(hit bool) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				svc.RecordCacheOperation(hit, time.Microsecond)
			}
		}(hit)
	}
	wg.Wait()

	body := scrapeMetrics(t, svc)
	assert.Contains(t, body, "cache_hits_total 800")
	assert.Contains(t, body, "cache_misses_total 800")
	assert.Contains(t, body, "cache_hit_ratio 0.5")
}

func TestMetricsServiceObserveHTTPRequest(t *testing.T) {
	svc := NewMetricsService()

	svc.ObserveHTTPRequest(http.MethodGet, "/api/v1/subjects/:id", http.StatusOK, 5*time.Millisecond)
	svc.ObserveHTTPRequest(http.MethodGet, "/api/v1/subjects/:id", http.StatusOK, 7*time.Millisecond)

	body := scrapeMetrics(t, svc)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/api/v1/subjects/:id",status="200"} 2`)
}
