package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordNormalized("goodreads", 10, 2, 1)
	m.RecordNormalized("goodreads", 5, 0, 0)
	m.RecordMatches("exact", 3)
	m.RecordMatches("unmatched", 1)
	m.RecordExecution(4, 2, 1, 3)
	m.RecordSessionSkipped("Duplicate session")
	m.RecordSessionSkipped("Duplicate session")
	m.SetCachedBatches(2)
	m.ObserveMatchDuration(15 * time.Millisecond)

	assert.Equal(t, 15.0, testutil.ToFloat64(m.rowsNormalized.WithLabelValues("goodreads")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rowErrors.WithLabelValues("goodreads")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rowsSkipped.WithLabelValues("goodreads")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.matches.WithLabelValues("exact")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.sessionsCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ratingsUpdated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ratingFailures))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.progressBackfilled))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsSkipped.WithLabelValues("Duplicate session")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cachedBatches))
	assert.Equal(t, 1, testutil.CollectAndCount(m.matchDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordNormalized("storygraph", 1, 1, 1)
		m.RecordMatches("high", 1)
		m.ObserveMatchDuration(time.Second)
		m.RecordExecution(1, 1, 1, 1)
		m.RecordSessionSkipped("Did not finish")
		m.SetCachedBatches(1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetCachedBatches(3)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "shelfsync_import_cached_batches 3"))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	}, "each registry gets its own collectors")
}
