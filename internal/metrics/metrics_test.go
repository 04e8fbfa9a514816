package metrics

import (
	"testing"

	ptestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistered(t *testing.T) {
	t.Parallel()

	// promauto registers on package init; a nil here means a bad refactor.
	assert.NotNil(t, HTTPRequestDuration)
	assert.NotNil(t, HTTPRequestsTotal)
	assert.NotNil(t, HealthzUp)
	assert.NotNil(t, ReadyzUp)
	assert.NotNil(t, HTTPRequestsInFlight)
	assert.NotNil(t, HTTPPanicsTotal)
	assert.NotNil(t, RunsTotal)
	assert.NotNil(t, RunDuration)
	assert.NotNil(t, CollectorRunsTotal)
	assert.NotNil(t, CollectorDuration)
	assert.NotNil(t, EscalationsTotal)
	assert.NotNil(t, BrowserSessionsActive)
	assert.NotNil(t, DirectFetchesTotal)
	assert.NotNil(t, ProductsScrapedTotal)
	assert.NotNil(t, ProductsInvalidTotal)
	assert.NotNil(t, ProductsQualifyingTotal)
	assert.NotNil(t, ProductsDuplicateTotal)
	assert.NotNil(t, NotificationAttemptsTotal)
	assert.NotNil(t, NotificationFailuresTotal)
	assert.NotNil(t, NotificationDuration)
	assert.NotNil(t, NotifiedProductsTotal)
}

func TestCollectorRunsTotal_Labels(t *testing.T) {
	t.Parallel()

	c := CollectorRunsTotal.WithLabelValues("metrics-test-retailer", "success")
	before := ptestutil.ToFloat64(c)
	c.Inc()
	assert.InDelta(t, before+1, ptestutil.ToFloat64(c), 0)
}
