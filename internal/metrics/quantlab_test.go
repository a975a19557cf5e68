package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollectorsRegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)

	c.IngestionRuns.WithLabelValues("us_equities_eod", "success").Inc()
	c.AccessCacheHits.WithLabelValues("us_equities_eod").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestDefaultCollectorsAreUsable(t *testing.T) {
	assert.NotNil(t, Default.IngestionRuns)
	assert.NotNil(t, Default.EngineLatency)
}
