package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("dental", reg)

	m.ProceduresCreated.Inc()
	m.StockMovements.WithLabelValues("out").Add(3)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProceduresCreated))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.StockMovements.WithLabelValues("out")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "dental_procedures_created_total")
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics("dental", prometheus.NewRegistry())
		NewMetrics("dental", prometheus.NewRegistry())
	})
}
