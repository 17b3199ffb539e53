package observability

import (
	"strings"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// testMeter is a meter provider exporting into a private Prometheus registry.
type testMeter struct {
	provider *sdkmetric.MeterProvider
	registry *promclient.Registry
}

func newTestMeter(t *testing.T) *testMeter {
	t.Helper()
	registry := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	require.NoError(t, err)

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(t.Context()) })
	return &testMeter{provider: provider, registry: registry}
}

// family returns the gathered metric family whose name starts with prefix.
func (m *testMeter) family(t *testing.T, prefix string) *dto.MetricFamily {
	t.Helper()
	families, err := m.registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), prefix) {
			return f
		}
	}
	return nil
}

// counterValue sums a counter family's samples carrying label=value.
func (m *testMeter) counterValue(t *testing.T, prefix, label, value string) float64 {
	t.Helper()
	f := m.family(t, prefix)
	if f == nil {
		return 0
	}
	var total float64
	for _, metric := range f.GetMetric() {
		if hasLabel(metric, label, value) {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

// histogramCount sums sample counts of a histogram family.
func (m *testMeter) histogramCount(t *testing.T, prefix string) uint64 {
	t.Helper()
	f := m.family(t, prefix)
	if f == nil {
		return 0
	}
	var total uint64
	for _, metric := range f.GetMetric() {
		total += metric.GetHistogram().GetSampleCount()
	}
	return total
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	for _, l := range metric.GetLabel() {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}
