package xweakcache

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// collectMetricNames 收集当前已记录的指标名集合。
func collectMetricNames(t *testing.T, reader *sdkmetric.ManualReader) map[string]bool {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := make(map[string]bool)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	return names
}

func TestMetricsRecorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	c, err := New(identitySubKey, newValue, WithMeterProvider(provider))
	require.NoError(t, err)
	key := &testKey{name: "m"}

	v, err := c.Get(key, 1) // 计算
	require.NoError(t, err)
	_, err = c.Get(key, 1) // 命中
	require.NoError(t, err)

	names := collectMetricNames(t, reader)
	assert.True(t, names[metricComputeTotal], "compute counter must be recorded")
	assert.True(t, names[metricHitTotal], "hit counter must be recorded")
	runtime.KeepAlive(key)
	runtime.KeepAlive(v)
}

func TestMetricsExpunge(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	c, err := New(identitySubKey, newValue, WithMeterProvider(provider))
	require.NoError(t, err)

	func() {
		key := &testKey{name: "dying"}
		_, err := c.Get(key, 1)
		require.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		return c.Size() == 0
	}, reclaimWait, reclaimTick)

	names := collectMetricNames(t, reader)
	assert.True(t, names[metricExpungedKeys], "expunge counter must be recorded")
}

func TestInstrumentsNilSafe(t *testing.T) {
	// 未启用指标时 instruments 为 nil，记录方法必须安全
	var m *instruments
	m.hit()
	m.compute()
	m.expunged(1)
	m.swept(1)
}
