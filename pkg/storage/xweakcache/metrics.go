package xweakcache

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/omeyang/weakkit/pkg/storage/xweakcache"

const (
	metricHitTotal     = "weakkit.cache.hit.total"
	metricComputeTotal = "weakkit.cache.compute.total"
	metricExpungedKeys = "weakkit.cache.expunged.keys"
	metricSweptValues  = "weakkit.cache.swept.values"
)

// stats 聚合进程内计数，无锁读写。
type stats struct {
	hits         atomic.Int64
	computes     atomic.Int64
	expungedKeys atomic.Int64
	sweptValues  atomic.Int64
}

// Stats 是缓存运行统计的瞬时快照。
type Stats struct {
	// Hits 命中已缓存值的次数。
	Hits int64
	// Computes 调用值工厂函数的次数（即未命中次数，含失败的计算）。
	Computes int64
	// ExpungedKeys 因 key 死亡而被清除的外层条目数。
	ExpungedKeys int64
	// SweptValues 清扫掉的死亡值反向索引条目数。
	SweptValues int64
	// Size 当前反向索引基数。语义与 Cache.Size 相同，
	// 但此处读取不触发 expunge，可能高于实际存活条目数。
	Size int
}

// Stats 返回当前统计快照。不触发 expunge。
func (c *Cache[K, P, S, V]) Stats() Stats {
	return Stats{
		Hits:         c.stats.hits.Load(),
		Computes:     c.stats.computes.Load(),
		ExpungedKeys: c.stats.expungedKeys.Load(),
		SweptValues:  c.stats.sweptValues.Load(),
		Size:         int(max(c.size.Load(), 0)),
	}
}

// instruments 持有 OTel 计数器。nil 接收者表示未启用指标，
// 各记录方法对 nil 安全。
type instruments struct {
	hits         metric.Int64Counter
	computes     metric.Int64Counter
	expungedKeys metric.Int64Counter
	sweptValues  metric.Int64Counter
}

func newInstruments(provider metric.MeterProvider) (*instruments, error) {
	meter := provider.Meter(instrumentationName)

	hits, err := meter.Int64Counter(
		metricHitTotal,
		metric.WithDescription("cache hits"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("xweakcache: create counter: %w", err)
	}

	computes, err := meter.Int64Counter(
		metricComputeTotal,
		metric.WithDescription("value factory invocations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("xweakcache: create counter: %w", err)
	}

	expungedKeys, err := meter.Int64Counter(
		metricExpungedKeys,
		metric.WithDescription("dead keys expunged from the cache"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, fmt.Errorf("xweakcache: create counter: %w", err)
	}

	sweptValues, err := meter.Int64Counter(
		metricSweptValues,
		metric.WithDescription("dead value entries swept from the reverse index"),
		metric.WithUnit("{value}"),
	)
	if err != nil {
		return nil, fmt.Errorf("xweakcache: create counter: %w", err)
	}

	return &instruments{
		hits:         hits,
		computes:     computes,
		expungedKeys: expungedKeys,
		sweptValues:  sweptValues,
	}, nil
}

func (m *instruments) hit() {
	if m != nil {
		m.hits.Add(context.Background(), 1)
	}
}

func (m *instruments) compute() {
	if m != nil {
		m.computes.Add(context.Background(), 1)
	}
}

func (m *instruments) expunged(n int64) {
	if m != nil {
		m.expungedKeys.Add(context.Background(), n)
	}
}

func (m *instruments) swept(n int64) {
	if m != nil {
		m.sweptValues.Add(context.Background(), n)
	}
}
