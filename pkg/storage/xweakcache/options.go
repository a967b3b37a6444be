package xweakcache

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
)

// Option 定义 Cache 可选配置函数类型。
type Option func(*options)

type options struct {
	logger        *slog.Logger
	meterProvider metric.MeterProvider
	pinSize       int
	pinSet        bool
}

func defaultOptions() options {
	return options{}
}

// WithLogger 设置诊断日志记录器。
// 仅在清理路径（expunge/sweep）以 Debug 级别输出。
// 未设置时日志被丢弃。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMeterProvider 设置 OpenTelemetry MeterProvider，
// 启用缓存指标（命中、计算、清除 key 数、清扫 value 数）。
// 未设置时不产生任何指标开销。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *options) {
		if provider != nil {
			o.meterProvider = provider
		}
	}
}

// WithSoftPin 启用软驻留：最近返回的至多 capacity 个值由一个有界 LRU
// 强引用驻留，使热点值不会在两次访问之间被 GC 回收。被 LRU 淘汰后
// 值恢复纯弱引用语义。
//
// capacity 必须大于 0，否则 New 返回 [ErrInvalidPinSize]。
func WithSoftPin(capacity int) Option {
	return func(o *options) {
		o.pinSize = capacity
		o.pinSet = true
	}
}
