package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/weakkit/pkg/storage/xweakcache"
)

// expungeWait 阶段结束后等待回收完成的上限。
// 回收时机由运行时决定，超时不视为失败，仅在输出中注明。
const expungeWait = 10 * time.Second

// benchKey 是负载的 key：以 UUID 标记，阶段结束后整批丢弃。
type benchKey struct {
	label string
}

// benchValue 刻意不引用 benchKey，避免缓存值延长 key 的生命周期。
type benchValue struct {
	label string
	param uint64
}

// runWorkload 执行 cfg 描述的负载并把结果写入 out。
// report 为 true 时额外输出 OpenTelemetry 指标汇总。
func runWorkload(ctx context.Context, cfg workloadConfig, out io.Writer, report bool) error {
	opts := []xweakcache.Option{
		xweakcache.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))),
	}

	var reader *sdkmetric.ManualReader
	if report {
		reader = sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = provider.Shutdown(context.Background()) }()
		opts = append(opts, xweakcache.WithMeterProvider(provider))
	}
	if cfg.Pin > 0 {
		opts = append(opts, xweakcache.WithSoftPin(cfg.Pin))
	}

	cache, err := xweakcache.New(
		func(_ *benchKey, p uint64) (uint64, error) { return p, nil },
		func(k *benchKey, p uint64) (*benchValue, error) {
			label := "null"
			if k != nil {
				label = k.label
			}
			return &benchValue{label: label, param: p}, nil
		},
		opts...,
	)
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}

	start := time.Now()
	for phase := 0; phase < cfg.Phases; phase++ {
		if err := runPhase(ctx, cache, cfg, phase); err != nil {
			return err
		}
		// 阶段内的 key 强引用已全部随 runPhase 返回消失，
		// 循环触发 GC 等待回收队列排空
		drained := waitForExpunge(ctx, cache)
		fmt.Fprintf(out, "phase %d: size=%d drained=%v\n", phase, cache.Size(), drained)
	}

	st := cache.Stats()
	fmt.Fprintf(out, "elapsed=%s hits=%d computes=%d expunged_keys=%d swept_values=%d size=%d\n",
		time.Since(start).Round(time.Millisecond),
		st.Hits, st.Computes, st.ExpungedKeys, st.SweptValues, st.Size)

	if report {
		if err := printMetricReport(ctx, reader, out); err != nil {
			return err
		}
	}
	return nil
}

// runPhase 分配一批新 key 并让所有 worker 并发访问。
// 返回后本阶段的 key 不再有任何强引用。
func runPhase(ctx context.Context, cache *xweakcache.Cache[benchKey, uint64, uint64, benchValue], cfg workloadConfig, phase int) error {
	cohort := make([]*benchKey, cfg.Keys)
	for i := range cohort {
		cohort[i] = &benchKey{label: uuid.NewString()}
	}

	opsPerWorker := cfg.Ops / cfg.Workers
	if opsPerWorker == 0 {
		opsPerWorker = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Workers; w++ {
		seed := strconv.Itoa(phase) + ":" + strconv.Itoa(w) + ":"
		g.Go(func() error {
			for i := 0; i < opsPerWorker; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				// xxhash 确定性派生坐标：同一 (phase, worker, i)
				// 总是落到同一 (key, parameter)
				h := xxhash.Sum64String(seed + strconv.Itoa(i))
				key := cohort[h%uint64(len(cohort))]
				param := (h >> 32) % uint64(cfg.Params)
				if _, err := cache.Get(key, param); err != nil {
					return fmt.Errorf("phase %d get: %w", phase, err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// waitForExpunge 循环触发 GC，等待缓存经回收队列清空。
// 返回是否在时限内排空。
func waitForExpunge(ctx context.Context, cache *xweakcache.Cache[benchKey, uint64, uint64, benchValue]) bool {
	deadline := time.Now().Add(expungeWait)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		runtime.GC()
		if cache.Size() == 0 {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cache.Size() == 0
}

// printMetricReport 汇总输出所有 int64 累加计数器。
func printMetricReport(ctx context.Context, reader *sdkmetric.ManualReader, out io.Writer) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			fmt.Fprintf(out, "metric %s = %d\n", m.Name, total)
		}
	}
	return nil
}
