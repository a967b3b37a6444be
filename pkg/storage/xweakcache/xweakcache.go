package xweakcache

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"weak"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/omeyang/weakkit/pkg/weakref/xref"
)

// SubKeyFunc 从 (key, parameter) 派生子键。
// key 可能为 nil（null key）；返回的子键按值相等比较，不得为 nil。
type SubKeyFunc[K any, P any, S comparable] func(key *K, parameter P) (S, error)

// ValueFunc 从 (key, parameter) 派生值。
// key 可能为 nil（null key）；返回的值按身份比较，不得为 nil。
type ValueFunc[K any, P any, V any] func(key *K, parameter P) (*V, error)

// Cache 是二级弱键缓存：(key, parameter) → 子键 → 值。
//
// key 按身份弱引用：缓存绝不成为 key 存活的原因；key 通过程序其他
// 路径全部不可达后，运行时将其句柄投递到回收队列，下一次任意缓存
// 操作顺带清除该 key 的整个内层 map 及其反向索引条目。
// 值同样弱引用：值单独死亡不移除槽位，下一次访问观察到缺席后
// 原地替换并重新计算。
//
// 必须通过 [New] 创建，零值不可用。所有方法都是并发安全的，
// 且除 factory 计算期间的瞬时竞争外不阻塞。
type Cache[K any, P any, S comparable, V any] struct {
	subKeyFn SubKeyFunc[K, P, S]
	valueFn  ValueFunc[K, P, V]

	queue   *xref.Queue[K]
	entries sync.Map // cacheKey[K] → *sync.Map（S → supplier[V]）
	reverse sync.Map // weak.Pointer[V] → struct{}
	size    atomic.Int64

	stats   stats
	logger  *slog.Logger
	metrics *instruments
	pin     *lru.Cache[weak.Pointer[V], *V]
}

// New 创建二级弱键缓存。
// subKeyFn 或 valueFn 为 nil 时分别返回 [ErrNilSubKeyFunc]、[ErrNilValueFunc]。
func New[K any, P any, S comparable, V any](
	subKeyFn SubKeyFunc[K, P, S],
	valueFn ValueFunc[K, P, V],
	opts ...Option,
) (*Cache[K, P, S, V], error) {
	if subKeyFn == nil {
		return nil, ErrNilSubKeyFunc
	}
	if valueFn == nil {
		return nil, ErrNilValueFunc
	}

	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	c := &Cache[K, P, S, V]{
		subKeyFn: subKeyFn,
		valueFn:  valueFn,
		queue:    xref.NewQueue[K](),
		logger:   o.logger,
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if o.meterProvider != nil {
		inst, err := newInstruments(o.meterProvider)
		if err != nil {
			return nil, err
		}
		c.metrics = inst
	}
	if o.pinSet {
		if o.pinSize <= 0 {
			return nil, ErrInvalidPinSize
		}
		pin, err := lru.New[weak.Pointer[V], *V](o.pinSize)
		if err != nil {
			return nil, fmt.Errorf("xweakcache: create pin cache: %w", err)
		}
		c.pin = pin
	}
	return c, nil
}

// Get 通过缓存查找值。
//
// 子键工厂总是被求值；仅当 (key, subKey) 没有存活条目时才调用值工厂。
// key 可以为 nil（共享 null 哨兵，强语义）；parameter 不得为 nil。
// 返回的值永不为 nil。
//
// 同一 (key, subKey) 的并发未命中被合并为一次计算：竞争者要么阻塞在
// 胜者 factory 的锁上拿到同一结果，要么在重试循环中改用当前 supplier。
func (c *Cache[K, P, S, V]) Get(key *K, parameter P) (*V, error) {
	if isNil(parameter) {
		return nil, ErrNilParameter
	}
	c.expunge()

	values := c.valuesFor(key)

	subKey, err := c.subKeyFn(key, parameter)
	if err != nil {
		return nil, fmt.Errorf("xweakcache: sub-key factory: %w", err)
	}
	if isNil(subKey) {
		return nil, ErrNilSubKey
	}

	var sup supplier[V]
	if cur, ok := values.Load(subKey); ok {
		sup = cur.(supplier[V])
	}
	var fac *factory[K, P, S, V]

	// 重试循环：仅在返回落位的值时终止。非阻塞重试的轮次
	// 受并发竞争者数量约束——factory.get 串行化且按安装确定结局，
	// 正常运行下不会无限自旋。
	for {
		if sup != nil {
			value, err := sup.get()
			if err != nil {
				return nil, err
			}
			if value != nil {
				if _, ok := sup.(*cacheValue[V]); ok {
					c.stats.hits.Add(1)
					c.metrics.hit()
				}
				c.pinValue(value)
				return value, nil
			}
		}
		// 槽位为空，或 supplier 给出的结果已失效：惰性构造占位 factory，
		// 跨轮次复用同一个实例。
		if fac == nil {
			fac = &factory[K, P, S, V]{
				cache:     c,
				key:       key,
				parameter: parameter,
				subKey:    subKey,
				values:    values,
			}
		}
		if sup == nil {
			actual, loaded := values.LoadOrStore(subKey, fac)
			if loaded {
				// 竞争失败，改用胜者的 supplier 重试
				sup = actual.(supplier[V])
			} else {
				sup = fac
			}
		} else if values.CompareAndSwap(subKey, sup, fac) {
			// 失效的 cacheValue / 未成功落位的 factory 被原地替换
			sup = fac
		} else if cur, ok := values.Load(subKey); ok {
			sup = cur.(supplier[V])
		} else {
			sup = nil
		}
	}
}

// ContainsValue 检查指定的非 nil 值是否已在缓存中。
// 按身份比较：无论值类型如何定义值相等，只有完全相同的实例才匹配。
func (c *Cache[K, P, S, V]) ContainsValue(value *V) (bool, error) {
	if value == nil {
		return false, ErrNilValue
	}
	c.expunge()
	// weak.Make 返回的身份令牌即按身份探测的查找键，
	// 无需构造完整的 cacheValue。
	_, ok := c.reverse.Load(weak.Make(value))
	return ok, nil
}

// Size 返回当前缓存条目数（反向索引基数）。
// 返回前先执行一次 expunge，因此是"排空已投递的清除事件之后"的精确值；
// 对已死亡但清除事件尚未投递的 key，返回值可能暂时偏高。
func (c *Cache[K, P, S, V]) Size() int {
	c.expunge()
	return int(max(c.size.Load(), 0))
}

// valuesFor 解析或惰性创建 key 对应的内层 map。
// LoadOrStore 的胜者负责向共享回收队列注册该 key 的弱句柄，
// 保证每个外层条目恰好注册一次。
func (c *Cache[K, P, S, V]) valuesFor(key *K) *sync.Map {
	ck := cacheKeyOf(key)
	if cur, ok := c.entries.Load(ck); ok {
		return cur.(*sync.Map)
	}
	m := &sync.Map{}
	actual, loaded := c.entries.LoadOrStore(ck, m)
	if loaded {
		return actual.(*sync.Map)
	}
	if key != nil {
		// 句柄由运行时保活直至清除回调执行；缓存侧不持有 key 的强引用。
		xref.NewHandle(key, c.queue)
	}
	return m
}

// expunge 排空回收队列：每个已清除句柄对应的外层条目被整体移除，
// 其全部 cacheValue 随之退出反向索引。始终由 Get/ContainsValue/Size
// 的调用 goroutine 内联执行，回收延迟与缓存流量同阶。
func (c *Cache[K, P, S, V]) expunge() {
	var drained, removed int64
	for {
		h := c.queue.Poll()
		if h == nil {
			break
		}
		drained++
		ck := cacheKey[K]{ptr: h.Ptr()}
		// 按令牌移除总是安全的：句柄清除后其令牌只等于自身，
		// 不可能命中同名新 key 的条目。
		cur, ok := c.entries.LoadAndDelete(ck)
		if !ok {
			continue
		}
		removed++
		cur.(*sync.Map).Range(func(_, sv any) bool {
			if cv, ok := sv.(*cacheValue[V]); ok {
				if _, loaded := c.reverse.LoadAndDelete(cv.ptr); loaded {
					c.size.Add(-1)
				}
			}
			return true
		})
	}
	if drained == 0 {
		return
	}

	swept := c.sweepOrphans()
	c.stats.expungedKeys.Add(removed)
	c.metrics.expunged(removed)
	c.logger.Debug("expunged dead cache keys",
		slog.Int64("expunged_keys", removed),
		slog.Int64("swept_values", swept),
	)
}

// sweepOrphans 移除引用目标已死亡的反向索引条目。
// 覆盖两类残留：key 在计算途中死亡留下的孤儿 cacheValue，
// 以及值先于 key 被回收、槽位尚未被原地替换时的旧条目。
// 死亡对象不可能再产生相同的身份令牌，删除无竞争风险。
func (c *Cache[K, P, S, V]) sweepOrphans() int64 {
	var swept int64
	c.reverse.Range(func(k, _ any) bool {
		wp := k.(weak.Pointer[V])
		if wp.Value() != nil {
			return true
		}
		if _, loaded := c.reverse.LoadAndDelete(wp); loaded {
			c.size.Add(-1)
			swept++
		}
		return true
	})
	if swept > 0 {
		c.stats.sweptValues.Add(swept)
		c.metrics.swept(swept)
	}
	return swept
}

// pinValue 将值放入软驻留 LRU（若启用）。
func (c *Cache[K, P, S, V]) pinValue(value *V) {
	if c.pin != nil {
		c.pin.Add(weak.Make(value), value)
	}
}
