package xweakcache

import (
	"fmt"
	"sync"
	"weak"
)

// supplier 是内层 map 槽位中的值提供者：
// 在途计算的 factory，或已落位的弱值持有者 cacheValue。
// get 返回 (nil, nil) 表示"结果已失效或槽位已易主"，
// 调用方的重试循环应重新读取当前 supplier。
type supplier[V any] interface {
	get() (*V, error)
}

// factory 是一次未命中计算的瞬态占位。
// 只存在于它所占据的内层 map 槽位中：成功时被 cacheValue 原子替换，
// 失败时自行移除，绝不在一次解析之外存活。
type factory[K any, P any, S comparable, V any] struct {
	// mu 串行化对同一 factory 的并发调用：
	// 同一时刻每个 factory 实例至多一次计算在进行，
	// 等待者阻塞并得到同一结局。
	mu sync.Mutex

	cache     *Cache[K, P, S, V]
	key       *K
	parameter P
	subKey    S
	values    *sync.Map
}

func (f *factory[K, P, S, V]) get() (*V, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// 等锁期间槽位可能已经易主：被 cacheValue 替换，或因失败被移除。
	// 返回 (nil, nil) 让调用方重新读取当前 supplier，而不是信任过期结果。
	if cur, _ := f.values.Load(f.subKey); cur != any(f) {
		return nil, nil
	}

	f.cache.stats.computes.Add(1)
	f.cache.metrics.compute()

	value, err := f.cache.valueFn(f.key, f.parameter)
	if err != nil || value == nil {
		// 失败时移除自己的占位：槽位回退为空，
		// 等待者看到空槽位后各自独立重试，失败只上抛给本线程。
		f.values.CompareAndDelete(f.subKey, any(f))
		if err != nil {
			return nil, fmt.Errorf("xweakcache: value factory: %w", err)
		}
		return nil, ErrNilValue
	}

	cv := &cacheValue[V]{ptr: weak.Make(value)}

	// 先登记反向索引，再替换槽位，与查询端的观察顺序一致。
	if _, loaded := f.cache.reverse.LoadOrStore(cv.ptr, struct{}{}); !loaded {
		f.cache.size.Add(1)
	}

	// 持锁且已确认槽位仍是本 factory，替换必定成功；
	// 失败意味着并发不变量已被破坏。
	if !f.values.CompareAndSwap(f.subKey, any(f), any(cv)) {
		return nil, ErrProtocolViolation
	}
	return value, nil
}

// cacheValue 弱引用已缓存的值。
// 值被 GC 回收后 get 返回 (nil, nil)，槽位被下一次访问原地替换并重新计算。
type cacheValue[V any] struct {
	ptr weak.Pointer[V]
}

func (cv *cacheValue[V]) get() (*V, error) {
	return cv.ptr.Value(), nil
}

// 编译期接口检查。
var (
	_ supplier[int] = (*factory[int, int, int, int])(nil)
	_ supplier[int] = (*cacheValue[int])(nil)
)
