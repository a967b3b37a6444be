package xweakcache

import (
	"reflect"
	"weak"
)

// cacheKey 是外层 map 的键：存活 key 的身份令牌，或 null 哨兵。
//
// weak.Pointer 提供了所需的全部等价语义：对同一对象创建的令牌恒相等；
// 不同对象的令牌永不相等，即使前者已被回收、后者复用了相同地址。
// 因此 key 死亡后，任何为同名新 key 新建的 cacheKey 都不会误匹配
// 正在清除途中的旧条目，而 expunge 仍能用旧令牌精确移除旧条目。
type cacheKey[K any] struct {
	ptr  weak.Pointer[K]
	null bool
}

// cacheKeyOf 解析 key 对应的 cacheKey。
// nil key 无法弱引用，使用共享的 null 哨兵（强语义，永不清除）。
func cacheKeyOf[K any](key *K) cacheKey[K] {
	if key == nil {
		return cacheKey[K]{null: true}
	}
	return cacheKey[K]{ptr: weak.Make(key)}
}

// isNil 报告 v 是否为"缺席"：接口本身为 nil，或可为 nil 的种类持有 nil。
// 值类型（int、string、struct 等）永远视为在席。
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
