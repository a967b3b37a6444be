package xref

import (
	"runtime"
	"sync/atomic"
	"weak"
)

// Handle 的状态值。状态只能沿 Active → Cleared 或
// Active → Enqueued → Dequeued 单向迁移。
const (
	stateActive int32 = iota
	stateCleared
	stateEnqueued
	stateDequeued
)

// Handle 是带回收通知的弱引用句柄。
// 必须通过 [NewHandle] 创建，零值不可用。
// 所有方法都是并发安全的。
type Handle[T any] struct {
	ptr   weak.Pointer[T]
	queue *Queue[T] // 创建时绑定，之后只读；nil 表示不入队
	state atomic.Int32

	// next 是队列内的链表指针，写入由 Queue.mu 保护，
	// 原子读取供 ForEach 无锁遍历使用。
	// 出队后指向自身（与原链尾的自指标记通过 state 区分）。
	next atomic.Pointer[Handle[T]]

	cleanup    runtime.Cleanup
	hasCleanup bool
}

// NewHandle 创建一个弱引用 referent 的句柄。
// referent 不得为 nil，否则 panic。
//
// q 非 nil 时，句柄注册到运行时：referent 通过其他路径全部不可达后，
// 运行时异步将句柄投递到 q（状态变为 Enqueued）。
// q 为 nil 时句柄仅提供弱引用语义，永不入队。
//
// 句柄自身不持有 referent 的强引用，也绝不会成为 referent
// 存活的原因。
func NewHandle[T any](referent *T, q *Queue[T]) *Handle[T] {
	if referent == nil {
		panic("xref: nil referent")
	}
	h := &Handle[T]{
		ptr:   weak.Make(referent),
		queue: q,
	}
	if q != nil {
		// cleanup 参数是句柄自身；句柄只弱引用 referent，
		// 不违反 AddCleanup 对参数不可达性的要求。
		h.cleanup = runtime.AddCleanup(referent, func(hh *Handle[T]) {
			hh.queue.Enqueue(hh)
		}, h)
		h.hasCleanup = true
	}
	return h
}

// Value 返回引用目标。
// 目标已被回收、或句柄已被 Clear 清除时返回 nil。
func (h *Handle[T]) Value() *T {
	if h.state.Load() == stateCleared {
		return nil
	}
	return h.ptr.Value()
}

// Clear 强制丢弃引用目标且不入队。
// 与运行时清除竞争时恰有一方胜出：若运行时已将句柄入队，
// Clear 不产生任何效果。幂等。
func (h *Handle[T]) Clear() {
	if !h.state.CompareAndSwap(stateActive, stateCleared) {
		return
	}
	if h.hasCleanup {
		h.cleanup.Stop()
	}
}

// IsEnqueued 报告句柄当前是否在回收队列中等待取出。
// 出队（Poll/Remove）之后返回 false。
func (h *Handle[T]) IsEnqueued() bool {
	return h.state.Load() == stateEnqueued
}

// Ptr 返回引用目标的身份令牌。
// 返回值可比较：同一目标的令牌恒相等，不同目标的令牌永不相等，
// 即使目标已被回收。适合直接用作 map 键做身份索引。
func (h *Handle[T]) Ptr() weak.Pointer[T] {
	return h.ptr
}
