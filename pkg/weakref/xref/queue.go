package xref

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Queue 是线程安全的回收队列（FIFO）。
// 必须通过 [NewQueue] 创建，零值不可用。
// 生产方是 Go 运行时（经 Handle 的清除回调调用 Enqueue），
// 消费方通过 Poll 或 Remove 取出已清除的句柄。
type Queue[T any] struct {
	mu     sync.Mutex
	head   atomic.Pointer[Handle[T]] // 原子读取供 Poll 快速路径和 ForEach 使用
	tail   *Handle[T]                // 仅在 mu 内访问
	length atomic.Int64

	// wake 在每次入队时 close 并换新，唤醒所有阻塞的 Remove。
	// 读写均在 mu 内。
	wake chan struct{}
}

// NewQueue 创建一个空的回收队列。
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{wake: make(chan struct{})}
}

// Enqueue 将句柄加入队列，是队列唯一的入队入口。
// 正常情况下由运行时的清除回调调用；测试或自定义宿主也可直接调用。
//
// 幂等：句柄未绑定队列、绑定的是其他队列、已被 Clear 清除、
// 或已经入过队时返回 false，不产生任何效果。
func (q *Queue[T]) Enqueue(h *Handle[T]) bool {
	if h == nil || h.queue != q {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	// Active → Enqueued 的 CAS 保证至多入队一次，
	// 并与 Clear 的 Active → Cleared 互斥。
	if !h.state.CompareAndSwap(stateActive, stateEnqueued) {
		return false
	}
	h.next.Store(h) // 自指标记链尾
	if q.tail != nil {
		q.tail.next.Store(h)
	} else {
		q.head.Store(h)
	}
	q.tail = h
	q.length.Add(1)

	close(q.wake)
	q.wake = make(chan struct{})
	return true
}

// pollLocked 弹出队头。必须持有 mu。
func (q *Queue[T]) pollLocked() *Handle[T] {
	h := q.head.Load()
	if h == nil {
		return nil
	}
	// 先迁移状态再摘链：ForEach 据此把出队节点与链尾区分开。
	h.state.Store(stateDequeued)
	next := h.next.Load()
	if next == h {
		q.head.Store(nil)
		q.tail = nil
	} else {
		q.head.Store(next)
	}
	h.next.Store(h)
	q.length.Add(-1)
	return h
}

// Poll 非阻塞地弹出队头句柄，队列为空时返回 nil。
func (q *Queue[T]) Poll() *Handle[T] {
	if q.head.Load() == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pollLocked()
}

// Remove 阻塞地弹出队头句柄。
//
//   - timeout > 0：最多等待 timeout，超时返回 (nil, nil)。
//     每次被唤醒后重新计算剩余等待时间，容忍虚假唤醒。
//   - timeout == 0：无限期等待，直到有句柄可取或 ctx 结束。
//   - timeout < 0：返回 [ErrNegativeTimeout]。
//
// ctx 结束时返回 ctx.Err()。ctx 不得为 nil，否则 panic。
func (q *Queue[T]) Remove(ctx context.Context, timeout time.Duration) (*Handle[T], error) {
	if ctx == nil {
		panic("xref: nil Context")
	}
	if timeout < 0 {
		return nil, ErrNegativeTimeout
	}

	var (
		deadline time.Time
		timer    *time.Timer
		timerC   <-chan time.Time
	)
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	for {
		q.mu.Lock()
		if h := q.pollLocked(); h != nil {
			q.mu.Unlock()
			return h, nil
		}
		wake := q.wake
		q.mu.Unlock()

		if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, nil
			}
			// 复用 timer，重置前排空可能残留的触发信号。
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(remaining)
		}

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timerC:
			return nil, nil
		}
	}
}

// Len 返回当前排队的句柄数（瞬时快照）。
func (q *Queue[T]) Len() int {
	return int(max(q.length.Load(), 0))
}

// ForEach 对队列中的每个句柄执行 fn，不出队。仅用于诊断。
//
// 遍历不加锁，容忍并发出队：若当前节点已被并发的 Poll/Remove
// 取走（出队节点自指且状态为 Dequeued），从当前队头重新开始，
// 而不是中断或崩溃。并发场景下同一句柄可能被访问多次。
func (q *Queue[T]) ForEach(fn func(h *Handle[T])) {
	for h := q.head.Load(); h != nil; {
		fn(h)
		next := h.next.Load()
		if next != h {
			h = next
			continue
		}
		if h.state.Load() == stateEnqueued {
			// 仍在队列中的自指节点是链尾，遍历结束。
			h = nil
		} else {
			// 已被并发出队，从当前队头重启。
			h = q.head.Load()
		}
	}
}
