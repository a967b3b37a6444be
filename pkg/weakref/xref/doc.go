// Package xref 提供带回收通知的弱引用句柄和回收队列。
//
// xref 基于标准库 weak.Pointer 和 runtime.AddCleanup 封装，
// 提供"弱引用 + 清除事件入队"的组合能力，是 xweakcache 等
// 内存敏感组件的底层基础设施。
//
// # 核心组件
//
//   - Handle：弱引用句柄。不会阻止引用目标被 GC 回收；目标不可达后，
//     运行时异步清除句柄，并（若创建时绑定了队列）将其投递到 Queue。
//   - Queue：线程安全的回收队列。Handle 被运行时清除后入队，
//     消费方通过 Poll（非阻塞）或 Remove（阻塞）取出，
//     据此清理与死亡对象关联的索引条目。
//
// # 状态机
//
// Handle 的生命周期是单向的：
//
//	Active ──(Clear)──→ Cleared            手动清除，永不入队
//	Active ──(运行时清除)──→ Enqueued ──(Poll/Remove)──→ Dequeued
//
// 入队至多发生一次（原子状态 CAS 保证），Clear 与运行时清除竞争时
// 恰有一方胜出。
//
// # 身份语义
//
// Handle.Ptr 返回底层 weak.Pointer，它是可比较的身份令牌：
// 对同一对象多次创建的 weak.Pointer 相等；不同对象的 weak.Pointer
// 永不相等，即使前者已被回收、后者复用了相同地址。调用方可以直接
// 将其用作 map 键来按身份索引对象，而不会延长对象生命周期。
//
// # 快速开始
//
// 使用 NewQueue 创建队列，NewHandle 创建绑定队列的句柄。
// 详细使用示例参考 example_test.go。
//
// # 已知限制
//
//   - 清除时机由 Go 运行时决定：对象不可达后，句柄入队发生在其后
//     某次 GC 完成之时，无实时性保证。测试中需要循环触发 runtime.GC
//     并轮询等待。
//   - ForEach 是诊断接口：遍历不加锁，与并发 Poll 交错时可能重复
//     访问节点或从队头重启，不保证一致性快照。
//   - Queue 不提供 Close：队列不持有 goroutine 等需释放的资源，
//     阻塞中的 Remove 通过 context 取消退出。
package xref
