// Package weakref 提供弱引用相关的子包。
//
// 子包列表：
//   - xref: 带回收通知的弱引用句柄和回收队列
//
// 设计原则：
//   - 封装标准库 weak.Pointer + runtime.AddCleanup，不重造 GC 机制
//   - 清除事件至多投递一次，状态单向迁移
//   - 诊断遍历容忍并发排空，绝不阻塞消费方
package weakref
