// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xweakcache: 并发安全、内存敏感的二级弱键缓存
//
// 设计原则：
//   - 缓存绝不成为 key 存活的原因（弱引用 + GC 驱动回收）
//   - 无全局锁，公开操作除瞬时竞争外不阻塞
//   - 回收工作由调用方内联完成，没有后台任务
package storage
