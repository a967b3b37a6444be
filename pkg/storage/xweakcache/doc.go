// Package xweakcache 提供并发安全、内存敏感的二级弱键缓存。
//
// 缓存映射 (key, parameter) → 值：子键由 subKeyFactory 从键和参数派生，
// 值由 valueFactory 派生并被记忆化。key 与值均为弱引用，子键为强引用。
// key 对程序其余部分不可达后，其全部条目被自动丢弃——缓存自身绝不会
// 成为 key 存活的原因。
//
// # 设计理念
//
// 两个硬约束塑造了整个实现：
//
//   - 单飞计算：任意并发访问下，同一 (key, subKey) 坐标同一时刻至多
//     一次计算在途。通过无锁的"安装-重试"协议实现：未命中者尝试把
//     占位 factory 原子安装进槽位，竞争失败者改用胜者；factory 内部
//     用实例级互斥锁串行化，等待者与胜者得到同一结局。
//   - GC 驱动回收：key 的清除事件由运行时异步投递到回收队列
//     （pkg/weakref/xref），每次 Get/ContainsValue/Size 顺带排空队列，
//     将死亡 key 的整个内层 map 连同反向索引条目一并移除。
//     回收工作始终由调用方 goroutine 内联完成，没有后台任务。
//
// # 核心组件
//
//   - Cache：编排者。外层并发 map（key 身份 → 内层 map）、
//     内层并发 map（子键 → supplier）、反向索引（值身份 → 在席标记）。
//   - factory：在途计算的瞬态占位，成功后被弱值持有者原地替换。
//   - xref.Queue：清除事件的投递通道（见 pkg/weakref/xref）。
//
// # 身份语义
//
// key 与值都按身份比较：结构相等但实例不同的两个值，ContainsValue
// 只认精确实例。身份令牌由 weak.Pointer 提供，不延长对象生命周期。
//
// # 一致性说明
//
//   - 值单独死亡（key 仍存活）不移除槽位：下一次访问观察到缺席，
//     原地替换并重新计算（槽位语义上视为不存在）。
//   - Size 与 ContainsValue 反映 expunge 之后的反向索引：对清除事件
//     尚未投递的死亡 key，读数可能暂时偏高；任何一次触发排空的访问
//     之后读数精确。
//   - 顺序保证仅限单个 (key, subKey) 坐标，跨坐标无顺序承诺。
//
// # 可选能力
//
//   - WithSoftPin：有界 LRU 强引用驻留最近返回的值，
//     近似软引用语义（热点值不被 GC 回收）。
//   - WithMeterProvider：OpenTelemetry 计数器（命中/计算/清除/清扫）。
//   - WithLogger：清理路径的 Debug 日志。
//
// # 快速开始
//
// 使用 New 传入子键工厂和值工厂创建缓存，通过 Get 查找或计算。
// 详细使用示例参考 example_test.go。
//
// # 已知限制
//
//   - 回收时机由 Go 运行时决定，无实时性保证；对时延敏感的测试
//     需要循环触发 runtime.GC 并轮询。
//   - key 在计算途中死亡时，计算仍会完成并短暂留下只能经反向索引
//     观察到的孤儿值条目；之后任意一次触发 expunge 的访问将其清扫。
//   - 软驻留 LRU 按"最近返回"驻留，不感知 key 死亡；被驻留的值
//     最多延迟 capacity 次淘汰后恢复弱语义。
package xweakcache
