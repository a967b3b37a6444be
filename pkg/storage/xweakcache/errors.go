package xweakcache

import "errors"

// =============================================================================
// 参数错误
// =============================================================================

var (
	// ErrNilSubKeyFunc 表示构造时未提供子键工厂函数。
	ErrNilSubKeyFunc = errors.New("xweakcache: nil sub-key factory")

	// ErrNilValueFunc 表示构造时未提供值工厂函数。
	ErrNilValueFunc = errors.New("xweakcache: nil value factory")

	// ErrNilParameter 表示传入的 parameter 为 nil。
	// parameter 参与子键与值的派生，不允许缺席。
	ErrNilParameter = errors.New("xweakcache: nil parameter")

	// ErrInvalidPinSize 表示软驻留容量配置无效。
	ErrInvalidPinSize = errors.New("xweakcache: pin capacity must be positive")
)

// =============================================================================
// 计算失败
// =============================================================================

var (
	// ErrNilSubKey 表示子键工厂函数返回了 nil。
	// nil 子键不是可缓存状态，本次计算失败，不留下任何条目。
	ErrNilSubKey = errors.New("xweakcache: sub-key factory returned nil")

	// ErrNilValue 表示值为 nil：值工厂函数返回了 nil（计算失败，
	// 槽位回退为空，下次访问重新计算），或 ContainsValue 收到 nil 入参。
	ErrNilValue = errors.New("xweakcache: nil value")
)

// =============================================================================
// 内部协议错误
// =============================================================================

var (
	// ErrProtocolViolation 表示 factory → cacheValue 的原子替换意外失败。
	// 在既定的并发协议下该替换必定成功；出现此错误说明不变量已被破坏，
	// 本次操作中止，绝不静默忽略。
	ErrProtocolViolation = errors.New("xweakcache: supplier replace protocol violated")
)
