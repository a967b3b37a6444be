package xref

import "errors"

var (
	// ErrNegativeTimeout 表示传入的等待超时为负数。
	ErrNegativeTimeout = errors.New("xref: negative timeout")
)
