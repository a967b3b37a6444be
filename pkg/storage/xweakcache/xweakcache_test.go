package xweakcache

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testKey struct {
	name string
}

// testValue 刻意不引用 key，避免测试持有的返回值延长 key 生命周期。
type testValue struct {
	param int
}

func identitySubKey(_ *testKey, p int) (int, error) {
	return p, nil
}

func newValue(_ *testKey, p int) (*testValue, error) {
	return &testValue{param: p}, nil
}

func newTestCache(t *testing.T, opts ...Option) *Cache[testKey, int, int, testValue] {
	t.Helper()
	c, err := New(identitySubKey, newValue, opts...)
	require.NoError(t, err)
	return c
}

func TestNewValidation(t *testing.T) {
	_, err := New[testKey, int, int, testValue](nil, newValue)
	assert.ErrorIs(t, err, ErrNilSubKeyFunc)

	_, err = New[testKey, int, int, testValue](identitySubKey, nil)
	assert.ErrorIs(t, err, ErrNilValueFunc)

	_, err = New(identitySubKey, newValue, WithSoftPin(0))
	assert.ErrorIs(t, err, ErrInvalidPinSize)

	_, err = New(identitySubKey, newValue, WithSoftPin(-3))
	assert.ErrorIs(t, err, ErrInvalidPinSize)
}

func TestGetMemoizes(t *testing.T) {
	c := newTestCache(t)
	key := &testKey{name: "k1"}

	v1, err := c.Get(key, 5)
	require.NoError(t, err)
	require.NotNil(t, v1)

	v2, err := c.Get(key, 5)
	require.NoError(t, err)
	assert.Same(t, v1, v2, "same (key, parameter) must return the identity-same value")

	v3, err := c.Get(key, 6)
	require.NoError(t, err)
	assert.NotSame(t, v1, v3, "different sub-key must yield a distinct entry")

	assert.Equal(t, 2, c.Size())
}

func TestGetNilParameter(t *testing.T) {
	// 使用可为 nil 的参数类型验证缺席检查
	c, err := New(
		func(_ *testKey, p *int) (int, error) { return *p, nil },
		func(_ *testKey, p *int) (*testValue, error) { return &testValue{param: *p}, nil },
	)
	require.NoError(t, err)

	_, err = c.Get(&testKey{name: "k"}, nil)
	assert.ErrorIs(t, err, ErrNilParameter)
	assert.Equal(t, 0, c.Size())
}

func TestSubKeyFactoryError(t *testing.T) {
	wantErr := errors.New("boom")
	c, err := New(
		func(_ *testKey, _ int) (int, error) { return 0, wantErr },
		newValue,
	)
	require.NoError(t, err)

	_, err = c.Get(&testKey{name: "k"}, 1)
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 0, c.Size())
}

func TestNilSubKey(t *testing.T) {
	c, err := New(
		func(_ *testKey, _ int) (*int, error) { return nil, nil },
		newValue,
	)
	require.NoError(t, err)

	_, err = c.Get(&testKey{name: "k"}, 1)
	assert.ErrorIs(t, err, ErrNilSubKey)
	assert.Equal(t, 0, c.Size())
}

func TestNilValueRetry(t *testing.T) {
	var calls atomic.Int64
	c, err := New(
		identitySubKey,
		func(_ *testKey, p int) (*testValue, error) {
			if calls.Add(1) == 1 {
				return nil, nil // 首次计算失败
			}
			return &testValue{param: p}, nil
		},
	)
	require.NoError(t, err)
	key := &testKey{name: "k"}

	// nil 值是计算失败，不是可缓存状态：不留条目，size 不变
	_, err = c.Get(key, 5)
	assert.ErrorIs(t, err, ErrNilValue)
	assert.Equal(t, 0, c.Size())

	// 槽位已回退为空，后续访问重新计算并记忆化
	v, err := c.Get(key, 5)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 1, c.Size())

	again, err := c.Get(key, 5)
	require.NoError(t, err)
	assert.Same(t, v, again)
	assert.Equal(t, int64(3), calls.Load())
}

func TestValueFactoryErrorPropagates(t *testing.T) {
	wantErr := errors.New("factory exploded")
	var calls atomic.Int64
	c, err := New(
		identitySubKey,
		func(_ *testKey, p int) (*testValue, error) {
			if calls.Add(1) == 1 {
				return nil, wantErr
			}
			return &testValue{param: p}, nil
		},
	)
	require.NoError(t, err)
	key := &testKey{name: "k"}

	_, err = c.Get(key, 5)
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 0, c.Size())

	v, err := c.Get(key, 5)
	require.NoError(t, err)
	require.NotNil(t, v)
}

func TestSingleFlight(t *testing.T) {
	var calls atomic.Int64
	c, err := New(
		identitySubKey,
		func(_ *testKey, p int) (*testValue, error) {
			calls.Add(1)
			time.Sleep(50 * time.Millisecond) // 放大计算窗口
			return &testValue{param: p}, nil
		},
	)
	require.NoError(t, err)
	key := &testKey{name: "hot"}

	const n = 32
	var (
		start   sync.WaitGroup
		done    sync.WaitGroup
		results [n]*testValue
		errs    [n]error
	)
	start.Add(1)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			results[i], errs[i] = c.Get(key, 7)
		}(i)
	}
	start.Done()
	done.Wait()

	require.NoError(t, errors.Join(errs[:]...))
	assert.Equal(t, int64(1), calls.Load(), "value factory must run exactly once")
	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1, c.Size())
}

func TestContainsValueIdentity(t *testing.T) {
	c := newTestCache(t)
	key := &testKey{name: "k"}

	v, err := c.Get(key, 5)
	require.NoError(t, err)

	ok, err := c.ContainsValue(v)
	require.NoError(t, err)
	assert.True(t, ok)

	// 结构相等但实例不同：身份比较不匹配
	clone := &testValue{param: v.param}
	ok, err = c.ContainsValue(clone)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.ContainsValue(nil)
	assert.ErrorIs(t, err, ErrNilValue)
}

func TestNullKey(t *testing.T) {
	c := newTestCache(t)

	v1, err := c.Get(nil, 5)
	require.NoError(t, err)
	v2, err := c.Get(nil, 5)
	require.NoError(t, err)
	assert.Same(t, v1, v2, "null key must memoize per parameter")

	v3, err := c.Get(nil, 6)
	require.NoError(t, err)
	assert.NotSame(t, v1, v3)

	// null key 与具名 key 互不干扰
	v4, err := c.Get(&testKey{name: "k"}, 5)
	require.NoError(t, err)
	assert.NotSame(t, v1, v4)

	assert.Equal(t, 3, c.Size())
}

func TestSizeEmpty(t *testing.T) {
	c := newTestCache(t)
	assert.Equal(t, 0, c.Size())
}

func TestConcurrentMixedOperations(t *testing.T) {
	c := newTestCache(t)
	keys := make([]*testKey, 8)
	for i := range keys {
		keys[i] = &testKey{name: string(rune('a' + i))}
	}

	// 所有返回值保持强引用直到断言完成，排除测试期间值被 GC 回收
	// 触发重算、旧反向索引条目残留导致计数漂移的可能
	var (
		mu       sync.Mutex
		retained []*testValue
	)

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := keys[(w+i)%len(keys)]
				v, err := c.Get(key, i%5)
				if err != nil || v == nil {
					t.Errorf("Get failed: %v", err)
					return
				}
				mu.Lock()
				retained = append(retained, v)
				mu.Unlock()
				if i%17 == 0 {
					if _, err := c.ContainsValue(v); err != nil {
						t.Errorf("ContainsValue failed: %v", err)
						return
					}
				}
				if i%29 == 0 {
					c.Size()
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, len(keys)*5, c.Size())
	runtime.KeepAlive(retained)
}

func TestStatsCounters(t *testing.T) {
	c := newTestCache(t)
	key := &testKey{name: "k"}

	v, err := c.Get(key, 1) // 未命中 → 计算
	require.NoError(t, err)
	_, err = c.Get(key, 1) // 命中
	require.NoError(t, err)
	_, err = c.Get(key, 1) // 命中
	require.NoError(t, err)

	st := c.Stats()
	assert.Equal(t, int64(2), st.Hits)
	assert.Equal(t, int64(1), st.Computes)
	assert.Equal(t, 1, st.Size)
	runtime.KeepAlive(v)
}
