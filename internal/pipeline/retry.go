package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrRetriesExhausted 所有尝试都失败
var ErrRetriesExhausted = errors.New("retries exhausted")

// Backoff 线性退避: 第 n 次失败后等待 n*Base
type Backoff struct {
	Attempts int
	Base     time.Duration
	// Sleep 为 nil 时由 backoff 库的 timer 等待, 测试里可以替换
	Sleep func(ctx context.Context, d time.Duration) error
}

// linearBackOff 实现 backoff.BackOff
// 注入了 sleep 时自己等待并返回 0, 让库立即进入下一次尝试
type linearBackOff struct {
	ctx   context.Context
	base  time.Duration
	n     int
	sleep func(ctx context.Context, d time.Duration) error
}

func (l *linearBackOff) Reset() { l.n = 0 }

func (l *linearBackOff) NextBackOff() time.Duration {
	l.n++
	d := time.Duration(l.n) * l.base
	if l.sleep == nil {
		return d
	}
	if err := l.sleep(l.ctx, d); err != nil {
		return backoff.Stop
	}
	return 0
}

// Retry 最多执行 Attempts 次 op (总次数, 不是重试次数)
// 全部失败时返回零值和包装了 ErrRetriesExhausted 的错误, ctx 取消时返回 ctx.Err()
func Retry[T any](ctx context.Context, b Backoff, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	attempts := b.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	attempt := 0
	res, err := backoff.Retry(ctx, func() (T, error) {
		if err := ctx.Err(); err != nil {
			return zero, backoff.Permanent(err)
		}
		attempt++
		return op(ctx, attempt)
	},
		backoff.WithBackOff(&linearBackOff{ctx: ctx, base: b.Base, sleep: b.Sleep}),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
}
