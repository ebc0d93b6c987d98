package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ProviderDiscovery     = "discovery"
	ProviderEnrichment    = "enrichment"
	ProviderSummarization = "summarization"
)

// Throttle 每个外部服务一个 limiter, 保证两次调用之间至少间隔 interval
type Throttle struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	interval time.Duration
}

func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// Wait 阻塞直到 provider 可以再次调用, interval<=0 时不限速
// 只在 ctx 结束时返回 error; rate.Limiter.Wait 会在等待超过 deadline 时提前报错, 这里不用它
func (t *Throttle) Wait(ctx context.Context, provider string) error {
	if t == nil || t.interval <= 0 {
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r := t.limiter(provider).Reserve()
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *Throttle) limiter(provider string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[provider]
	if !ok {
		l = rate.NewLimiter(rate.Every(t.interval), 1)
		t.limiters[provider] = l
	}
	return l
}
