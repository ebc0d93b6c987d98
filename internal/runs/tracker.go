// Package runs 管理异步触发的 pipeline 运行句柄
package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iceymoss/go-feed/internal/pipeline"

	"github.com/go-redis/redis/v8"
)

// ErrNotFound 未知或已过期的 run id
var ErrNotFound = errors.New("run not found")

type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Run 一次异步运行的状态快照
type Run struct {
	ID         string           `json:"id"`
	Status     Status           `json:"status"`
	Interests  []string         `json:"interests,omitempty"`
	Websites   []string         `json:"websites,omitempty"`
	Report     *pipeline.Report `json:"report,omitempty"`
	Error      string           `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	FinishedAt *time.Time       `json:"finishedAt,omitempty"`
}

// Tracker run 状态存储, 只保存临时数据
type Tracker interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
}

const keyPrefix = "feed:run:"

// RedisTracker 以 JSON 存储, 带过期时间
type RedisTracker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisTracker(rdb *redis.Client, ttl time.Duration) *RedisTracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisTracker{rdb: rdb, ttl: ttl}
}

func (t *RedisTracker) Save(ctx context.Context, run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	if err := t.rdb.Set(ctx, keyPrefix+run.ID, data, t.ttl).Err(); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (t *RedisTracker) Get(ctx context.Context, id string) (*Run, error) {
	data, err := t.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &run, nil
}

// MemoryTracker 没有配置 redis 时使用, 进程重启后丢失
type MemoryTracker struct {
	mu   sync.RWMutex
	runs map[string]memoryEntry
	ttl  time.Duration
	now  func() time.Time
}

type memoryEntry struct {
	run     Run
	expires time.Time
}

func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryTracker{runs: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (t *MemoryTracker) Save(_ context.Context, run *Run) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	// 顺手清理过期的
	for id, e := range t.runs {
		if now.After(e.expires) {
			delete(t.runs, id)
		}
	}
	t.runs[run.ID] = memoryEntry{run: *run, expires: now.Add(t.ttl)}
	return nil
}

func (t *MemoryTracker) Get(_ context.Context, id string) (*Run, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.runs[id]
	if !ok || t.now().After(e.expires) {
		return nil, ErrNotFound
	}
	run := e.run
	return &run, nil
}
