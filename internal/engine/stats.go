package engine

import (
	"sort"
	"sync"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// Source 任务来源
type Source string

const (
	SourceSystem Source = "SYSTEM"
	SourceYAML   Source = "YAML"
)

const (
	StatusIdle    = "Idle"
	StatusRunning = "Running"
	StatusError   = "Error"
)

// JobStats 任务运行时状态
type JobStats struct {
	Name        string `json:"name"`
	Task        string `json:"task"`
	CronExpr    string `json:"cron_expr"`
	Status      string `json:"status"`      // Idle, Running, Error
	LastRunTime string `json:"last_run"`    // 格式化后的时间
	NextRunTime string `json:"next_run"`    // 格式化后的时间
	LastResult  string `json:"last_result"` // 成功或错误信息
	RunCount    int64  `json:"run_count"`
	Source      Source `json:"source"` // 任务来源 (例如: "SYSTEM", "YAML")
}

type StatManager struct {
	stats map[string]*JobStats
	mu    sync.RWMutex
}

func NewStatManager() *StatManager {
	return &StatManager{
		stats: make(map[string]*JobStats),
	}
}

func (m *StatManager) Set(name string, stat *JobStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[name] = stat
}

// Get 返回快照, 不存在时返回 nil
func (m *StatManager) Get(name string) *JobStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stats[name]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (m *StatManager) GetAll() []JobStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]JobStats, 0, len(m.stats))
	for _, s := range m.stats {
		list = append(list, *s)
	}
	// 按名称排序
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

// begin 标记开始运行; 同一个任务正在运行时返回 false
func (m *StatManager) begin(name string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[name]
	if !ok || s.Status == StatusRunning {
		return false
	}
	s.Status = StatusRunning
	s.LastRunTime = now.Format(timeLayout)
	s.RunCount++
	return true
}

func (m *StatManager) finish(name string, err error, next time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[name]
	if !ok {
		return
	}
	if err != nil {
		s.Status = StatusError
		s.LastResult = "Error: " + err.Error()
	} else {
		s.Status = StatusIdle
		s.LastResult = "Success"
	}
	if !next.IsZero() {
		s.NextRunTime = next.Format(timeLayout)
	}
}

func (m *StatManager) setNext(name string, next time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stats[name]; ok && !next.IsZero() {
		s.NextRunTime = next.Format(timeLayout)
	}
}
