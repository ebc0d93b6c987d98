package tasks

import (
	"fmt"
	"sort"
	"sync"

	"github.com/iceymoss/go-feed/internal/core"
	"github.com/iceymoss/go-feed/pkg/logger"

	"go.uber.org/zap"
)

type Scheduler interface {
	AddJob(cronExpr, taskName, uniqueJobName string, params map[string]any, source string) error
}

// SourceSystem 代码里自动注册的任务
const SourceSystem = "SYSTEM"

// ApplyAutoJobs 把所有自启动任务加入调度器, 单个失败不影响其他任务
func ApplyAutoJobs(sched Scheduler) {
	mu.RLock()
	defer mu.RUnlock()

	for _, job := range autoJobs {
		err := sched.AddJob(job.Cron, job.Name, job.Name, job.Params, SourceSystem)
		if err != nil {
			logger.Error("❌ [AutoLoad] Failed to load", zap.String("job", job.Name), zap.Error(err))
		} else {
			logger.Info("✅ [AutoLoad] Loaded", zap.String("job", job.Name), zap.String("cron", job.Cron))
		}
	}
}

// AutoJob 定义一个“自启动任务”的结构
type AutoJob struct {
	Name    string           // 任务唯一标识
	Cron    string           // Cron 表达式
	Creator core.TaskCreator // 构造函数
	Params  map[string]any   // 默认参数
}

var (
	registry = make(map[string]core.TaskCreator) // 普通任务注册（供 Config 调用）
	autoJobs = make([]*AutoJob, 0)               // 自动任务列表（供代码直接启动）
	mu       sync.RWMutex
)

// Register 注册任务实现, 同名覆盖
func Register(name string, creator core.TaskCreator) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = creator
}

// RegisterAuto 注册并自动启动, 同名的自启动任务只保留最后一次
func RegisterAuto(name string, cron string, creator core.TaskCreator, defaultParams map[string]any) {
	mu.Lock()
	defer mu.Unlock()

	// 1. 先注册到普通池子（这样 Web 界面也能手动触发）
	registry[name] = creator

	// 2. 加入自动启动列表
	job := &AutoJob{Name: name, Cron: cron, Creator: creator, Params: defaultParams}
	for i, existing := range autoJobs {
		if existing.Name == name {
			autoJobs[i] = job
			return
		}
	}
	autoJobs = append(autoJobs, job)
}

func GetTask(name string) (core.Task, error) {
	mu.RLock()
	defer mu.RUnlock()
	creator, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("task implementation '%s' not found", name)
	}
	return creator(), nil
}

// Names 已注册的任务名, 按字母排序
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// reset 测试用
func reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = make(map[string]core.TaskCreator)
	autoJobs = make([]*AutoJob, 0)
}
