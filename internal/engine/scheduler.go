package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iceymoss/go-feed/internal/core"
	"github.com/iceymoss/go-feed/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobRunning  = errors.New("job is already running")
)

// 与 cron.WithSeconds() 相同的 6 段式解析器
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// TaskResolver 根据任务名拿到任务实例
type TaskResolver func(name string) (core.Task, error)

type registration struct {
	task    core.Task
	params  map[string]any
	entryID cron.EntryID
}

type Scheduler struct {
	cron    *cron.Cron
	Stats   *StatManager
	resolve TaskResolver
	timeout time.Duration

	mu         sync.RWMutex
	registered map[string]registration

	// 停止时取消所有正在运行的任务
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler timeout 为单次运行的超时时间, 批量抓取可能持续数分钟, 默认给足
func NewScheduler(resolve TaskResolver, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 65 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		Stats:      NewStatManager(),
		resolve:    resolve,
		timeout:    timeout,
		registered: make(map[string]registration),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// AddJob 添加任务
func (s *Scheduler) AddJob(cronExpr, taskName, uniqueJobName string, params map[string]any, source string) error {
	// 1. 获取任务实现
	taskInstance, err := s.resolve(taskName)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.registered[uniqueJobName]; exists {
		return fmt.Errorf("job %s already registered", uniqueJobName)
	}

	// 2. 加入 Cron
	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron %q for %s: %w", cronExpr, uniqueJobName, err)
	}
	entryID := s.cron.Schedule(sched, cron.FuncJob(func() {
		s.run(uniqueJobName)
	}))

	// 3. 初始化状态
	stat := &JobStats{
		Name:        uniqueJobName,
		Task:        taskName,
		CronExpr:    cronExpr,
		Status:      StatusIdle,
		LastResult:  "Pending",
		Source:      Source(source),
		NextRunTime: sched.Next(time.Now()).Format(timeLayout),
	}
	s.Stats.Set(uniqueJobName, stat)

	// 保存引用以便手动触发
	s.registered[uniqueJobName] = registration{task: taskInstance, params: params, entryID: entryID}
	return nil
}

// run 执行并记录状态, 同一任务不会重叠执行
func (s *Scheduler) run(name string) {
	s.mu.RLock()
	reg, ok := s.registered[name]
	s.mu.RUnlock()
	if !ok {
		return
	}
	if !s.Stats.begin(name, time.Now()) {
		logger.Warn("⏭️ [Schedule] Job still running, skip", zap.String("job", name))
		return
	}

	logger.Info("🚀 [Schedule] Starting job", zap.String("job", name))
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	err := s.safeRun(ctx, reg)

	s.Stats.finish(name, err, s.cron.Entry(reg.entryID).Next)
	if err != nil {
		logger.Error("❌ [Schedule] Job failed", zap.String("job", name), zap.Error(err))
		return
	}
	logger.Info("✅ [Schedule] Job finished", zap.String("job", name))
}

func (s *Scheduler) safeRun(ctx context.Context, reg registration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return reg.task.Run(ctx, reg.params)
}

// ManualRun 手动触发, 异步执行
func (s *Scheduler) ManualRun(uniqueJobName string) error {
	s.mu.RLock()
	_, ok := s.registered[uniqueJobName]
	s.mu.RUnlock()
	if !ok {
		return ErrJobNotFound
	}
	if stat := s.Stats.Get(uniqueJobName); stat != nil && stat.Status == StatusRunning {
		return ErrJobRunning
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(uniqueJobName)
	}()
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, reg := range s.registered {
		s.Stats.setNext(name, s.cron.Entry(reg.entryID).Next)
	}
}

// Stop 停止调度并取消正在运行的任务, 等待它们退出或 ctx 超时
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait() // 手动触发的任务
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
