package runs

import (
	"context"
	"sync"
	"time"

	"github.com/iceymoss/go-feed/internal/pipeline"
	"github.com/iceymoss/go-feed/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BatchRunner 由 pipeline.Orchestrator 实现
type BatchRunner interface {
	RunBatch(ctx context.Context, dims []pipeline.Dimension, opts pipeline.Options) *pipeline.Report
}

// Service 异步启动 run, 调用方拿到 id 后轮询状态
type Service struct {
	runner  BatchRunner
	tracker Tracker
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewService(runner BatchRunner, tracker Tracker, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Service{runner: runner, tracker: tracker, timeout: timeout}
}

// Start 保存 running 状态后在后台执行, 不受调用方请求生命周期影响
func (s *Service) Start(ctx context.Context, interests, websites []string, opts pipeline.Options) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Status:    StatusRunning,
		Interests: interests,
		Websites:  websites,
		CreatedAt: time.Now(),
	}
	if err := s.tracker.Save(ctx, run); err != nil {
		return nil, err
	}

	dims := pipeline.SiteProduct(interests, websites)
	snapshot := *run
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(&snapshot, dims, opts)
	}()
	return run, nil
}

func (s *Service) execute(run *Run, dims []pipeline.Dimension, opts pipeline.Options) {
	log := logger.With(zap.String("run_id", run.ID))
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error("❌ run panicked", zap.Any("panic", r))
			s.finish(run, nil, "internal error")
		}
	}()

	log.Info("🚀 async run started", zap.Int("dimensions", len(dims)))
	report := s.runner.RunBatch(ctx, dims, opts)
	s.finish(run, report, "")
}

func (s *Service) finish(run *Run, report *pipeline.Report, errMsg string) {
	now := time.Now()
	run.FinishedAt = &now
	run.Report = report
	run.Status = StatusDone
	if errMsg != "" {
		run.Status = StatusFailed
		run.Error = errMsg
	}
	// 请求 ctx 早已结束, 这里用独立的短超时
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tracker.Save(ctx, run); err != nil {
		logger.Error("save run status failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// Get 查询 run 状态
func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	return s.tracker.Get(ctx, id)
}

// Wait 等待所有后台 run 结束, 用于优雅退出
func (s *Service) Wait() {
	s.wg.Wait()
}
