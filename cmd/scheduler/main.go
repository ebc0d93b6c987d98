package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iceymoss/go-feed/internal/app"
	"github.com/iceymoss/go-feed/internal/conf"
	"github.com/iceymoss/go-feed/internal/engine"
	"github.com/iceymoss/go-feed/internal/server"
	"github.com/iceymoss/go-feed/internal/tasks"
	"github.com/iceymoss/go-feed/internal/tasks/feed"
	"github.com/iceymoss/go-feed/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path")
	flag.Parse()

	// .env 是可选的, 生产环境直接用环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("⚠️ .env error", zap.Error(err))
	}
	if p := os.Getenv(conf.PathEnv); p != "" {
		*configPath = p
	}

	cfg, err := conf.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("❌ LoadConfig error", zap.Error(err))
	}
	defer logger.Sync()

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("❌ init error", zap.Error(err))
	}
	defer a.Close()

	if cfg.Schedule.Enable {
		tasks.RegisterAuto(feed.TaskName, cfg.Schedule.Cron,
			feed.NewCreator(a.Pipeline, cfg.Schedule.Topics, cfg.Schedule.Categories, a.ScheduledOptions()), nil)
	} else {
		// 不自动调度, 仍然可以通过 jobs 配置或接口手动触发
		tasks.Register(feed.TaskName,
			feed.NewCreator(a.Pipeline, cfg.Schedule.Topics, cfg.Schedule.Categories, a.ScheduledOptions()))
	}

	sched := engine.NewScheduler(tasks.GetTask, cfg.Pipeline.RunTimeout)
	tasks.ApplyAutoJobs(sched)
	for _, job := range cfg.Jobs {
		if !job.Enable {
			continue
		}
		if err := sched.AddJob(job.Cron, job.Name, job.Name+"@yaml", job.Params, string(engine.SourceYAML)); err != nil {
			logger.Error("❌ [YAML] Failed to load", zap.String("job", job.Name), zap.Error(err))
		}
	}
	sched.Start()

	srv := server.NewServer(server.Deps{
		Articles:  a.Articles,
		Summaries: a.Summaries,
		Runner:    a.Pipeline,
		Runs:      a.Runs,
		Scheduler: sched,
		OnDemand:  a.OnDemandOptions(),
	})

	go func() {
		logger.Info("🌐 API running", zap.String("addr", cfg.Server.Port))
		if err := srv.Run(cfg.Server.Port); err != nil {
			logger.Fatal("❌ Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler stop timeout", zap.Error(err))
	}
	a.Runs.Wait()
}
