package feed

import (
	"context"
	"fmt"

	"github.com/iceymoss/go-feed/internal/core"
	"github.com/iceymoss/go-feed/internal/pipeline"
	"github.com/iceymoss/go-feed/pkg/logger"

	"go.uber.org/zap"
)

// TaskName 定时批量抓取任务
const TaskName = "feed:scheduled_fetch"

// Runner 由 pipeline.Orchestrator 实现
type Runner interface {
	RunBatch(ctx context.Context, dims []pipeline.Dimension, opts pipeline.Options) *pipeline.Report
}

// ScheduledFetchTask 遍历固定的 topics x categories, 不限额
type ScheduledFetchTask struct {
	runner     Runner
	topics     []string
	categories []string
	opts       pipeline.Options
}

// NewCreator 返回注册到任务池用的构造函数
func NewCreator(runner Runner, topics, categories []string, opts pipeline.Options) core.TaskCreator {
	return func() core.Task {
		return &ScheduledFetchTask{runner: runner, topics: topics, categories: categories, opts: opts}
	}
}

func (t *ScheduledFetchTask) Identifier() string {
	return TaskName
}

// Run 支持通过 params 覆盖 topics / categories / max_new_summaries
func (t *ScheduledFetchTask) Run(ctx context.Context, params map[string]any) error {
	topics := stringsParam(params, "topics", t.topics)
	categories := stringsParam(params, "categories", t.categories)
	if len(topics) == 0 || len(categories) == 0 {
		return fmt.Errorf("%s: topics and categories must not be empty", TaskName)
	}

	opts := t.opts
	if v, ok := intParam(params, "max_new_summaries"); ok {
		opts.MaxNewSummaries = v
	}

	report := t.runner.RunBatch(ctx, pipeline.CrossProduct(topics, categories), opts)
	logger.Info("🎉 [Feed] scheduled fetch finished",
		zap.Int("dimensions", report.DimensionsProcessed),
		zap.Int("new_summaries", report.NewSummaries),
		zap.Int("failed", report.Failed))

	if report.Cancelled {
		if cause := context.Cause(ctx); cause != nil {
			return fmt.Errorf("%s: cancelled after %d new summaries: %w", TaskName, report.NewSummaries, cause)
		}
		return fmt.Errorf("%s: cancelled after %d new summaries", TaskName, report.NewSummaries)
	}
	return nil
}

func stringsParam(params map[string]any, key string, def []string) []string {
	switch v := params[key].(type) {
	case []string:
		if len(v) > 0 {
			return v
		}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

func intParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
