package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/iceymoss/go-feed/internal/conf"
	"github.com/iceymoss/go-feed/internal/pipeline"
	"github.com/iceymoss/go-feed/internal/provider"
	"github.com/iceymoss/go-feed/internal/provider/exa"
	"github.com/iceymoss/go-feed/internal/provider/llm"
	"github.com/iceymoss/go-feed/internal/provider/rss"
	"github.com/iceymoss/go-feed/internal/provider/web"
	"github.com/iceymoss/go-feed/internal/repo"
	"github.com/iceymoss/go-feed/internal/runs"
	"github.com/iceymoss/go-feed/pkg/db"
	"github.com/iceymoss/go-feed/pkg/logger"
	"github.com/iceymoss/go-feed/pkg/sensitive"
	"github.com/iceymoss/go-feed/pkg/transaction"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App 进程内共享的依赖, cmd/scheduler 和 cmd/feedctl 都从这里组装
type App struct {
	Config    *conf.Config
	DB        *gorm.DB
	Redis     *redis.Client
	Articles  *repo.ArticleRepo
	Summaries *repo.SummaryRepo
	Pipeline  *pipeline.Orchestrator
	Runs      *runs.Service
}

// New 按配置初始化数据库, provider 和 pipeline
func New(ctx context.Context, cfg *conf.Config) (*App, error) {
	logger.SetLevel(cfg.Log.Level)

	conn, err := db.Open(db.Options{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		LogLevel:     cfg.Database.LogLevel,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		SlowQuery:    cfg.Database.SlowQuery,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(conn); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	a := &App{Config: cfg, DB: conn}
	tx := transaction.NewManager(conn)
	a.Articles = repo.NewArticleRepo(tx)
	a.Summaries = repo.NewSummaryRepo(tx)

	summarizer, err := llm.NewSummarizer(llm.Config{
		APIKey:        cfg.LLM.APIKey,
		BaseURL:       cfg.LLM.BaseURL,
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		MaxTokens:     cfg.LLM.MaxTokens,
		MaxInputChars: cfg.LLM.MaxInputChars,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	filter, err := blockedWords(cfg.Pipeline)
	if err != nil {
		a.Close()
		return nil, err
	}

	discoverer, query, enricher := providers(cfg)
	a.Pipeline = pipeline.New(pipeline.Deps{
		Discoverer: discoverer,
		Enricher:   enricher,
		Summarizer: summarizer,
		Staging:    a.Articles,
		Summaries:  a.Summaries,
		Filter:     filter,
		Query:      query,
	})

	a.Runs = runs.NewService(a.Pipeline, a.tracker(ctx), cfg.Pipeline.RunTimeout)
	return a, nil
}

// providers exa 必选; rss 和网页抓取按配置追加
func providers(cfg *conf.Config) (pipeline.Discoverer, pipeline.QueryBuilder, pipeline.Enricher) {
	exaClient := exa.NewClient(exa.Config{
		APIKey:        cfg.Exa.APIKey,
		BaseURL:       cfg.Exa.BaseURL,
		SearchType:    cfg.Exa.SearchType,
		NumResults:    cfg.Exa.NumResults,
		MaxCharacters: cfg.Exa.MaxCharacters,
		QueryTemplate: cfg.Exa.QueryTemplate,
		Livecrawl:     cfg.Exa.Livecrawl,
		Timeout:       cfg.Exa.Timeout,
	}, nil)

	enrichers := provider.EnricherChain{{Name: "exa", Enricher: exaClient}}
	if cfg.Pipeline.FetchPages {
		fetcher := web.NewFetcher(&http.Client{Timeout: cfg.Exa.Timeout}, cfg.Pipeline.PageMaxChars)
		enrichers = append(enrichers, provider.NamedEnricher{Name: "web", Enricher: fetcher})
	}

	if len(cfg.RSS.Feeds) == 0 {
		return exaClient, exaClient.Query, enrichers
	}

	feeds := rss.NewDiscoverer(cfg.RSS.Feeds, &http.Client{Timeout: cfg.RSS.Timeout})
	feeds.MaxAge = cfg.RSS.MaxAge
	multi := provider.NewMultiDiscoverer(
		provider.NamedDiscoverer{Name: "exa", Discoverer: exaClient, Query: exaClient.Query},
		provider.NamedDiscoverer{Name: "rss", Discoverer: feeds, Query: feeds.Query},
	)
	logger.Info("📡 rss discovery enabled", zap.Int("feeds", len(cfg.RSS.Feeds)))
	return multi, exaClient.Query, enrichers
}

func blockedWords(cfg conf.PipelineConfig) (pipeline.ContentFilter, error) {
	words := sensitive.NewWord(cfg.BlockedWords)
	if cfg.BlockedWordsFile != "" {
		fromFile, err := sensitive.NewWordFromFile(cfg.BlockedWordsFile)
		if err != nil {
			return nil, fmt.Errorf("load blocked words: %w", err)
		}
		fromFile.Add(cfg.BlockedWords...)
		words = fromFile
	}
	if words.Empty() {
		return nil, nil
	}
	return words, nil
}

// tracker redis 不可用时退化成内存, 只影响异步 run 的可见范围
func (a *App) tracker(ctx context.Context) runs.Tracker {
	rc := a.Config.Redis
	if rc.Addr == "" {
		return runs.NewMemoryTracker(rc.RunTTL)
	}
	rdb, err := db.NewRedisClient(ctx, rc.Addr, rc.Password, rc.DB)
	if err != nil {
		logger.Warn("⚠️ redis unavailable, run status kept in memory", zap.Error(err))
		return runs.NewMemoryTracker(rc.RunTTL)
	}
	a.Redis = rdb
	return runs.NewRedisTracker(rdb, rc.RunTTL)
}

// ScheduledOptions 定时任务不限额
func (a *App) ScheduledOptions() pipeline.Options {
	p := a.Config.Pipeline
	return pipeline.Options{
		InterStageDelay:  p.InterStageDelay,
		RetryAttempts:    p.RetryAttempts,
		RetryBaseDelay:   p.RetryBaseDelay,
		SummarizeTimeout: p.SummarizeTimeout,
		MinContentLength: p.MinContentLength,
		BacklogLimit:     p.BacklogLimit,
	}
}

// OnDemandOptions 按需触发, 新摘要数量受配额限制
func (a *App) OnDemandOptions() pipeline.Options {
	opts := a.ScheduledOptions()
	opts.MaxNewSummaries = a.Config.Pipeline.OnDemandQuota
	return opts
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
