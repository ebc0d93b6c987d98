package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/iceymoss/go-feed/internal/engine"
	"github.com/iceymoss/go-feed/internal/pipeline"
	"github.com/iceymoss/go-feed/internal/repo"
	"github.com/iceymoss/go-feed/internal/runs"
	perrors "github.com/iceymoss/go-feed/pkg/errors"
	"github.com/iceymoss/go-feed/pkg/logger"
	"github.com/iceymoss/go-feed/pkg/xerr"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps server 依赖
type Deps struct {
	Articles  *repo.ArticleRepo
	Summaries *repo.SummaryRepo
	Runner    runs.BatchRunner
	Runs      *runs.Service
	// Scheduler 为 nil 时不暴露任务接口
	Scheduler *engine.Scheduler
	// OnDemand 按需触发使用的参数, MaxNewSummaries 即配额
	OnDemand pipeline.Options
}

type Server struct {
	engine *gin.Engine
	deps   Deps
	http   *http.Server
}

func NewServer(deps Deps) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{engine: router, deps: deps}

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/scrape-and-summarize", s.scrapeAndSummarize)
		api.POST("/runs", s.startRun)
		api.GET("/runs/:id", s.getRun)

		api.GET("/feed", s.feed)
		api.GET("/summary-articles", s.summaryArticles)
		api.GET("/articles", s.articles)
		api.GET("/articles/by-topic/:topic", s.articlesByTopic)
		api.GET("/articles/by-date", s.articlesByDate)
		api.GET("/topics", s.topics)
		api.GET("/stats", s.stats)

		if deps.Scheduler != nil {
			api.GET("/tasks", s.listTasks)
			api.POST("/tasks/:name/run", s.runTask)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		fail(c, perrors.New(xerr.ErrNotFound, "API not found"))
	})

	return s
}

// Handler 测试或嵌入其他 server 时使用
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 阻塞直到 Shutdown 被调用
func (s *Server) Run(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
}

// fail 统一错误响应 {success:false, code, error}
func fail(c *gin.Context, err error) {
	cm := perrors.FromError(err)
	status := cm.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "code": cm.Code, "error": cm.Msg})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if path == "/metrics" || path == "/health" {
			return
		}
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// cleanList 去掉空白项
func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

// cleanWebsite 去掉协议头和结尾的 /
func cleanWebsite(site string) string {
	site = strings.TrimSpace(site)
	site = strings.TrimPrefix(site, "https://")
	site = strings.TrimPrefix(site, "http://")
	return strings.TrimRight(site, "/")
}
