package server

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/iceymoss/go-feed/internal/pipeline"
	"github.com/iceymoss/go-feed/internal/runs"
	"github.com/iceymoss/go-feed/pkg/db/objects"
	perrors "github.com/iceymoss/go-feed/pkg/errors"
	"github.com/iceymoss/go-feed/pkg/xerr"

	"github.com/gin-gonic/gin"
)

type scrapeRequest struct {
	Interests []string `json:"interests"`
	Websites  []string `json:"websites"`
}

// parse 在启动 pipeline 之前拒绝非法输入
func (r *scrapeRequest) parse(c *gin.Context) error {
	if err := c.ShouldBindJSON(r); err != nil {
		return perrors.Wrap(xerr.ErrInvalidJSON, "request body must be JSON with interests and websites arrays", err)
	}
	r.Interests = cleanList(r.Interests)
	websites := make([]string, 0, len(r.Websites))
	for _, w := range cleanList(r.Websites) {
		if w = cleanWebsite(w); w != "" {
			websites = append(websites, w)
		}
	}
	r.Websites = websites
	if len(r.Interests) == 0 || len(r.Websites) == 0 {
		return perrors.New(xerr.ErrMissingParameter, "interests and websites are required and must be non-empty arrays")
	}
	for _, v := range append(append([]string{}, r.Interests...), r.Websites...) {
		if utf8.RuneCountInString(v) > objects.MaxDimensionLength {
			return perrors.New(xerr.ErrInvalidInput, fmt.Sprintf("interests and websites must be at most %d characters", objects.MaxDimensionLength))
		}
	}
	return nil
}

// scrapeAndSummarize 同步执行按需抓取, 客户端断开时在下一个文章边界停止
func (s *Server) scrapeAndSummarize(c *gin.Context) {
	var req scrapeRequest
	if err := req.parse(c); err != nil {
		fail(c, err)
		return
	}

	dims := pipeline.SiteProduct(req.Interests, req.Websites)
	report := s.deps.Runner.RunBatch(c.Request.Context(), dims, s.deps.OnDemand)

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       fmt.Sprintf("Successfully scraped and summarized %d articles", report.NewSummaries),
		"articlesCount": report.NewSummaries,
		"articles":      report.Articles,
	})
}

// startRun 异步版本, 立即返回 run id
func (s *Server) startRun(c *gin.Context) {
	var req scrapeRequest
	if err := req.parse(c); err != nil {
		fail(c, err)
		return
	}

	run, err := s.deps.Runs.Start(c.Request.Context(), req.Interests, req.Websites, s.deps.OnDemand)
	if err != nil {
		fail(c, perrors.Wrap(xerr.ErrInternalServer, "failed to start run", err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": run.ID, "status": run.Status})
}

func (s *Server) getRun(c *gin.Context) {
	run, err := s.deps.Runs.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, runs.ErrNotFound) {
		fail(c, perrors.New(xerr.ErrResourceNotFound, "run not found"))
		return
	}
	if err != nil {
		fail(c, perrors.Wrap(xerr.ErrInternalServer, "failed to load run", err))
		return
	}
	c.JSON(http.StatusOK, run)
}
