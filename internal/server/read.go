package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/iceymoss/go-feed/internal/repo"
	perrors "github.com/iceymoss/go-feed/pkg/errors"
	"github.com/iceymoss/go-feed/pkg/utils"
	"github.com/iceymoss/go-feed/pkg/xerr"

	"github.com/gin-gonic/gin"
)

const feedLimit = 500

type dateRange struct {
	start, end *time.Time
}

func parseDateRange(c *gin.Context) (dateRange, error) {
	start, err := utils.ParseDate(c.Query("startDate"), false)
	if err != nil {
		return dateRange{}, perrors.Wrap(xerr.ErrInvalidInput, "invalid startDate", err)
	}
	end, err := utils.ParseDate(c.Query("endDate"), true)
	if err != nil {
		return dateRange{}, perrors.Wrap(xerr.ErrInvalidInput, "invalid endDate", err)
	}
	return dateRange{start: start, end: end}, nil
}

func parseLimit(c *gin.Context) (int, error) {
	raw := c.DefaultQuery("limit", "50")
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, perrors.New(xerr.ErrInvalidInput, "limit must be a positive integer")
	}
	return n, nil
}

// feed 所有摘要, 最新的在前
func (s *Server) feed(c *gin.Context) {
	list, err := s.deps.Summaries.List(c.Request.Context(), repo.SummaryFilter{Limit: feedLimit})
	if err != nil {
		fail(c, perrors.Wrap(xerr.ErrInternalServer, "Failed to fetch feed articles", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "articles": list, "count": len(list)})
}

func (s *Server) summaryArticles(c *gin.Context) {
	dr, err := parseDateRange(c)
	if err != nil {
		fail(c, err)
		return
	}
	limit, err := parseLimit(c)
	if err != nil {
		fail(c, err)
		return
	}

	list, err := s.deps.Summaries.List(c.Request.Context(), repo.SummaryFilter{
		Topic:     c.Query("topic"),
		Category:  c.Query("category"),
		StartDate: dr.start,
		EndDate:   dr.end,
		Limit:     limit,
	})
	if err != nil {
		fail(c, perrors.Wrap(xerr.ErrInternalServer, "Failed to fetch summary articles", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(list), "data": list})
}

func (s *Server) articles(c *gin.Context) {
	dr, err := parseDateRange(c)
	if err != nil {
		fail(c, err)
		return
	}
	limit, err := parseLimit(c)
	if err != nil {
		fail(c, err)
		return
	}

	list, err := s.deps.Articles.List(c.Request.Context(), repo.ArticleFilter{
		Topic:     c.Query("topic"),
		StartDate: dr.start,
		EndDate:   dr.end,
		Limit:     limit,
	})
	if err != nil {
		fail(c, perrors.Wrap(xerr.ErrInternalServer, "Failed to fetch articles", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(list), "data": list})
}

func (s *Server) articlesByTopic(c *gin.Context) {
	limit, err := parseLimit(c)
	if err != nil {
		fail(c, err)
		return
	}
	topic := c.Param("topic")
	list, err := s.deps.Articles.List(c.Request.Context(), repo.ArticleFilter{Topic: topic, Limit: limit})
	if err != nil {
		fail(c, perrors.Wrap(xerr.ErrInternalServer, "Failed to fetch articles", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "topic": topic, "count": len(list), "data": list})
}

func (s *Server) articlesByDate(c *gin.Context) {
	if c.Query("startDate") == "" && c.Query("endDate") == "" {
		fail(c, perrors.New(xerr.ErrMissingParameter, "Please provide at least startDate or endDate"))
		return
	}
	dr, err := parseDateRange(c)
	if err != nil {
		fail(c, err)
		return
	}
	limit, err := parseLimit(c)
	if err != nil {
		fail(c, err)
		return
	}

	list, err := s.deps.Articles.List(c.Request.Context(), repo.ArticleFilter{StartDate: dr.start, EndDate: dr.end, Limit: limit})
	if err != nil {
		fail(c, perrors.Wrap(xerr.ErrInternalServer, "Failed to fetch articles", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"dateRange": gin.H{"startDate": c.Query("startDate"), "endDate": c.Query("endDate")},
		"count":     len(list),
		"data":      list,
	})
}

func (s *Server) topics(c *gin.Context) {
	topics, err := s.deps.Articles.Topics(c.Request.Context())
	if err != nil {
		fail(c, perrors.Wrap(xerr.ErrInternalServer, "Failed to fetch topics", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(topics), "data": topics})
}

func (s *Server) stats(c *gin.Context) {
	ctx := c.Request.Context()
	total, byTopic, err := s.deps.Articles.Stats(ctx)
	if err != nil {
		fail(c, perrors.Wrap(xerr.ErrInternalServer, "Failed to fetch statistics", err))
		return
	}
	summaries, err := s.deps.Summaries.Count(ctx)
	if err != nil {
		fail(c, perrors.Wrap(xerr.ErrInternalServer, "Failed to fetch statistics", err))
		return
	}
	if byTopic == nil {
		byTopic = []repo.TopicCount{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"totalArticles":   total,
			"totalSummaries":  summaries,
			"articlesByTopic": byTopic,
		},
	})
}
