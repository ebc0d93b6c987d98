package server

import (
	"errors"
	"net/http"

	"github.com/iceymoss/go-feed/internal/engine"
	perrors "github.com/iceymoss/go-feed/pkg/errors"
	"github.com/iceymoss/go-feed/pkg/xerr"

	"github.com/gin-gonic/gin"
)

func (s *Server) listTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.deps.Scheduler.Stats.GetAll()})
}

func (s *Server) runTask(c *gin.Context) {
	err := s.deps.Scheduler.ManualRun(c.Param("name"))
	switch {
	case errors.Is(err, engine.ErrJobNotFound):
		fail(c, perrors.New(xerr.ErrResourceNotFound, "job not found"))
	case errors.Is(err, engine.ErrJobRunning):
		fail(c, perrors.New(xerr.ErrConflict, "job is already running"))
	case err != nil:
		fail(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Triggered"})
	}
}
