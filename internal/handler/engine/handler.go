// Package engine exposes the operator trigger for notification cycles.
package engine

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	enginepkg "github.com/jobpulse/notifier/internal/engine"
	"github.com/jobpulse/notifier/internal/handler"
	"github.com/jobpulse/notifier/internal/model"
)

// Runner is the slice of the engine the handler drives.
type Runner interface {
	Run(ctx context.Context, opts enginepkg.RunOptions) (*model.CycleStats, error)
}

type Handler struct {
	runner Runner
}

func NewHandler(runner Runner) *Handler {
	return &Handler{
		runner: runner,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	eng := r.Group("/engine")
	{
		eng.POST("/cycles", h.TriggerCycle)
	}
}

type triggerRequest struct {
	DryRun bool `json:"dry_run"`
	Limit  int  `json:"limit" binding:"omitempty,min=1"`
}

// TriggerCycle runs one cycle inline and returns its stats. A run
// already in progress anywhere in the fleet yields 409.
func (h *Handler) TriggerCycle(c *gin.Context) {
	var req triggerRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request body"))
			return
		}
	}

	stats, err := h.runner.Run(c.Request.Context(), enginepkg.RunOptions{
		DryRun:      req.DryRun,
		Limit:       req.Limit,
		TriggeredBy: "operator",
	})
	if err != nil {
		if errors.Is(err, enginepkg.ErrCycleInProgress) {
			c.JSON(http.StatusConflict, handler.NewErrorResponse("a cycle is already in progress"))
			return
		}
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}
