// Package notification serves the history and stats endpoints.
package notification

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jobpulse/notifier/internal/handler"
	"github.com/jobpulse/notifier/internal/model"
	"github.com/jobpulse/notifier/internal/service/notification"
	apperrors "github.com/jobpulse/notifier/pkg/errors"
)

type Handler struct {
	service notification.Service
}

func NewHandler(service notification.Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/users/:user_id/notifications", h.ListNotifications)

	notifications := r.Group("/notifications")
	{
		notifications.POST("/:id/read", h.MarkRead)
		notifications.DELETE("/:id", h.Delete)
	}

	r.GET("/stats/notifications", h.DailyStats)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid user_id"))
		return
	}

	p := model.Pagination{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	p.Normalize()

	notifications, total, err := h.service.History(c.Request.Context(), userID, p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(&handler.PagedResponse{
		Items:    notifications,
		Total:    total,
		Page:     p.Page,
		PageSize: p.PageSize,
	}))
}

func (h *Handler) MarkRead(c *gin.Context) {
	userID, id, ok := h.targetIDs(c)
	if !ok {
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), userID, id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) Delete(c *gin.Context) {
	userID, id, ok := h.targetIDs(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) DailyStats(c *gin.Context) {
	stats, err := h.service.DailyStats(c.Request.Context(), queryInt(c, "days", 7))
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}

// targetIDs reads the notification id from the path and the owning user
// from the user_id query parameter.
func (h *Handler) targetIDs(c *gin.Context) (userID, id uuid.UUID, ok bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid notification ID"))
		return uuid.Nil, uuid.Nil, false
	}

	userID, err = uuid.Parse(c.Query("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid user_id"))
		return uuid.Nil, uuid.Nil, false
	}

	return userID, id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code == apperrors.ErrNotFound {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse(appErr.Message))
		return
	}
	c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
