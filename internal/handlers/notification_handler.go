package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/exam-portal/exam-service/internal/services"
	"github.com/exam-portal/exam-service/internal/utils"
)

type NotificationHandler struct {
	BaseHandler
	notificationService services.NotificationService
}

func NewNotificationHandler(notificationService services.NotificationService, logger utils.Logger) *NotificationHandler {
	return &NotificationHandler{
		BaseHandler:         NewBaseHandler(logger),
		notificationService: notificationService,
	}
}

// ListMyNotifications lists the caller's notifications, newest first
// @Summary List my notifications
// @Tags notifications
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /notifications [get]
func (h *NotificationHandler) ListMyNotifications(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	limit, offset := parsePagination(c)
	notifications, total, err := h.notificationService.GetByStudent(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Data: gin.H{"notifications": notifications, "total": total},
	})
}
