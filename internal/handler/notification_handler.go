package handler

import (
	"snack_chat_server/internal/dto/request"
	"snack_chat_server/internal/service"

	"github.com/gin-gonic/gin"
)

// NotificationHandler @提醒
type NotificationHandler struct {
	notificationSvc service.NotificationService
}

func NewNotificationHandler(notificationSvc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationSvc: notificationSvc}
}

// List GET /notifications?unseen=true
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req request.NotificationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.notificationSvc.List(c.Request.Context(), userID, req.Unseen, req.Limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// MarkSeen POST /notifications/:id/seen
func (h *NotificationHandler) MarkSeen(c *gin.Context) {
	userID, id, ok := userAndChannel(c)
	if !ok {
		return
	}
	if err := h.notificationSvc.MarkSeen(c.Request.Context(), userID, id); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}
