// Package handler 提供 HTTP 请求处理器
// 本文件处理消息历史与 REST 发消息
package handler

import (
	"snack_chat_server/internal/dto/request"
	"snack_chat_server/internal/dto/respond"
	"snack_chat_server/internal/service"

	"github.com/gin-gonic/gin"
)

// MessageHandler 消息请求处理器
type MessageHandler struct {
	messageSvc service.MessageService
}

func NewMessageHandler(messageSvc service.MessageService) *MessageHandler {
	return &MessageHandler{messageSvc: messageSvc}
}

// History GET /channels/:id/messages?page=&pageSize=
// 第 1 页为最新消息
func (h *MessageHandler) History(c *gin.Context) {
	userID, channelID, ok := userAndChannel(c)
	if !ok {
		return
	}
	var req request.MessageListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.History(c.Request.Context(), userID, channelID, req.Page, req.PageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Send POST /channels/:id/messages
func (h *MessageHandler) Send(c *gin.Context) {
	userID, channelID, ok := userAndChannel(c)
	if !ok {
		return
	}
	var req request.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	res, err := h.messageSvc.Send(c.Request.Context(), userID, channelID, req.Content)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.SendMessageRespond{SentTo: res.SentTo, Message: res.Message})
}
