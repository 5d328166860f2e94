// Package handler 提供 HTTP 请求处理器
// 本文件处理 WebSocket 握手
package handler

import (
	"net/http"

	"snack_chat_server/internal/infrastructure/middleware"
	"snack_chat_server/internal/service"
	"snack_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WsHandler WebSocket 入口
type WsHandler struct {
	chat service.ChatGateway
}

func NewWsHandler(chat service.ChatGateway) *WsHandler {
	return &WsHandler{chat: chat}
}

// Connect GET /wss
// Token 通过 Authorization: Bearer 或 ?token= 传入
// 鉴权失败直接返回 401，不升级、不登记
func (h *WsHandler) Connect(c *gin.Context) {
	userID, err := h.chat.Authenticate(c.Request.Context(), middleware.TokenFromRequest(c))
	if err != nil {
		zap.L().Info("ws handshake rejected", zap.String("ip", c.ClientIP()), zap.Error(err))
		status := http.StatusUnauthorized
		if errorx.GetCode(err) == errorx.CodeServerBusy {
			status = http.StatusServiceUnavailable
		}
		c.AbortWithStatusJSON(status, ResponseData{Code: errorx.GetCode(err), Msg: err.Error()})
		return
	}
	h.chat.Serve(c.Writer, c.Request, userID)
}
