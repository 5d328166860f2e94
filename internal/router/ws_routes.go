// Package router 提供 HTTP 路由注册
// 本文件定义 WebSocket 路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterWebSocketRoutes 注册 WebSocket 入口
// 请求示例: ws://host:port/wss?token=<access token>
func (rt *Router) RegisterWebSocketRoutes(r *gin.Engine) {
	r.GET("/wss", rt.handlers.Ws.Connect)
}
