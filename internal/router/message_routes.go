// Package router 提供 HTTP 路由注册
// 本文件定义消息与提醒相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterMessageRoutes 注册消息相关路由（需要认证）
func (rt *Router) RegisterMessageRoutes(rg *gin.RouterGroup) {
	rg.GET("/channels/:id/messages", rt.handlers.Message.History)
	rg.POST("/channels/:id/messages", rt.handlers.Message.Send)
}

// RegisterNotificationRoutes 注册 @提醒 路由（需要认证）
func (rt *Router) RegisterNotificationRoutes(rg *gin.RouterGroup) {
	rg.GET("/notifications", rt.handlers.Notification.List)
	rg.POST("/notifications/:id/seen", rt.handlers.Notification.MarkSeen)
}
