// Package router 提供 HTTP 路由注册
// 本文件定义频道与成员关系相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterChannelRoutes 注册频道相关路由（需要认证）
func (rt *Router) RegisterChannelRoutes(rg *gin.RouterGroup) {
	h := rt.handlers.Channel
	channelGroup := rg.Group("/channels")
	{
		channelGroup.GET("", h.List)          // 我的频道（含待接受的邀请）
		channelGroup.POST("", h.JoinOrCreate) // 加入或创建
		channelGroup.GET("/:id", h.Show)
		channelGroup.GET("/:id/users", h.Roster)
		channelGroup.POST("/:id/leave", h.Leave)
		channelGroup.POST("/:id/invite", h.Invite)
		channelGroup.POST("/:id/accept-invite", h.AcceptInvite)
		channelGroup.POST("/:id/decline-invite", h.DeclineInvite)
		channelGroup.DELETE("/:id/revoke", h.Revoke) // 私有频道移除成员
		channelGroup.DELETE("/:id/kick", h.Kick)     // 公开频道踢人，累计封禁
	}
}
