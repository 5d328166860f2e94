// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	myredis "snack_chat_server/internal/dao/redis"
	"snack_chat_server/internal/handler"
	"snack_chat_server/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

// Router 持有 Handler 聚合对象与鉴权所需的缓存
type Router struct {
	handlers *handler.Handlers
	cache    myredis.CacheService
}

func NewRouter(handlers *handler.Handlers, cache myredis.CacheService) *Router {
	return &Router{handlers: handlers, cache: cache}
}

// RegisterRoutes 注册所有路由
// 在 https_server.Init() 中调用
// /wss 自己解析 token（支持 ?token=），不挂 JWT 中间件
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	rt.RegisterPublicRoutes(r)
	rt.RegisterWebSocketRoutes(r)

	authed := r.Group("/", middleware.JWTAuth(rt.cache))
	rt.RegisterUserRoutes(authed)
	rt.RegisterChannelRoutes(authed)
	rt.RegisterMessageRoutes(authed)
	rt.RegisterNotificationRoutes(authed)
}
