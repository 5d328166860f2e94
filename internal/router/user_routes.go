// Package router 提供 HTTP 路由注册
// 本文件定义账号相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterPublicRoutes 注册无需认证的路由
func (rt *Router) RegisterPublicRoutes(r *gin.Engine) {
	r.POST("/register", rt.handlers.User.Register)
	r.POST("/login", rt.handlers.User.Login)
}

// RegisterUserRoutes 注册用户相关路由（需要认证）
func (rt *Router) RegisterUserRoutes(rg *gin.RouterGroup) {
	rg.DELETE("/logout", rt.handlers.User.Logout)
	rg.GET("/me", rt.handlers.User.Me)
	rg.POST("/user/status", rt.handlers.User.SetStatus)
}
