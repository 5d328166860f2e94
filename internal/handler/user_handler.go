// Package handler 提供 HTTP 请求处理器
// 本文件处理账号与在线状态相关的 API 请求
package handler

import (
	"snack_chat_server/internal/dto/request"
	"snack_chat_server/internal/infrastructure/middleware"
	"snack_chat_server/internal/service"
	"snack_chat_server/pkg/errorx"
	"snack_chat_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户请求处理器
type UserHandler struct {
	userSvc     service.UserService
	presenceSvc service.PresenceService
}

// NewUserHandler 创建用户处理器实例
func NewUserHandler(userSvc service.UserService, presenceSvc service.PresenceService) *UserHandler {
	return &UserHandler{userSvc: userSvc, presenceSvc: presenceSvc}
}

// Register 用户注册
// POST /register
// 请求体: request.RegisterRequest
// 响应: respond.LoginRespond
func (h *UserHandler) Register(c *gin.Context) {
	var req request.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.userSvc.Register(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Login 邮箱密码登录
// POST /login
func (h *UserHandler) Login(c *gin.Context) {
	var req request.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.userSvc.Login(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Logout 注销当前 Token
// DELETE /logout
func (h *UserHandler) Logout(c *gin.Context) {
	v, _ := c.Get(middleware.ContextClaims)
	claims, ok := v.(*jwt.Claims)
	if !ok {
		HandleError(c, errorx.ErrUnauthorized)
		return
	}
	if err := h.userSvc.Logout(c.Request.Context(), claims); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}

// Me 当前用户资料
// GET /me
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	data, err := h.userSvc.Me(c.Request.Context(), userID)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// SetStatus 修改在线状态，共同频道的其他成员会收到 userStatusUpdate
// POST /user/status
func (h *UserHandler) SetStatus(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req request.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if _, err := h.presenceSvc.SetStatus(c.Request.Context(), userID, req.Status); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, gin.H{"status": req.Status})
}
