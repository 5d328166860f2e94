// Package handler 提供 HTTP 请求处理器
// 本文件处理频道与成员关系相关的 API 请求，变更与 WebSocket 命令走同一套 Service
package handler

import (
	"snack_chat_server/internal/dto/request"
	"snack_chat_server/internal/dto/respond"
	"snack_chat_server/internal/service"

	"github.com/gin-gonic/gin"
)

// ChannelHandler 频道请求处理器
type ChannelHandler struct {
	channelSvc    service.ChannelService
	membershipSvc service.MembershipService
}

func NewChannelHandler(channelSvc service.ChannelService, membershipSvc service.MembershipService) *ChannelHandler {
	return &ChannelHandler{channelSvc: channelSvc, membershipSvc: membershipSvc}
}

// List GET /channels
func (h *ChannelHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	data, err := h.channelSvc.List(c.Request.Context(), userID)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// JoinOrCreate POST /channels
// 请求体: request.JoinChannelRequest
func (h *ChannelHandler) JoinOrCreate(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req request.JoinChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	res, err := h.membershipSvc.JoinOrCreate(c.Request.Context(), userID, req.Name, req.Public())
	if err != nil {
		HandleError(c, err)
		return
	}
	ch := res.Channel
	HandleSuccess(c, respond.JoinChannelRespond{
		Channel: respond.ChannelListItem{
			ID:           ch.ID,
			Name:         ch.Name,
			IsPublic:     ch.IsPublic,
			ModeratorID:  ch.ModeratorID,
			IsModerator:  ch.ModeratorID == userID,
			Member:       true,
			LastActiveAt: ch.LastActiveAt,
		},
		Created:       res.Created,
		AlreadyMember: res.AlreadyMember,
	})
}

// Show GET /channels/:id
func (h *ChannelHandler) Show(c *gin.Context) {
	userID, channelID, ok := userAndChannel(c)
	if !ok {
		return
	}
	data, err := h.channelSvc.Show(c.Request.Context(), userID, channelID)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Roster GET /channels/:id/users
func (h *ChannelHandler) Roster(c *gin.Context) {
	userID, channelID, ok := userAndChannel(c)
	if !ok {
		return
	}
	data, err := h.channelSvc.Roster(c.Request.Context(), userID, channelID)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Leave POST /channels/:id/leave
// 管理员退出会删除频道
func (h *ChannelHandler) Leave(c *gin.Context) {
	userID, channelID, ok := userAndChannel(c)
	if !ok {
		return
	}
	res, err := h.membershipSvc.Leave(c.Request.Context(), userID, channelID)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.LeaveRespond{Deleted: res.Deleted})
}

// Invite POST /channels/:id/invite
func (h *ChannelHandler) Invite(c *gin.Context) {
	userID, channelID, ok := userAndChannel(c)
	if !ok {
		return
	}
	var req request.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	res, err := h.membershipSvc.Invite(c.Request.Context(), userID, channelID, req.NickName)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.InviteRespond{TargetUserID: res.TargetUserID})
}

// AcceptInvite POST /channels/:id/accept-invite
func (h *ChannelHandler) AcceptInvite(c *gin.Context) {
	userID, channelID, ok := userAndChannel(c)
	if !ok {
		return
	}
	ch, err := h.membershipSvc.Accept(c.Request.Context(), userID, channelID)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.ChannelListItem{
		ID:           ch.ID,
		Name:         ch.Name,
		IsPublic:     ch.IsPublic,
		ModeratorID:  ch.ModeratorID,
		Member:       true,
		LastActiveAt: ch.LastActiveAt,
	})
}

// DeclineInvite POST /channels/:id/decline-invite
func (h *ChannelHandler) DeclineInvite(c *gin.Context) {
	userID, channelID, ok := userAndChannel(c)
	if !ok {
		return
	}
	if err := h.membershipSvc.Decline(c.Request.Context(), userID, channelID); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}

// Revoke DELETE /channels/:id/revoke
func (h *ChannelHandler) Revoke(c *gin.Context) {
	userID, channelID, ok := userAndChannel(c)
	if !ok {
		return
	}
	var req request.TargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	target, err := h.membershipSvc.Revoke(c.Request.Context(), userID, channelID, req.TargetNick)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.InviteRespond{TargetUserID: target})
}

// Kick DELETE /channels/:id/kick
func (h *ChannelHandler) Kick(c *gin.Context) {
	userID, channelID, ok := userAndChannel(c)
	if !ok {
		return
	}
	var req request.TargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	res, err := h.membershipSvc.Kick(c.Request.Context(), userID, channelID, req.TargetNick)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.KickRespond{TargetUserID: res.TargetUserID, Ban: res.Ban})
}

func userAndChannel(c *gin.Context) (uint, uint, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return 0, 0, false
	}
	channelID, ok := pathID(c)
	if !ok {
		return 0, 0, false
	}
	return userID, channelID, true
}
