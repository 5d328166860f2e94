// Package service 定义业务层接口
// 本文件定义所有 Service 接口，供 Handler 层调用
package service

import (
	"context"
	"net/http"

	"snack_chat_server/internal/dto/request"
	"snack_chat_server/internal/dto/respond"
	"snack_chat_server/internal/model"
	"snack_chat_server/internal/service/membership"
	"snack_chat_server/internal/service/message"
	"snack_chat_server/pkg/util/jwt"
)

// UserService 账号相关
type UserService interface {
	// Register 注册并返回 Token
	Register(ctx context.Context, req request.RegisterRequest) (*respond.LoginRespond, error)
	// Login 邮箱密码登录
	Login(ctx context.Context, req request.LoginRequest) (*respond.LoginRespond, error)
	// Logout 注销当前 Token
	Logout(ctx context.Context, claims *jwt.Claims) error
	// Me 当前用户资料
	Me(ctx context.Context, userID uint) (*respond.UserRespond, error)
}

// ChannelService 频道只读查询
type ChannelService interface {
	List(ctx context.Context, userID uint) ([]respond.ChannelListItem, error)
	Show(ctx context.Context, userID, channelID uint) (*respond.ChannelDetail, error)
	Roster(ctx context.Context, userID, channelID uint) ([]respond.RosterItem, error)
}

// MembershipService 成员状态迁移，REST 与 WebSocket 共用
type MembershipService interface {
	JoinOrCreate(ctx context.Context, userID uint, name string, isPublic bool) (*membership.JoinResult, error)
	Invite(ctx context.Context, actorID, channelID uint, nick string) (*membership.InviteResult, error)
	Accept(ctx context.Context, userID, channelID uint) (*model.Channel, error)
	Decline(ctx context.Context, userID, channelID uint) error
	Leave(ctx context.Context, userID, channelID uint) (*membership.LeaveResult, error)
	Revoke(ctx context.Context, actorID, channelID uint, nick string) (uint, error)
	Kick(ctx context.Context, actorID, channelID uint, nick string) (*membership.KickResult, error)
}

// MessageService 消息写入与历史
type MessageService interface {
	Send(ctx context.Context, authorID, channelID uint, content string) (*message.SendResult, error)
	History(ctx context.Context, userID, channelID uint, page, pageSize int) (*respond.MessageListRespond, error)
}

// PresenceService 在线状态
type PresenceService interface {
	SetStatus(ctx context.Context, userID uint, status string) (int, error)
}

// NotificationService 提醒
type NotificationService interface {
	List(ctx context.Context, userID uint, onlyUnseen bool, limit int) ([]respond.NotificationRespond, error)
	MarkSeen(ctx context.Context, userID, id uint) error
}

// ChatGateway WebSocket 入口
type ChatGateway interface {
	Authenticate(ctx context.Context, token string) (uint, error)
	Serve(w http.ResponseWriter, r *http.Request, userID uint)
}
