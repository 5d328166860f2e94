// Package protocol 定义 WebSocket 上的 JSON 信封与全部事件
// 客户端命令是封闭集合，进入业务层之前统一经过 validator 校验
package protocol

import "time"

// 客户端 -> 服务端
const (
	EventJoinChannel   = "joinChannel"
	EventLeaveChannel  = "leaveChannel"
	EventSendMessage   = "sendMessage"
	EventTyping        = "typing"
	EventStatusChange  = "statusChange"
	EventInviteUser    = "inviteUser"
	EventAcceptInvite  = "acceptInvite"
	EventDeclineInvite = "declineInvite"
	EventUserRevoked   = "userRevoked"
	EventUserKicked    = "userKicked"
)

// 服务端 -> 客户端
const (
	EventAck                 = "ack"
	EventNewMessage          = "newMessage"
	EventChannelUsersUpdated = "channelUsersUpdated"
	EventUserStatusUpdate    = "userStatusUpdate"
	EventUserTyping          = "userTyping"
	EventChannelDeleted      = "channelDeleted"
	EventUserWasInvited      = "userWasInvited"
	EventUserWasRevoked      = "userWasRevoked"
	EventUserWasKicked       = "userWasKicked"
	EventCommandFailed       = "commandFailed"
)

// Ack 状态
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ==================== 客户端命令 ====================

// Command 客户端命令的封闭集合
type Command interface {
	Event() string
	command()
}

// JoinChannel 订阅频道房间（不改变成员关系）
type JoinChannel struct {
	UserID    uint `json:"userId" validate:"required"`
	ChannelID uint `json:"channelId" validate:"required"`
}

// LeaveChannel 退订频道房间（不改变成员关系）
type LeaveChannel struct {
	ChannelID uint `json:"channelId" validate:"required"`
	UserID    uint `json:"userId"`
}

type OutgoingMessage struct {
	Content string `json:"content" validate:"required"`
}

type SendMessage struct {
	ChannelID uint            `json:"channelId" validate:"required"`
	Message   OutgoingMessage `json:"message"`
}

type Typing struct {
	ChannelID uint   `json:"channelId" validate:"required"`
	IsTyping  bool   `json:"isTyping"`
	Content   string `json:"content"`
}

type StatusChange struct {
	Status string `json:"status" validate:"required,oneof=active away offline"`
}

// InviteUser IsModerator 仅供参考，服务端自行判断
type InviteUser struct {
	ChannelID   uint   `json:"channelId" validate:"required"`
	NickName    string `json:"nickName" validate:"required,max=24"`
	IsModerator bool   `json:"isModerator"`
}

type AcceptInvite struct {
	ChannelID uint `json:"channelId" validate:"required"`
}

type DeclineInvite struct {
	ChannelID uint `json:"channelId" validate:"required"`
	UserID    uint `json:"userId"`
}

type UserRevoked struct {
	MyID       uint   `json:"myId"`
	ChannelID  uint   `json:"channelId" validate:"required"`
	TargetNick string `json:"targetNick" validate:"required,max=24"`
}

type UserKicked struct {
	MyID       uint   `json:"myId"`
	ChannelID  uint   `json:"channelId" validate:"required"`
	TargetNick string `json:"targetNick" validate:"required,max=24"`
}

func (JoinChannel) Event() string   { return EventJoinChannel }
func (LeaveChannel) Event() string  { return EventLeaveChannel }
func (SendMessage) Event() string   { return EventSendMessage }
func (Typing) Event() string        { return EventTyping }
func (StatusChange) Event() string  { return EventStatusChange }
func (InviteUser) Event() string    { return EventInviteUser }
func (AcceptInvite) Event() string  { return EventAcceptInvite }
func (DeclineInvite) Event() string { return EventDeclineInvite }
func (UserRevoked) Event() string   { return EventUserRevoked }
func (UserKicked) Event() string    { return EventUserKicked }

func (JoinChannel) command()   {}
func (LeaveChannel) command()  {}
func (SendMessage) command()   {}
func (Typing) command()        {}
func (StatusChange) command()  {}
func (InviteUser) command()    {}
func (AcceptInvite) command()  {}
func (DeclineInvite) command() {}
func (UserRevoked) command()   {}
func (UserKicked) command()    {}

// ==================== 服务端推送 ====================

// Author 消息发送者摘要
type Author struct {
	ID       uint   `json:"id"`
	Nick     string `json:"nick"`
	Name     string `json:"name"`
	LastName string `json:"lastName"`
}

type MentionDTO struct {
	MentionedID uint   `json:"mentionedId"`
	Nick        string `json:"nick"`
}

// Message newMessage 推送与历史接口共用的消息结构
type Message struct {
	ID          uint         `json:"id"`
	Content     string       `json:"content"`
	CreatedAt   time.Time    `json:"createdAt"`
	ChannelID   uint         `json:"channelId"`
	ChannelName string       `json:"channelName,omitempty"`
	Author      Author       `json:"author"`
	Mentions    []MentionDTO `json:"mentions"`
}

type ChannelUsersUpdated struct {
	ChannelID uint `json:"channelId"`
}

type UserStatusUpdate struct {
	UserID    uint   `json:"userId"`
	Status    string `json:"status"`
	ChannelID uint   `json:"channelId"`
}

type UserTyping struct {
	ChannelID uint   `json:"channelId"`
	UserID    uint   `json:"userId"`
	Nick      string `json:"nick"`
	IsTyping  bool   `json:"isTyping"`
	Content   string `json:"content"`
}

type ChannelDeleted struct {
	ChannelID uint `json:"channelId"`
}

type UserWasInvited struct {
	ChannelID   uint   `json:"channelId"`
	ChannelName string `json:"channelName"`
	InvitedBy   string `json:"invitedBy"`
}

type UserWasRevoked struct {
	ChannelID uint `json:"channelId"`
	UserID    uint `json:"userId"`
}

type UserWasKicked struct {
	ChannelID uint `json:"channelId"`
	UserID    uint `json:"userId"`
}

// CommandFailed 未携带 ackId 的命令失败时推送
type CommandFailed struct {
	Event   string `json:"event"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// ==================== Ack ====================

// OKAck 无附加数据的成功应答
type OKAck struct {
	Status string `json:"status"`
}

type SendMessageAck struct {
	Status  string  `json:"status"`
	SentTo  int     `json:"sentTo"`
	Message Message `json:"message"`
}

// TargetUserAck inviteUser / userRevoked / userKicked 的应答
type TargetUserAck struct {
	Status       string `json:"status"`
	TargetUserID uint   `json:"targetUserId"`
}

// ErrorAck 失败应答，Data 携带冲突时的当前状态
type ErrorAck struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Data    any    `json:"data,omitempty"`
}
