package respond

import (
	"time"

	"snack_chat_server/pkg/protocol"
)

// ChannelListItem 用户的频道列表项，包含待接受的邀请
// 使用位置:
//   - internal/service/channel/service.go: List
type ChannelListItem struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	IsPublic     bool      `json:"isPublic"`
	ModeratorID  uint      `json:"moderatorId"`
	IsModerator  bool      `json:"isModerator"`
	Invited      bool      `json:"invited"`
	Member       bool      `json:"member"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// ChannelDetail 频道详情
type ChannelDetail struct {
	ID           uint            `json:"id"`
	Name         string          `json:"name"`
	IsPublic     bool            `json:"isPublic"`
	Moderator    protocol.Author `json:"moderator"`
	MembersCount int64           `json:"membersCount"`
	LastActiveAt time.Time       `json:"lastActiveAt"`
}

// JoinChannelRespond 加入或创建的结果
type JoinChannelRespond struct {
	Channel       ChannelListItem `json:"channel"`
	Created       bool            `json:"created"`
	AlreadyMember bool            `json:"alreadyMember"`
}

// RosterItem 频道成员
type RosterItem struct {
	ID             uint   `json:"id"`
	Nick           string `json:"nick"`
	Name           string `json:"name"`
	LastName       string `json:"lastName"`
	ActivityStatus string `json:"activityStatus"`
	IsModerator    bool   `json:"isModerator"`
}

// InviteRespond 邀请结果
type InviteRespond struct {
	TargetUserID uint `json:"targetUserId"`
}

// KickRespond 踢出结果
type KickRespond struct {
	TargetUserID uint `json:"targetUserId"`
	Ban          int  `json:"ban"`
}

// LeaveRespond 退出结果，管理员退出时 Deleted 为 true
type LeaveRespond struct {
	Deleted bool `json:"deleted"`
}
