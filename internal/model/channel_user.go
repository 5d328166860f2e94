package model

import "time"

// ChannelUser 用户-频道成员关系，(user_id, channel_id) 唯一
// invited / member 两个布尔独立持久化，Ban 为 0~3 的封禁计数
// 布尔字段不设数据库默认值，否则 gorm 创建时会跳过 false 零值
type ChannelUser struct {
	ID        uint `gorm:"primarykey"`
	UserID    uint `gorm:"column:user_id;uniqueIndex:idx_channel_user_pair;not null;comment:用户ID"`
	ChannelID uint `gorm:"column:channel_id;uniqueIndex:idx_channel_user_pair;index;not null;comment:频道ID"`
	Invited   bool `gorm:"column:invited;not null;comment:是否待接受邀请"`
	Member    bool `gorm:"column:member;not null;comment:是否正式成员"`
	Ban       int  `gorm:"column:ban;not null;comment:封禁计数0-3"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ChannelUser) TableName() string {
	return "channel_users"
}
