package model

import "time"

// Notification 被 @ 的成员收到的持久化提醒
type Notification struct {
	ID        uint      `gorm:"primarykey"`
	UserID    uint      `gorm:"column:user_id;index;not null;comment:接收者"`
	MessageID uint      `gorm:"column:message_id;index;not null"`
	ChannelID uint      `gorm:"column:channel_id;index;not null"`
	Content   string    `gorm:"column:content;type:varchar(255);not null;comment:提醒摘要"`
	Seen      bool      `gorm:"column:seen;not null;comment:是否已读"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Notification) TableName() string {
	return "notifications"
}
