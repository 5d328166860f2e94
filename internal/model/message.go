package model

import "time"

// Message 频道消息，创建后不可修改
// ID 自增且单调，客户端以此去重和排序
type Message struct {
	ID        uint      `gorm:"primarykey"`
	ChannelID uint      `gorm:"column:channel_id;index;not null;comment:频道ID"`
	AuthorID  uint      `gorm:"column:created_by;index;not null;comment:发送者ID"`
	Content   string    `gorm:"column:content;type:varchar(2000);not null;comment:消息内容"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// Mention 消息中的 @昵称
type Mention struct {
	ID          uint `gorm:"primarykey"`
	MessageID   uint `gorm:"column:message_id;index;not null"`
	MentionedID uint `gorm:"column:mentioned_id;index;not null"`
	CreatedAt   time.Time
}

func (Mention) TableName() string {
	return "mentions"
}
