package respond

import "time"

// NotificationRespond 被 @ 的提醒
type NotificationRespond struct {
	ID        uint      `json:"id"`
	MessageID uint      `json:"messageId"`
	ChannelID uint      `json:"channelId"`
	Content   string    `json:"content"`
	Seen      bool      `json:"seen"`
	CreatedAt time.Time `json:"createdAt"`
}
