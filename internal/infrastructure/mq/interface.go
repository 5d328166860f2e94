// Package mq 发布频道活动事件，供外部清理任务（如 30 天未活跃频道清理）消费
package mq

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// 活动事件类型
const (
	ActivityChannelCreated    = "channel_created"
	ActivityChannelDeleted    = "channel_deleted"
	ActivityMessageCreated    = "message_created"
	ActivityMembershipChanged = "membership_changed"
)

// ActivityEvent 一条活动事件
type ActivityEvent struct {
	Type      string    `json:"type"`
	ChannelID uint      `json:"channelId"`
	UserID    uint      `json:"userId,omitempty"`
	MessageID uint      `json:"messageId,omitempty"`
	State     string    `json:"state,omitempty"` // membership_changed 时的新状态
	At        time.Time `json:"at"`
}

// Key 按频道分区，同一频道的事件保持顺序
func (e ActivityEvent) Key() []byte {
	return []byte(strconv.FormatUint(uint64(e.ChannelID), 10))
}

func (e ActivityEvent) Value() ([]byte, error) {
	return json.Marshal(e)
}

// ActivityPublisher 活动事件发布接口
// 发布失败不影响业务，实现方只记录日志
type ActivityPublisher interface {
	Publish(ctx context.Context, event ActivityEvent)
	Close() error
}

// NopPublisher 未启用 Kafka 时使用
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ActivityEvent) {}
func (NopPublisher) Close() error                           { return nil }
