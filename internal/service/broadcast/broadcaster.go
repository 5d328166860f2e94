// Package broadcast 把一条推送扇出到用户的全部设备连接
package broadcast

import (
	"context"

	"snack_chat_server/internal/dao/mysql/repository"
	"snack_chat_server/internal/gateway/websocket"
	"snack_chat_server/pkg/protocol"

	"go.uber.org/zap"
)

// Connections Broadcaster 需要的连接查询能力，由 websocket.Registry 实现
type Connections interface {
	ConnectionsOf(userID uint) []websocket.Handle
	ConnectionsOfUsers(userIDs []uint) []websocket.Handle
	RoomConnections(channelID uint) []websocket.Handle
}

// Broadcaster 只负责投递：编码一次，逐个连接非阻塞发送，不重试
type Broadcaster struct {
	repos *repository.Repositories
	conns Connections
}

func NewBroadcaster(repos *repository.Repositories, conns Connections) *Broadcaster {
	return &Broadcaster{repos: repos, conns: conns}
}

// ToMembers 推送给频道全部正式成员的全部连接，返回接收成功的连接数
func (b *Broadcaster) ToMembers(ctx context.Context, channelID uint, event string, data any) (int, error) {
	return b.ToMembersExcept(ctx, channelID, 0, event, data)
}

// ToMembersExcept 同 ToMembers，但跳过 exceptUserID 的所有设备
func (b *Broadcaster) ToMembersExcept(ctx context.Context, channelID, exceptUserID uint, event string, data any) (int, error) {
	ids, err := b.repos.WithContext(ctx).Membership.ListUserIDs(channelID, repository.FilterMember)
	if err != nil {
		return 0, err
	}
	if exceptUserID != 0 {
		kept := ids[:0]
		for _, id := range ids {
			if id != exceptUserID {
				kept = append(kept, id)
			}
		}
		ids = kept
	}
	return b.ToUsers(ids, event, data), nil
}

// ToUsers 推送给指定用户的全部连接
func (b *Broadcaster) ToUsers(userIDs []uint, event string, data any) int {
	if len(userIDs) == 0 {
		return 0
	}
	return b.send(b.conns.ConnectionsOfUsers(userIDs), event, data)
}

// ToUser 推送给单个用户的全部连接
func (b *Broadcaster) ToUser(userID uint, event string, data any) int {
	return b.send(b.conns.ConnectionsOf(userID), event, data)
}

// ToRoom 推送给订阅了频道房间的连接
func (b *Broadcaster) ToRoom(channelID uint, event string, data any) int {
	return b.send(b.conns.RoomConnections(channelID), event, data)
}

func (b *Broadcaster) send(handles []websocket.Handle, event string, data any) int {
	if len(handles) == 0 {
		return 0
	}
	payload, err := protocol.Encode(event, data)
	if err != nil {
		zap.L().Error("encode push", zap.String("event", event), zap.Error(err))
		return 0
	}
	delivered := 0
	for _, h := range handles {
		// 单个连接失败不影响其他连接
		if err := h.Send(payload); err != nil {
			zap.L().Debug("push dropped", zap.String("event", event), zap.String("conn_id", h.ID()), zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}
