// Package service 提供业务逻辑层
// 本文件实现 Service 层的依赖注入和聚合
package service

import (
	"snack_chat_server/internal/config"
	"snack_chat_server/internal/dao/mysql/repository"
	myredis "snack_chat_server/internal/dao/redis"
	"snack_chat_server/internal/gateway/websocket"
	"snack_chat_server/internal/infrastructure/mq"
	"snack_chat_server/internal/service/broadcast"
	"snack_chat_server/internal/service/channel"
	"snack_chat_server/internal/service/chat"
	"snack_chat_server/internal/service/membership"
	"snack_chat_server/internal/service/message"
	"snack_chat_server/internal/service/notification"
	"snack_chat_server/internal/service/presence"
	"snack_chat_server/internal/service/user"
)

// Services 聚合所有 Service 实例
// 作为依赖注入的入口，Handler 层通过此结构访问各个 Service
type Services struct {
	User         UserService
	Channel      ChannelService
	Membership   MembershipService
	Message      MessageService
	Presence     PresenceService
	Notification NotificationService
	Chat         ChatGateway
}

// NewServices 创建并注入所有 Service 实例
// 依赖注入流程：
//  1. 用 Registry 与 Repository 构造 Broadcaster
//  2. 创建各个业务 Service
//  3. 把业务 Service 注入 WebSocket 网关
func NewServices(conf *config.Config, repos *repository.Repositories, cache myredis.AsyncCacheService,
	registry *websocket.Registry, publisher mq.ActivityPublisher) *Services {
	bc := broadcast.NewBroadcaster(repos, registry)

	membershipSvc := membership.NewService(repos, cache, bc, registry, publisher)
	messageSvc := message.NewService(repos, bc, publisher, conf.ChatConfig)
	presenceSvc := presence.NewService(repos, cache, bc, conf.ChatConfig)

	gateway := chat.NewGateway(chat.Deps{
		Repos:      repos,
		Cache:      cache,
		Registry:   registry,
		BC:         bc,
		Membership: membershipSvc,
		Messages:   messageSvc,
		Presence:   presenceSvc,
		Conf:       conf.WsConfig,
	})

	return &Services{
		User:         user.NewUserService(repos, cache),
		Channel:      channel.NewService(repos, cache),
		Membership:   membershipSvc,
		Message:      messageSvc,
		Presence:     presenceSvc,
		Notification: notification.NewService(repos),
		Chat:         gateway,
	}
}
