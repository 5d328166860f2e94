// Package presence 在线状态与输入提示，只推送给共同频道的其他成员
package presence

import (
	"context"
	"errors"
	"unicode/utf8"

	"snack_chat_server/internal/config"
	"snack_chat_server/internal/dao/mysql/repository"
	myredis "snack_chat_server/internal/dao/redis"
	"snack_chat_server/internal/service/broadcast"
	"snack_chat_server/pkg/constants"
	"snack_chat_server/pkg/errorx"
	"snack_chat_server/pkg/protocol"

	"go.uber.org/zap"
)

type Service struct {
	repos *repository.Repositories
	cache myredis.CacheService
	bc    *broadcast.Broadcaster
	conf  config.ChatConfig
}

// NewService 输入预览与消息正文使用同一个长度上限
func NewService(repos *repository.Repositories, cache myredis.CacheService, bc *broadcast.Broadcaster, conf config.ChatConfig) *Service {
	if conf.MaxContentLength <= 0 {
		conf.MaxContentLength = constants.MESSAGE_MAX_LENGTH
	}
	return &Service{repos: repos, cache: cache, bc: bc, conf: conf}
}

// ValidStatus 合法的在线状态
func ValidStatus(status string) bool {
	switch status {
	case constants.STATUS_ACTIVE, constants.STATUS_AWAY, constants.STATUS_OFFLINE:
		return true
	}
	return false
}

// SetStatus 持久化后逐个频道推送 userStatusUpdate，发起者自己的设备不推送
// 返回收到推送的连接数
func (s *Service) SetStatus(ctx context.Context, userID uint, status string) (int, error) {
	if !ValidStatus(status) {
		return 0, errorx.Newf(errorx.CodeInvalidParam, "无效的状态 %q", status)
	}
	repos := s.repos.WithContext(ctx)
	if err := repos.User.UpdateStatus(userID, status); err != nil {
		return 0, s.fail("update status", err, zap.Uint("user_id", userID))
	}
	if err := s.cache.Delete(ctx, myredis.UserSummaryKey(userID)); err != nil {
		zap.L().Error("invalidate user summary", zap.Uint("user_id", userID), zap.Error(err))
	}

	channelIDs, err := repos.Membership.ListChannelIDs(userID, repository.FilterMember)
	if err != nil {
		return 0, s.fail("list channels of user", err, zap.Uint("user_id", userID))
	}
	delivered := 0
	for _, channelID := range channelIDs {
		n, err := s.bc.ToMembersExcept(ctx, channelID, userID, protocol.EventUserStatusUpdate, protocol.UserStatusUpdate{
			UserID:    userID,
			Status:    status,
			ChannelID: channelID,
		})
		if err != nil {
			zap.L().Error("broadcast status", zap.Uint("channel_id", channelID), zap.Error(err))
			continue
		}
		delivered += n
	}
	return delivered, nil
}

// Typing 只转发给其他成员，不落库
func (s *Service) Typing(ctx context.Context, userID, channelID uint, isTyping bool, preview string) error {
	repos := s.repos.WithContext(ctx)
	row, err := repos.Membership.Find(userID, channelID)
	if errorx.IsNotFound(err) || (err == nil && !row.Member) {
		return errorx.New(errorx.CodeForbidden, "你不是该频道成员")
	}
	if err != nil {
		return s.fail("find membership", err, zap.Uint("user_id", userID), zap.Uint("channel_id", channelID))
	}
	user, err := repos.User.FindByID(userID)
	if err != nil {
		return s.fail("find user", err, zap.Uint("user_id", userID))
	}

	if utf8.RuneCountInString(preview) > s.conf.MaxContentLength {
		preview = string([]rune(preview)[:s.conf.MaxContentLength])
	}
	if !isTyping {
		preview = ""
	}
	_, err = s.bc.ToMembersExcept(ctx, channelID, userID, protocol.EventUserTyping, protocol.UserTyping{
		ChannelID: channelID,
		UserID:    userID,
		Nick:      user.Nick,
		IsTyping:  isTyping,
		Content:   preview,
	})
	if err != nil {
		return s.fail("broadcast typing", err, zap.Uint("channel_id", channelID))
	}
	return nil
}

func (s *Service) fail(op string, err error, fields ...zap.Field) error {
	var codeErr *errorx.CodeError
	if errors.As(err, &codeErr) && codeErr.Code != errorx.CodeDBError && codeErr.Code != errorx.CodeCacheError {
		return codeErr
	}
	zap.L().Error(op, append(fields, zap.Error(err))...)
	return errorx.ErrServerBusy
}
