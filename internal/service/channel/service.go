// Package channel 频道列表、详情与成员名单的只读查询
package channel

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"snack_chat_server/internal/dao/mysql/repository"
	myredis "snack_chat_server/internal/dao/redis"
	"snack_chat_server/internal/dto/respond"
	"snack_chat_server/internal/model"
	"snack_chat_server/pkg/constants"
	"snack_chat_server/pkg/errorx"
	"snack_chat_server/pkg/protocol"
)

type Service struct {
	repos *repository.Repositories
	cache myredis.AsyncCacheService
}

func NewService(repos *repository.Repositories, cache myredis.AsyncCacheService) *Service {
	return &Service{repos: repos, cache: cache}
}

// List 已加入和待接受邀请的频道，按最近活跃倒序
// 成员关系变化时由 membership 同步删除缓存
func (s *Service) List(ctx context.Context, userID uint) ([]respond.ChannelListItem, error) {
	key := myredis.ChannelListKey(userID)
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("read channel list cache", zap.Uint("user_id", userID), zap.Error(err))
	} else if raw != "" {
		var items []respond.ChannelListItem
		if err := json.Unmarshal([]byte(raw), &items); err == nil {
			return items, nil
		}
		zap.L().Error("json unmarshal cache error", zap.String("key", key), zap.Error(err))
	}

	rows, err := s.repos.WithContext(ctx).Channel.FindForUser(userID)
	if err != nil {
		return nil, s.fail("list channels", err, zap.Uint("user_id", userID))
	}
	items := make([]respond.ChannelListItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, respond.ChannelListItem{
			ID:           r.ChannelID,
			Name:         r.Name,
			IsPublic:     r.IsPublic,
			ModeratorID:  r.ModeratorID,
			IsModerator:  r.ModeratorID == userID,
			Invited:      r.Invited && !r.Member,
			Member:       r.Member,
			LastActiveAt: r.LastActiveAt,
		})
	}

	s.cache.SubmitTask(func() {
		jsonBytes, err := json.Marshal(items)
		if err != nil {
			zap.L().Error("json marshal error", zap.Error(err))
			return
		}
		if err := s.cache.Set(context.Background(), key, string(jsonBytes), constants.CHANNEL_LIST_CACHE_TTL); err != nil {
			zap.L().Error("redis set key error", zap.Error(err))
		}
	})
	return items, nil
}

// Show 频道详情；私有频道只对成员和被邀请者可见
func (s *Service) Show(ctx context.Context, userID, channelID uint) (*respond.ChannelDetail, error) {
	repos := s.repos.WithContext(ctx)
	channel, err := s.visible(repos, userID, channelID)
	if err != nil {
		return nil, err
	}
	moderator, err := repos.User.FindByID(channel.ModeratorID)
	if err != nil {
		return nil, s.fail("find moderator", err, zap.Uint("channel_id", channelID))
	}
	count, err := repos.Membership.CountMembers(channelID)
	if err != nil {
		return nil, s.fail("count members", err, zap.Uint("channel_id", channelID))
	}
	return &respond.ChannelDetail{
		ID:       channel.ID,
		Name:     channel.Name,
		IsPublic: channel.IsPublic,
		Moderator: protocol.Author{
			ID:       moderator.ID,
			Nick:     moderator.Nick,
			Name:     moderator.Name,
			LastName: moderator.LastName,
		},
		MembersCount: count,
		LastActiveAt: channel.LastActiveAt,
	}, nil
}

// Roster 正式成员名单，带在线状态和管理员标记
func (s *Service) Roster(ctx context.Context, userID, channelID uint) ([]respond.RosterItem, error) {
	repos := s.repos.WithContext(ctx)
	channel, err := s.visible(repos, userID, channelID)
	if err != nil {
		return nil, err
	}
	rows, err := repos.Membership.FindRoster(channelID)
	if err != nil {
		return nil, s.fail("find roster", err, zap.Uint("channel_id", channelID))
	}
	out := make([]respond.RosterItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, respond.RosterItem{
			ID:             r.UserID,
			Nick:           r.Nick,
			Name:           r.Name,
			LastName:       r.LastName,
			ActivityStatus: r.ActivityStatus,
			IsModerator:    r.UserID == channel.ModeratorID,
		})
	}
	return out, nil
}

func (s *Service) visible(repos *repository.Repositories, userID, channelID uint) (*model.Channel, error) {
	channel, err := repos.Channel.FindByID(channelID)
	if err != nil {
		return nil, s.fail("find channel", err, zap.Uint("channel_id", channelID))
	}
	if channel.IsPublic {
		return channel, nil
	}
	row, err := repos.Membership.Find(userID, channelID)
	if errorx.IsNotFound(err) || (err == nil && !row.Member && !row.Invited) {
		return nil, errorx.New(errorx.CodeForbidden, "无权查看该私有频道")
	}
	if err != nil {
		return nil, s.fail("find membership", err, zap.Uint("user_id", userID), zap.Uint("channel_id", channelID))
	}
	return channel, nil
}

func (s *Service) fail(op string, err error, fields ...zap.Field) error {
	var codeErr *errorx.CodeError
	if errors.As(err, &codeErr) && codeErr.Code != errorx.CodeDBError && codeErr.Code != errorx.CodeCacheError {
		return codeErr
	}
	zap.L().Error(op, append(fields, zap.Error(err))...)
	return errorx.ErrServerBusy
}
