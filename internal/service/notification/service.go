// Package notification 被 @ 时生成的提醒
package notification

import (
	"context"

	"go.uber.org/zap"

	"snack_chat_server/internal/dao/mysql/repository"
	"snack_chat_server/internal/dto/respond"
	"snack_chat_server/pkg/errorx"
)

const defaultLimit = 50

type Service struct {
	repos *repository.Repositories
}

func NewService(repos *repository.Repositories) *Service {
	return &Service{repos: repos}
}

// List 最新的在前
func (s *Service) List(ctx context.Context, userID uint, onlyUnseen bool, limit int) ([]respond.NotificationRespond, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.repos.WithContext(ctx).Notification.ListByUser(userID, onlyUnseen, limit)
	if err != nil {
		zap.L().Error("list notifications", zap.Uint("user_id", userID), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	out := make([]respond.NotificationRespond, 0, len(rows))
	for _, n := range rows {
		out = append(out, respond.NotificationRespond{
			ID:        n.ID,
			MessageID: n.MessageID,
			ChannelID: n.ChannelID,
			Content:   n.Content,
			Seen:      n.Seen,
			CreatedAt: n.CreatedAt,
		})
	}
	return out, nil
}

// MarkSeen 只能标记自己的提醒
func (s *Service) MarkSeen(ctx context.Context, userID, id uint) error {
	err := s.repos.WithContext(ctx).Notification.MarkSeen(userID, id)
	switch {
	case err == nil:
		return nil
	case errorx.IsNotFound(err):
		return errorx.New(errorx.CodeNotFound, "提醒不存在")
	default:
		zap.L().Error("mark notification seen", zap.Uint("user_id", userID), zap.Uint("id", id), zap.Error(err))
		return errorx.ErrServerBusy
	}
}
