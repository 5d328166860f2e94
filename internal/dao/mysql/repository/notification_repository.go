package repository

import (
	"snack_chat_server/internal/model"

	"gorm.io/gorm"
)

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建提醒 Repository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(n *model.Notification) error {
	if err := r.db.Create(n).Error; err != nil {
		return wrapDBErrorf(err, "创建提醒 user_id=%d message_id=%d", n.UserID, n.MessageID)
	}
	return nil
}

func (r *notificationRepository) ListByUser(userID uint, onlyUnseen bool, limit int) ([]model.Notification, error) {
	list := make([]model.Notification, 0)
	q := r.db.Where("user_id = ?", userID)
	if onlyUnseen {
		q = q.Where("seen = ?", false)
	}
	if err := q.Order("id DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询提醒 user_id=%d", userID)
	}
	return list, nil
}

func (r *notificationRepository) MarkSeen(userID, id uint) error {
	res := r.db.Model(&model.Notification{}).Where("id = ? AND user_id = ?", id, userID).Update("seen", true)
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "标记提醒已读 id=%d", id)
	}
	if res.RowsAffected == 0 {
		return wrapDBErrorf(gorm.ErrRecordNotFound, "提醒不存在 id=%d", id)
	}
	return nil
}

func (r *notificationRepository) DeleteByChannel(channelID uint) error {
	if err := r.db.Where("channel_id = ?", channelID).Delete(&model.Notification{}).Error; err != nil {
		return wrapDBErrorf(err, "删除频道提醒 channel_id=%d", channelID)
	}
	return nil
}
