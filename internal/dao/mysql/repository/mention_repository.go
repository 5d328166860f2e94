package repository

import (
	"snack_chat_server/internal/model"

	"gorm.io/gorm"
)

type mentionRepository struct {
	db *gorm.DB
}

// NewMentionRepository 创建提及 Repository
func NewMentionRepository(db *gorm.DB) MentionRepository {
	return &mentionRepository{db: db}
}

func (r *mentionRepository) Create(messageID, mentionedID uint) error {
	if err := r.db.Create(&model.Mention{MessageID: messageID, MentionedID: mentionedID}).Error; err != nil {
		return wrapDBErrorf(err, "创建提及 message_id=%d mentioned_id=%d", messageID, mentionedID)
	}
	return nil
}

func (r *mentionRepository) ListByMessageIDs(messageIDs []uint) ([]MentionWithNick, error) {
	rows := make([]MentionWithNick, 0)
	if len(messageIDs) == 0 {
		return rows, nil
	}
	if err := r.db.Table("mentions").
		Select("mentions.message_id, mentions.mentioned_id, users.nick").
		Joins("JOIN users ON users.id = mentions.mentioned_id").
		Where("mentions.message_id IN ?", messageIDs).
		Order("mentions.id").
		Scan(&rows).Error; err != nil {
		return nil, wrapDBError(err, "批量查询提及")
	}
	return rows, nil
}

func (r *mentionRepository) DeleteByChannel(channelID uint) error {
	sub := r.db.Model(&model.Message{}).Select("id").Where("channel_id = ?", channelID)
	if err := r.db.Where("message_id IN (?)", sub).Delete(&model.Mention{}).Error; err != nil {
		return wrapDBErrorf(err, "删除频道提及 channel_id=%d", channelID)
	}
	return nil
}
