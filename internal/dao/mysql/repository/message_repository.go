package repository

import (
	"snack_chat_server/internal/model"

	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息 Repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(channelID, authorID uint, content string) (*model.Message, error) {
	msg := model.Message{
		ChannelID: channelID,
		AuthorID:  authorID,
		Content:   content,
	}
	if err := r.db.Create(&msg).Error; err != nil {
		return nil, wrapDBErrorf(err, "创建消息 channel_id=%d", channelID)
	}
	return &msg, nil
}

// ListPage 倒序取一页后翻转，保证页内按 id 升序
func (r *messageRepository) ListPage(channelID uint, page, pageSize int) ([]MessageWithAuthor, int64, error) {
	var total int64
	if err := r.db.Model(&model.Message{}).Where("channel_id = ?", channelID).Count(&total).Error; err != nil {
		return nil, 0, wrapDBErrorf(err, "统计消息 channel_id=%d", channelID)
	}

	rows := make([]MessageWithAuthor, 0, pageSize)
	if total == 0 {
		return rows, 0, nil
	}
	if err := r.db.Table("messages").
		Select("messages.id, messages.channel_id, messages.created_by AS author_id, messages.content, messages.created_at, " +
			"users.nick AS author_nick, users.name AS author_name, users.last_name AS author_last_name").
		Joins("LEFT JOIN users ON users.id = messages.created_by").
		Where("messages.channel_id = ?", channelID).
		Order("messages.id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Scan(&rows).Error; err != nil {
		return nil, 0, wrapDBErrorf(err, "分页查询消息 channel_id=%d page=%d", channelID, page)
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, total, nil
}

func (r *messageRepository) DeleteByChannel(channelID uint) error {
	if err := r.db.Where("channel_id = ?", channelID).Delete(&model.Message{}).Error; err != nil {
		return wrapDBErrorf(err, "删除频道消息 channel_id=%d", channelID)
	}
	return nil
}
