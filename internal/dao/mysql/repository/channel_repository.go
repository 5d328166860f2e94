package repository

import (
	"time"

	"snack_chat_server/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// channelRepository ChannelRepository 接口的实现
type channelRepository struct {
	db *gorm.DB
}

// NewChannelRepository 创建 ChannelRepository 实例
func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) FindByID(id uint) (*model.Channel, error) {
	var channel model.Channel
	if err := r.db.First(&channel, id).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询频道 id=%d", id)
	}
	return &channel, nil
}

func (r *channelRepository) FindByIDForUpdate(id uint) (*model.Channel, error) {
	var channel model.Channel
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&channel, id).Error; err != nil {
		return nil, wrapDBErrorf(err, "加锁查询频道 id=%d", id)
	}
	return &channel, nil
}

func (r *channelRepository) FindByNameForUpdate(name string) (*model.Channel, error) {
	var channel model.Channel
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("name = ?", name).First(&channel).Error; err != nil {
		return nil, wrapDBErrorf(err, "加锁查询频道 name=%s", name)
	}
	return &channel, nil
}

func (r *channelRepository) Create(name string, moderatorID uint, isPublic bool) (*model.Channel, error) {
	channel := model.Channel{
		Name:         name,
		IsPublic:     isPublic,
		ModeratorID:  moderatorID,
		LastActiveAt: time.Now(),
	}
	if err := r.db.Create(&channel).Error; err != nil {
		return nil, wrapDBErrorf(err, "创建频道 name=%s", name)
	}
	return &channel, nil
}

func (r *channelRepository) Delete(id uint) error {
	if err := r.db.Delete(&model.Channel{}, id).Error; err != nil {
		return wrapDBErrorf(err, "删除频道 id=%d", id)
	}
	return nil
}

func (r *channelRepository) TouchActivity(id uint) error {
	if err := r.db.Model(&model.Channel{}).Where("id = ?", id).Update("last_active_at", time.Now()).Error; err != nil {
		return wrapDBErrorf(err, "更新频道活跃时间 id=%d", id)
	}
	return nil
}

// FindForUser 查询用户作为成员或受邀者的频道，按最近活跃倒序
func (r *channelRepository) FindForUser(userID uint) ([]UserChannel, error) {
	var rows []UserChannel
	if err := r.db.Table("channels").
		Select("channels.id AS channel_id, channels.name, channels.is_public, channels.moderator_id, " +
			"channel_users.invited, channel_users.member, channels.last_active_at").
		Joins("JOIN channel_users ON channel_users.channel_id = channels.id").
		Where("channel_users.user_id = ? AND (channel_users.member = ? OR channel_users.invited = ?)", userID, true, true).
		Order("channels.last_active_at DESC").
		Scan(&rows).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户频道 user_id=%d", userID)
	}
	return rows, nil
}
