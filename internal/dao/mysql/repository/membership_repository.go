// Package repository 提供数据访问层的具体实现
// 本文件实现 MembershipRepository 接口，处理 channel_users 表
package repository

import (
	"snack_chat_server/internal/model"
	"snack_chat_server/pkg/constants"
	"snack_chat_server/pkg/errorx"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// membershipRepository MembershipRepository 接口的实现
type membershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository 创建 MembershipRepository 实例
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) Find(userID, channelID uint) (*model.ChannelUser, error) {
	var row model.ChannelUser
	if err := r.db.Where("user_id = ? AND channel_id = ?", userID, channelID).First(&row).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询成员关系 user_id=%d channel_id=%d", userID, channelID)
	}
	return &row, nil
}

// FindForUpdate SELECT ... FOR UPDATE，读到的是最新已提交的行
func (r *membershipRepository) FindForUpdate(userID, channelID uint) (*model.ChannelUser, error) {
	var row model.ChannelUser
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND channel_id = ?", userID, channelID).
		First(&row).Error; err != nil {
		return nil, wrapDBErrorf(err, "加锁查询成员关系 user_id=%d channel_id=%d", userID, channelID)
	}
	return &row, nil
}

// Upsert 单条语句完成插入或整行覆盖，不会出现部分写入
func (r *membershipRepository) Upsert(userID, channelID uint, state MembershipState) error {
	if state.Ban < 0 || state.Ban > constants.MAX_BAN {
		return errorx.Newf(errorx.CodeInvalidParam, "封禁计数越界 ban=%d", state.Ban)
	}
	row := model.ChannelUser{
		UserID:    userID,
		ChannelID: channelID,
		Invited:   state.Invited,
		Member:    state.Member,
		Ban:       state.Ban,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "channel_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"invited", "member", "ban", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return wrapDBErrorf(err, "写入成员关系 user_id=%d channel_id=%d", userID, channelID)
	}
	return nil
}

func (r *membershipRepository) filtered(filter MembershipFilter) *gorm.DB {
	q := r.db.Model(&model.ChannelUser{})
	switch filter {
	case FilterInvited:
		return q.Where("invited = ? AND member = ?", true, false)
	default:
		return q.Where("member = ?", true)
	}
}

func (r *membershipRepository) ListUserIDs(channelID uint, filter MembershipFilter) ([]uint, error) {
	ids := make([]uint, 0)
	if err := r.filtered(filter).Where("channel_id = ?", channelID).Order("user_id").Pluck("user_id", &ids).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询频道成员 channel_id=%d", channelID)
	}
	return ids, nil
}

func (r *membershipRepository) ListChannelIDs(userID uint, filter MembershipFilter) ([]uint, error) {
	ids := make([]uint, 0)
	if err := r.filtered(filter).Where("user_id = ?", userID).Order("channel_id").Pluck("channel_id", &ids).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户所在频道 user_id=%d", userID)
	}
	return ids, nil
}

func (r *membershipRepository) CountMembers(channelID uint) (int64, error) {
	var n int64
	if err := r.filtered(FilterMember).Where("channel_id = ?", channelID).Count(&n).Error; err != nil {
		return 0, wrapDBErrorf(err, "统计频道成员 channel_id=%d", channelID)
	}
	return n, nil
}

// FindRoster 关联 users 表获取成员资料
func (r *membershipRepository) FindRoster(channelID uint) ([]RosterEntry, error) {
	roster := make([]RosterEntry, 0)
	if err := r.db.Table("channel_users").
		Select("users.id AS user_id, users.nick, users.name, users.last_name, users.activity_status").
		Joins("JOIN users ON users.id = channel_users.user_id").
		Where("channel_users.channel_id = ? AND channel_users.member = ?", channelID, true).
		Order("users.nick").
		Scan(&roster).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询频道名单 channel_id=%d", channelID)
	}
	return roster, nil
}

func (r *membershipRepository) DeleteByChannel(channelID uint) error {
	if err := r.db.Where("channel_id = ?", channelID).Delete(&model.ChannelUser{}).Error; err != nil {
		return wrapDBErrorf(err, "删除频道成员关系 channel_id=%d", channelID)
	}
	return nil
}
