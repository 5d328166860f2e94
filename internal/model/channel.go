package model

import "time"

// Channel 频道
// 不使用 gorm.Model 的软删除：管理员退出时频道连同消息、成员关系一起物理删除，名称可被重新创建
type Channel struct {
	ID           uint      `gorm:"primarykey"`
	Name         string    `gorm:"column:name;type:varchar(50);uniqueIndex;not null;comment:频道名"`
	IsPublic     bool      `gorm:"column:is_public;not null;comment:是否公开"`
	ModeratorID  uint      `gorm:"column:moderator_id;index;not null;comment:频道管理员"`
	LastActiveAt time.Time `gorm:"column:last_active_at;index;comment:最近活跃时间"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Channel) TableName() string {
	return "channels"
}
