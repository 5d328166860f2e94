package model

import "gorm.io/gorm"

// AutoMigrate 创建或更新全部业务表
// 不会删除已有字段或数据
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},         // 用户表
		&Channel{},      // 频道表
		&ChannelUser{},  // 成员关系表
		&Message{},      // 消息表
		&Mention{},      // 提及表
		&Notification{}, // 提醒表
	)
}
