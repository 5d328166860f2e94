// Package model 定义数据库实体模型
// 本文件定义用户模型，核心链路只读写 ActivityStatus
package model

import (
	"golang.org/x/crypto/bcrypt" // 密码哈希库
	"gorm.io/gorm"
)

// User 用户模型
// 对应数据库 users 表
type User struct {
	gorm.Model

	// Nick 昵称，全局唯一，@提及和邀请都按昵称解析
	Nick string `gorm:"column:nick;type:varchar(24);uniqueIndex;not null;comment:昵称"`

	Name     string `gorm:"column:name;type:varchar(50);not null;comment:名"`
	LastName string `gorm:"column:last_name;type:varchar(50);not null;comment:姓"`

	Email string `gorm:"column:email;type:varchar(254);uniqueIndex;not null;comment:邮箱"`

	// Password bcrypt 哈希
	Password string `gorm:"column:password;type:varchar(100);not null;comment:密码"`

	// ActivityStatus active / away / offline
	ActivityStatus string `gorm:"column:activity_status;type:varchar(16);not null;comment:在线状态"`

	// RawPassword 明文密码，不入库，在 BeforeSave 中加密
	RawPassword string `gorm:"-" json:"-"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// BeforeSave 将 RawPassword 加密后写入 Password
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.RawPassword == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.RawPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	u.RawPassword = ""
	return nil
}

// CheckPassword 校验明文密码
func (u *User) CheckPassword(plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plaintext)) == nil
}
