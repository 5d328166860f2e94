// Package repository 定义数据访问层接口和聚合结构
// 采用 Repository 模式将数据访问逻辑与业务逻辑分离
// 所有 Repository 接口在此文件定义，具体实现在各自的文件中
package repository

import (
	"context"
	"time"

	"snack_chat_server/internal/model"

	"gorm.io/gorm"
)

// ==================== 复合结构 ====================

// MembershipFilter 成员关系筛选条件
type MembershipFilter int

const (
	FilterMember  MembershipFilter = iota + 1 // member = true
	FilterInvited                             // invited = true 且 member = false
)

// MembershipState 一次成员关系写入的完整取值
type MembershipState struct {
	Invited bool
	Member  bool
	Ban     int
}

// RosterEntry 频道成员名单中的一行（含用户资料）
type RosterEntry struct {
	UserID         uint   `json:"id"`
	Nick           string `json:"nick"`
	Name           string `json:"name"`
	LastName       string `json:"lastName"`
	ActivityStatus string `json:"activityStatus"`
}

// UserChannel 用户视角的频道列表项
type UserChannel struct {
	ChannelID    uint
	Name         string
	IsPublic     bool
	ModeratorID  uint
	Invited      bool
	Member       bool
	LastActiveAt time.Time
}

// MessageWithAuthor 历史消息（含发送者资料）
type MessageWithAuthor struct {
	ID             uint
	ChannelID      uint
	AuthorID       uint
	Content        string
	CreatedAt      time.Time
	AuthorNick     string
	AuthorName     string
	AuthorLastName string
}

// MentionWithNick 提及记录（含被提及者昵称）
type MentionWithNick struct {
	MessageID   uint
	MentionedID uint
	Nick        string
}

// ==================== Repository 接口定义 ====================

// UserRepository 用户数据访问接口
type UserRepository interface {
	// FindByID 根据主键查找用户
	FindByID(id uint) (*model.User, error)
	// FindByIDs 批量查找用户
	FindByIDs(ids []uint) ([]model.User, error)
	// FindByNick 根据昵称查找用户
	FindByNick(nick string) (*model.User, error)
	// FindByNicks 批量按昵称查找，不存在的昵称直接忽略
	FindByNicks(nicks []string) ([]model.User, error)
	// FindByEmail 根据邮箱查找用户
	FindByEmail(email string) (*model.User, error)
	// Create 创建新用户
	Create(user *model.User) error
	// UpdateStatus 更新在线状态
	UpdateStatus(id uint, status string) error
}

// ChannelRepository 频道数据访问接口
type ChannelRepository interface {
	FindByID(id uint) (*model.Channel, error)
	// FindByIDForUpdate 事务内加行锁读取
	FindByIDForUpdate(id uint) (*model.Channel, error)
	// FindByNameForUpdate 事务内按名称加锁读取
	FindByNameForUpdate(name string) (*model.Channel, error)
	// Create 创建频道，重名返回 CodeConflict
	Create(name string, moderatorID uint, isPublic bool) (*model.Channel, error)
	// Delete 仅删除频道行，级联清理见 Repositories.DeleteChannelCascade
	Delete(id uint) error
	// TouchActivity 更新最近活跃时间
	TouchActivity(id uint) error
	// FindForUser 用户已加入或被邀请的频道
	FindForUser(userID uint) ([]UserChannel, error)
}

// MembershipRepository 成员关系数据访问接口
// 只提供按 (userID, channelID) 的类型化读写，不包含任何业务判断
type MembershipRepository interface {
	// Find 读取成员关系，不存在返回 CodeNotFound
	Find(userID, channelID uint) (*model.ChannelUser, error)
	// FindForUpdate 事务内加行锁读取，用于判断状态迁移是否合法
	FindForUpdate(userID, channelID uint) (*model.ChannelUser, error)
	// Upsert 按 (user_id, channel_id) 写入完整状态
	Upsert(userID, channelID uint, state MembershipState) error
	// ListUserIDs 按筛选条件列出频道内用户
	ListUserIDs(channelID uint, filter MembershipFilter) ([]uint, error)
	// ListChannelIDs 按筛选条件列出用户所在频道
	ListChannelIDs(userID uint, filter MembershipFilter) ([]uint, error)
	// CountMembers 正式成员数
	CountMembers(channelID uint) (int64, error)
	// FindRoster 正式成员名单
	FindRoster(channelID uint) ([]RosterEntry, error)
	// DeleteByChannel 删除频道的全部成员关系
	DeleteByChannel(channelID uint) error
}

// MessageRepository 消息数据访问接口
type MessageRepository interface {
	// Create 持久化一条消息
	Create(channelID, authorID uint, content string) (*model.Message, error)
	// ListPage 第 1 页为最新的 pageSize 条，页内按 id 升序；同时返回总数
	ListPage(channelID uint, page, pageSize int) ([]MessageWithAuthor, int64, error)
	// DeleteByChannel 删除频道全部消息
	DeleteByChannel(channelID uint) error
}

// MentionRepository 提及数据访问接口
type MentionRepository interface {
	Create(messageID, mentionedID uint) error
	ListByMessageIDs(messageIDs []uint) ([]MentionWithNick, error)
	// DeleteByChannel 删除频道内消息的全部提及
	DeleteByChannel(channelID uint) error
}

// NotificationRepository 提醒数据访问接口
type NotificationRepository interface {
	Create(n *model.Notification) error
	ListByUser(userID uint, onlyUnseen bool, limit int) ([]model.Notification, error)
	// MarkSeen 标记已读，不属于该用户或不存在返回 CodeNotFound
	MarkSeen(userID, id uint) error
	DeleteByChannel(channelID uint) error
}

// ==================== Repository 聚合 ====================

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	db           *gorm.DB
	User         UserRepository
	Channel      ChannelRepository
	Membership   MembershipRepository
	Message      MessageRepository
	Mention      MentionRepository
	Notification NotificationRepository
}

// NewRepositories 创建所有 Repository 实例
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:           db,
		User:         NewUserRepository(db),
		Channel:      NewChannelRepository(db),
		Membership:   NewMembershipRepository(db),
		Message:      NewMessageRepository(db),
		Mention:      NewMentionRepository(db),
		Notification: NewNotificationRepository(db),
	}
}

// WithContext 返回绑定请求上下文的 Repositories，上下文取消时查询随之中断
func (r *Repositories) WithContext(ctx context.Context) *Repositories {
	return NewRepositories(r.db.WithContext(ctx))
}

// Transaction 在数据库事务中执行函数
// 事务内的所有操作要么全部成功，要么全部回滚
func (r *Repositories) Transaction(fn func(txRepos *Repositories) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// DeleteChannelCascade 删除频道及其提醒、提及、消息、成员关系
// 应在事务内调用（txRepos.DeleteChannelCascade）
func (r *Repositories) DeleteChannelCascade(channelID uint) error {
	if err := r.Notification.DeleteByChannel(channelID); err != nil {
		return err
	}
	if err := r.Mention.DeleteByChannel(channelID); err != nil {
		return err
	}
	if err := r.Message.DeleteByChannel(channelID); err != nil {
		return err
	}
	if err := r.Membership.DeleteByChannel(channelID); err != nil {
		return err
	}
	return r.Channel.Delete(channelID)
}
