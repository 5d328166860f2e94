package repository

import (
	"snack_chat_server/internal/model"

	"gorm.io/gorm"
)

// userRepository UserRepository 接口的实现
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建 UserRepository 实例
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户 id=%d", id)
	}
	return &user, nil
}

func (r *userRepository) FindByIDs(ids []uint) ([]model.User, error) {
	var users []model.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, wrapDBError(err, "批量查询用户")
	}
	return users, nil
}

func (r *userRepository) FindByNick(nick string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("nick = ?", nick).First(&user).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户 nick=%s", nick)
	}
	return &user, nil
}

func (r *userRepository) FindByNicks(nicks []string) ([]model.User, error) {
	var users []model.User
	if len(nicks) == 0 {
		return users, nil
	}
	if err := r.db.Where("nick IN ?", nicks).Find(&users).Error; err != nil {
		return nil, wrapDBError(err, "批量按昵称查询用户")
	}
	return users, nil
}

func (r *userRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户 email=%s", email)
	}
	return &user, nil
}

func (r *userRepository) Create(user *model.User) error {
	if err := r.db.Create(user).Error; err != nil {
		return wrapDBError(err, "创建用户")
	}
	return nil
}

// UpdateStatus 更新在线状态，用户不存在返回 CodeNotFound
func (r *userRepository) UpdateStatus(id uint, status string) error {
	res := r.db.Model(&model.User{}).Where("id = ?", id).Update("activity_status", status)
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "更新用户状态 id=%d", id)
	}
	if res.RowsAffected == 0 {
		return wrapDBErrorf(gorm.ErrRecordNotFound, "更新用户状态 id=%d", id)
	}
	return nil
}
