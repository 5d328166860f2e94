// Package mysqltest 为测试提供基于 sqlite 内存库的 Repositories
package mysqltest

import (
	"fmt"
	"strings"
	"testing"

	"snack_chat_server/internal/dao/mysql"
	"snack_chat_server/internal/dao/mysql/repository"
	"snack_chat_server/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

// NewRepositories 每个测试一个独立的内存库
// 只开一个连接：事务内必须使用 txRepos，否则会自锁
func NewRepositories(t testing.TB) *repository.Repositories {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := mysql.Open(sqlite.Open(dsn))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return repository.NewRepositories(db)
}

// SeedUser 创建一个测试用户，密码统一为 "secret123"
func SeedUser(t testing.TB, repos *repository.Repositories, nick string) *model.User {
	t.Helper()
	u := &model.User{
		Nick:           nick,
		Name:           strings.ToUpper(nick[:1]) + nick[1:],
		LastName:       "Tester",
		Email:          nick + "@example.com",
		ActivityStatus: "offline",
		RawPassword:    "secret123",
	}
	require.NoError(t, repos.User.Create(u))
	return u
}
