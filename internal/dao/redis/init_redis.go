// Package redis 提供 Redis 缓存操作的封装
// 使用 github.com/redis/go-redis/v9 作为底层客户端
package redis

import (
	"context"
	"strconv"
	"time"

	"snack_chat_server/internal/config"
	"snack_chat_server/pkg/constants"
	"snack_chat_server/pkg/errorx"

	"github.com/redis/go-redis/v9"
)

// Init 根据配置创建 Redis 客户端并探活，返回带 Worker Pool 的缓存服务
func Init(conf *config.RedisConfig) (*RedisCache, error) {
	addr := conf.Host + ":" + strconv.Itoa(conf.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: conf.Password, // 无密码留空
		DB:       conf.Db,
		// 连接池配置
		PoolSize:     50,
		MinIdleConns: constants.CACHE_TASK_WORKERS, // 与 Worker 数量匹配
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errorx.Wrapf(err, errorx.CodeCacheError, "redis ping %s", addr)
	}

	return NewRedisCache(client, constants.CACHE_TASK_WORKERS, constants.CACHE_TASK_BUFFER), nil
}
