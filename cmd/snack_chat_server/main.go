package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"snack_chat_server/internal/config"
	dao "snack_chat_server/internal/dao/mysql"
	myredis "snack_chat_server/internal/dao/redis"
	"snack_chat_server/internal/gateway/websocket"
	"snack_chat_server/internal/handler"
	"snack_chat_server/internal/https_server"
	"snack_chat_server/internal/infrastructure/logger"
	"snack_chat_server/internal/infrastructure/mq"
	"snack_chat_server/internal/router"
	"snack_chat_server/internal/service"
	"snack_chat_server/pkg/util/jwt"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.Default()
	if err := config.LoadConfig(conf); err != nil {
		log.Printf("load config: %v, using defaults", err)
	}

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, conf.MainConfig.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer func() { _ = zap.L().Sync() }()
	zap.L().Info("日志初始化成功")

	// 3. 初始化数据库
	repos, err := dao.Init(&conf.MysqlConfig)
	if err != nil {
		zap.L().Fatal("数据库初始化失败", zap.Error(err))
	}
	zap.L().Info("数据库初始化成功")

	// 4. 初始化 Redis
	cache, err := myredis.Init(&conf.RedisConfig)
	if err != nil {
		zap.L().Fatal("Redis 初始化失败", zap.Error(err))
	}
	defer func() { _ = cache.Close() }()
	zap.L().Info("Redis 初始化成功")

	// 5. 初始化 JWT
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry)

	// 6. 活动事件发布，Kafka 不可用时只记录日志
	if conf.KafkaConfig.Enabled {
		if err := mq.EnsureTopic(conf.KafkaConfig, 1); err != nil {
			zap.L().Warn("创建 Kafka 主题失败", zap.Error(err))
		}
	}
	publisher := mq.NewPublisher(conf.KafkaConfig)
	defer func() { _ = publisher.Close() }()

	// 7. 初始化连接登记表和 Service 层 (依赖注入)
	registry := websocket.NewRegistry()
	services := service.NewServices(conf, repos, cache, registry, publisher)
	zap.L().Info("Service 层初始化成功")

	// 8. 初始化 HTTP 服务器
	if err := handler.InitTrans("zh"); err != nil {
		zap.L().Warn("init validator trans failed", zap.Error(err))
	}
	rt := router.NewRouter(handler.NewHandlers(services), cache)
	engine := https_server.Init(rt, conf.MainConfig)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler: engine,
	}
	go func() {
		zap.L().Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()

	// 设置信号监听
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.L().Info("关闭服务器...")
	// 先断开长连接，Shutdown 不会等待被劫持的 WebSocket 连接
	registry.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Error("server shutdown", zap.Error(err))
	}
	zap.L().Info("服务器已关闭")
}
