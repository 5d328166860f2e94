// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找，并允许用 SNACK_* 环境变量覆盖
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"  // TOML 配置文件解析库
	"github.com/caarlos0/env/v11" // 环境变量覆盖
)

// MainConfig 主配置，包含应用基本信息
type MainConfig struct {
	AppName     string `toml:"appName" env:"SNACK_APP_NAME"`         // 应用名称，用于日志标识等
	Host        string `toml:"host" env:"SNACK_HOST"`                // 服务器监听地址，如 "0.0.0.0"
	Port        int    `toml:"port" env:"SNACK_PORT"`                // 服务器监听端口，如 3333
	Mode        string `toml:"mode" env:"SNACK_MODE"`                // 运行模式：dev / release
	TLSRedirect bool   `toml:"tlsRedirect" env:"SNACK_TLS_REDIRECT"` // 是否启用 HTTP -> HTTPS 重定向
}

// MysqlConfig MySQL 数据库连接配置
type MysqlConfig struct {
	Host         string `toml:"host" env:"SNACK_MYSQL_HOST"`                  // MySQL 服务器地址
	Port         int    `toml:"port" env:"SNACK_MYSQL_PORT"`                  // MySQL 端口，默认 3306
	User         string `toml:"user" env:"SNACK_MYSQL_USER"`                  // 数据库用户名
	Password     string `toml:"password" env:"SNACK_MYSQL_PASSWORD"`          // 数据库密码
	DatabaseName string `toml:"databaseName" env:"SNACK_MYSQL_DATABASE_NAME"` // 数据库名称
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string `toml:"host" env:"SNACK_REDIS_HOST"`         // Redis 服务器地址
	Port     int    `toml:"port" env:"SNACK_REDIS_PORT"`         // Redis 端口，默认 6379
	Password string `toml:"password" env:"SNACK_REDIS_PASSWORD"` // Redis 密码，无密码留空
	Db       int    `toml:"db" env:"SNACK_REDIS_DB"`             // Redis 数据库编号，默认 0
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath" env:"SNACK_LOG_PATH"`       // 日志文件存储目录
	FileName   string `toml:"fileName" env:"SNACK_LOG_FILE_NAME"` // 日志文件名
	MaxSize    int    `toml:"maxSize"`                            // 单个日志文件最大大小（MB）
	MaxBackups int    `toml:"maxBackups"`                         // 保留旧日志文件的最大个数
	MaxAge     int    `toml:"maxAge"`                             // 保留旧日志文件的最大天数
	Level      string `toml:"level" env:"SNACK_LOG_LEVEL"`        // 日志级别：debug, info, warn, error
}

// KafkaConfig Kafka 活动事件配置
// 频道创建/删除、新消息、成员变更会写入 activityTopic，供外部的清理任务消费
type KafkaConfig struct {
	Enabled       bool   `toml:"enabled" env:"SNACK_KAFKA_ENABLED"`    // 关闭时使用空实现
	HostPort      string `toml:"hostPort" env:"SNACK_KAFKA_HOST_PORT"` // Kafka 服务器地址，如 "localhost:9092"
	ActivityTopic string `toml:"activityTopic"`                        // 活动事件主题
	Timeout       int    `toml:"timeout"`                              // 写超时（秒）
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret            string `toml:"secret" env:"SNACK_JWT_SECRET"` // JWT 签名密钥，建议 32 字符以上
	AccessTokenExpiry int    `toml:"accessTokenExpiry"`             // Access Token 有效期（分钟）
}

// WsConfig WebSocket 连接参数
type WsConfig struct {
	SendBuffer     int   `toml:"sendBuffer"`     // 单连接下行缓冲条数，写满即断开慢连接
	WriteWait      int   `toml:"writeWait"`      // 单次写超时（秒）
	PongWait       int   `toml:"pongWait"`       // 等待 pong 超时（秒）
	PingPeriod     int   `toml:"pingPeriod"`     // ping 间隔（秒），需小于 pongWait
	MaxMessageSize int64 `toml:"maxMessageSize"` // 上行单帧最大字节数
}

// ChatConfig 聊天业务参数
type ChatConfig struct {
	PageSize         int `toml:"pageSize"`         // 历史消息默认分页
	MaxPageSize      int `toml:"maxPageSize"`      // 历史消息分页上限
	MaxContentLength int `toml:"maxContentLength"` // 消息正文最大字符数
}

// Config 应用程序总配置，聚合所有子配置
type Config struct {
	MainConfig  `toml:"mainConfig"`  // 主配置
	MysqlConfig `toml:"mysqlConfig"` // MySQL 配置
	RedisConfig `toml:"redisConfig"` // Redis 配置
	LogConfig   `toml:"logConfig"`   // 日志配置
	KafkaConfig `toml:"kafkaConfig"` // Kafka 配置
	JWTConfig   `toml:"jwtConfig"`   // JWT 配置
	WsConfig    `toml:"wsConfig"`    // WebSocket 配置
	ChatConfig  `toml:"chatConfig"`  // 聊天配置
}

// WriteWaitDuration 等辅助方法把秒数配置转成 time.Duration
func (w WsConfig) WriteWaitDuration() time.Duration  { return time.Duration(w.WriteWait) * time.Second }
func (w WsConfig) PongWaitDuration() time.Duration   { return time.Duration(w.PongWait) * time.Second }
func (w WsConfig) PingPeriodDuration() time.Duration { return time.Duration(w.PingPeriod) * time.Second }

// config 全局配置单例，延迟加载
var config *Config

// Default 返回带默认值的配置，配置文件中未出现的字段保持这些值
func Default() *Config {
	return &Config{
		MainConfig:  MainConfig{AppName: "snack_chat_server", Host: "0.0.0.0", Port: 3333, Mode: "dev"},
		MysqlConfig: MysqlConfig{Host: "127.0.0.1", Port: 3306, User: "root", DatabaseName: "snack"},
		RedisConfig: RedisConfig{Host: "127.0.0.1", Port: 6379},
		LogConfig:   LogConfig{LogPath: "./logs", Level: "info"},
		KafkaConfig: KafkaConfig{HostPort: "127.0.0.1:9092", ActivityTopic: "snack_activity", Timeout: 1},
		JWTConfig:   JWTConfig{Secret: "snack-dev-secret-change-me-please!", AccessTokenExpiry: 60 * 24},
		WsConfig:    WsConfig{SendBuffer: 128, WriteWait: 10, PongWait: 60, PingPeriod: 54, MaxMessageSize: 8192},
		ChatConfig:  ChatConfig{PageSize: 30, MaxPageSize: 100, MaxContentLength: 500},
	}
}

// LoadConfig 从多个候选路径加载配置文件，再应用环境变量覆盖
// 按顺序尝试加载，找到第一个可用的配置文件即停止
func LoadConfig(cfg *Config) error {
	// 候选配置文件路径（优先加载本地配置）
	paths := []string{
		"configs/config_local.toml",
		"configs/config.toml",
		"../../configs/config_local.toml", // 从子目录运行时的路径
		"../../configs/config.toml",
	}

	var loaded bool
	for _, path := range paths {
		if _, err := toml.DecodeFile(path, cfg); err == nil {
			loaded = true
			break
		}
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if !loaded {
		return fmt.Errorf("could not find configuration file in any of the search paths")
	}
	return nil
}

// GetConfig 获取全局配置实例（单例模式）
// 首次调用时会自动加载配置文件，找不到文件时使用默认值
func GetConfig() *Config {
	if config == nil {
		config = Default()
		_ = LoadConfig(config)
	}
	return config
}
