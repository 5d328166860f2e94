package mq

import (
	"context"
	"time"

	myconfig "snack_chat_server/internal/config"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter kafka.Writer 中本包用到的部分，便于测试替换
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 基于 kafka-go 的活动事件发布者
// Writer 为异步模式，WriteMessages 不等待 broker 确认
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher 按配置创建 Writer
func NewKafkaPublisher(conf myconfig.KafkaConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(conf.HostPort),
		Topic:                  conf.ActivityTopic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           time.Duration(conf.Timeout) * time.Second,
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				zap.L().Warn("publish activity failed", zap.Int("count", len(messages)), zap.Error(err))
			}
		},
	}
	return &KafkaPublisher{writer: writer}
}

// NewPublisher 根据 kafkaConfig.enabled 选择实现
func NewPublisher(conf myconfig.KafkaConfig) ActivityPublisher {
	if !conf.Enabled {
		return NopPublisher{}
	}
	return NewKafkaPublisher(conf)
}

func (k *KafkaPublisher) Publish(ctx context.Context, event ActivityEvent) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	value, err := event.Value()
	if err != nil {
		zap.L().Error("marshal activity event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	// 请求结束后事件仍需发出，不继承请求的取消信号
	if err := k.writer.WriteMessages(context.WithoutCancel(ctx), kafka.Message{
		Key:   event.Key(),
		Value: value,
	}); err != nil {
		zap.L().Warn("write activity event", zap.String("type", event.Type), zap.Uint("channel_id", event.ChannelID), zap.Error(err))
	}
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

// EnsureTopic 主题不存在时创建
func EnsureTopic(conf myconfig.KafkaConfig, partitions int) error {
	conn, err := kafka.Dial("tcp", conf.HostPort)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.CreateTopics(kafka.TopicConfig{
		Topic:             conf.ActivityTopic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
}
