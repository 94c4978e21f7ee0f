package notify

import (
	"context"
	"fmt"
	"time"

	"messenger/internal/protocol"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// 代理上的事件编码
var codec protocol.Codec = protocol.NewJSONCodec()

// LogSink 只记录日志，开发环境使用
type LogSink struct {
	log *zap.SugaredLogger
}

// NewLogSink 创建日志分发器
func NewLogSink(log *zap.SugaredLogger) *LogSink {
	return &LogSink{log: log}
}

// Dispatch 记录事件
func (s *LogSink) Dispatch(_ context.Context, event protocol.Event) error {
	s.log.Infow("消息追加事件",
		"conversation", event.ConversationID,
		"message", event.MessageID,
		"recipient", event.RecipientID,
	)
	return nil
}

// RedisPublisher 通过 Redis PUBLISH 广播事件
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher 创建 Redis 分发器
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Dispatch 发布事件
func (p *RedisPublisher) Dispatch(ctx context.Context, event protocol.Event) error {
	data, err := codec.Encode(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	return p.client.Publish(ctx, p.channel, data).Err()
}

// KafkaPublisher 把事件写入 Kafka，按接收者分区以保证同一接收者的事件有序
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher 创建 Kafka 分发器
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func kafkaMessage(event protocol.Event) (kafka.Message, error) {
	data, err := codec.Encode(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("序列化事件失败: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.RecipientID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(codec.ContentType())},
		},
		Time: time.Now(),
	}, nil
}

// Dispatch 写入事件
func (p *KafkaPublisher) Dispatch(ctx context.Context, event protocol.Event) error {
	msg, err := kafkaMessage(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close 关闭 writer
func (p *KafkaPublisher) Close() error { return p.writer.Close() }
