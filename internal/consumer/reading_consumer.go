package consumer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler 处理一条 Kafka 消息
// 返回错误只记录日志，不阻塞后续消息（at-least-once 语义下由处理方保证幂等）
type MessageHandler func(ctx context.Context, payload []byte, receivedAt time.Time) error

// ReadingConsumer Kafka 消费循环
// 从指定主题顺序读取消息并交给处理函数
type ReadingConsumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	topic   string
	logger  *zap.Logger
}

// NewReadingConsumer 创建 Kafka 消费者
func NewReadingConsumer(
	brokers, topic, groupID string,
	handler MessageHandler,
	logger *zap.Logger,
) (*ReadingConsumer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic cannot be empty")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka group id cannot be empty")
	}

	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokerList,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	logger.Info("Kafka consumer configured",
		zap.Strings("brokers", brokerList),
		zap.String("topic", topic),
		zap.String("group_id", groupID),
	)

	return &ReadingConsumer{
		reader:  reader,
		handler: handler,
		topic:   topic,
		logger:  logger,
	}, nil
}

// Run 阻塞消费直到 ctx 取消
func (c *ReadingConsumer) Run(ctx context.Context) error {
	c.logger.Info("Starting Kafka consume loop", zap.String("topic", c.topic))

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("Kafka consume loop stopped", zap.String("topic", c.topic))
				return nil
			}
			c.logger.Error("Failed to read Kafka message",
				zap.String("topic", c.topic),
				zap.Error(err),
			)
			continue
		}

		if err := c.handler(ctx, msg.Value, msg.Time); err != nil {
			// 处理失败的消息不重试：记录后继续，由上游重发或下一条采样修复
			c.logger.Error("Failed to process message",
				zap.String("topic", c.topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}

// Close 关闭底层 reader
func (c *ReadingConsumer) Close() error {
	c.logger.Info("Closing Kafka consumer", zap.String("topic", c.topic))
	return c.reader.Close()
}
