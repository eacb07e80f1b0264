package producer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const writeTimeout = 10 * time.Second

// Producer 采样消息的 Kafka 生产者
// 按设备编号作分区键，保证同一设备的消息落在同一分区、保持顺序
type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

// NewProducer 创建 Kafka 生产者（同步写、至少一次语义）
func NewProducer(brokers, topic string, logger *zap.Logger) (*Producer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic cannot be empty")
	}

	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	logger.Info("Kafka producer configured",
		zap.Strings("brokers", brokerList),
		zap.String("topic", topic),
	)

	return &Producer{
		writer: writer,
		topic:  topic,
		logger: logger,
	}, nil
}

// Publish 发布一条采样消息，以设备编号为分区键
func (p *Producer) Publish(ctx context.Context, deviceCode string, payload []byte) error {
	msg := kafka.Message{
		Key:   []byte(deviceCode),
		Value: payload,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	p.logger.Debug("Sensor message published",
		zap.String("device_code", deviceCode),
		zap.String("topic", p.topic),
	)

	return nil
}

// Close 关闭底层 writer
func (p *Producer) Close() error {
	p.logger.Info("Closing Kafka producer", zap.String("topic", p.topic))
	return p.writer.Close()
}
