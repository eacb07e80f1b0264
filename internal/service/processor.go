package service

import (
	"context"
	"time"

	"github.com/Sigmacare/iot-stream-kafka/internal/alert"
	"github.com/Sigmacare/iot-stream-kafka/internal/config"
	"github.com/Sigmacare/iot-stream-kafka/internal/consumer"
	"github.com/Sigmacare/iot-stream-kafka/internal/evaluator"
	"github.com/Sigmacare/iot-stream-kafka/internal/models"

	"go.uber.org/zap"
)

// AgeLookup 患者年龄查询协作方
type AgeLookup interface {
	GetAge(ctx context.Context, deviceCode string) (int, error)
}

// AlertCacher 活跃报警缓存协作方
type AlertCacher interface {
	Update(ctx context.Context, alert *models.Alert) error
}

// NoticeDispatcher 报警通知协作方
type NoticeDispatcher interface {
	Dispatch(alert *models.Alert, newlyAdded []string, created bool)
}

// TelemetryWriter 原始采样时序存储协作方
type TelemetryWriter interface {
	Write(ctx context.Context, reading *models.SensorReading) error
}

// Processor 单条采样的处理管线
// 解析 → 设备状态更新 → 异常检测 → 报警合并 → 缓存与通知
type Processor struct {
	config     *config.Config
	states     *consumer.DeviceStateStore
	evaluator  *evaluator.Evaluator
	ages       AgeLookup
	lifecycle  *alert.Lifecycle
	cache      AlertCacher
	dispatcher NoticeDispatcher
	telemetry  TelemetryWriter
	logger     *zap.Logger
}

// NewProcessor 创建处理管线
func NewProcessor(
	cfg *config.Config,
	states *consumer.DeviceStateStore,
	eval *evaluator.Evaluator,
	ages AgeLookup,
	lifecycle *alert.Lifecycle,
	cache AlertCacher,
	dispatcher NoticeDispatcher,
	telemetry TelemetryWriter,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		config:     cfg,
		states:     states,
		evaluator:  eval,
		ages:       ages,
		lifecycle:  lifecycle,
		cache:      cache,
		dispatcher: dispatcher,
		telemetry:  telemetry,
		logger:     logger,
	}
}

// ProcessReading 处理检测流的一条采样消息
//
// 同一设备的消息在设备级锁内串行处理：状态更新、检测、合并、
// 通知作为一个整体执行，不同设备之间互不阻塞。
// 畸形消息丢弃并记日志；存储失败中止本条合并，采样历史保留，
// 下一条采样会基于最新存储状态重试
func (p *Processor) ProcessReading(ctx context.Context, payload []byte, receivedAt time.Time) error {
	reading, err := models.ParseSensorReading(payload, receivedAt)
	if err != nil {
		p.logger.Warn("Discarding malformed sensor reading",
			zap.Error(err),
		)
		return nil
	}

	state, release := p.states.Acquire(reading.DeviceCode)
	defer release()

	p.states.Update(state, *reading)

	age, err := p.ages.GetAge(ctx, reading.DeviceCode)
	if err != nil {
		// 查不到患者档案时退回默认年龄阈值
		p.logger.Warn("Patient age lookup failed, using default thresholds",
			zap.String("device_code", reading.DeviceCode),
			zap.Error(err),
		)
		age = 0
	}

	detected := p.evaluator.Evaluate(state, *reading, age)

	activeAlert, newlyAdded, created, err := p.lifecycle.Reconcile(ctx, reading.DeviceCode, detected, *reading)
	if err != nil {
		return err
	}

	if activeAlert != nil {
		if err := p.cache.Update(ctx, activeAlert); err != nil {
			// 缓存只是查询加速，失败不影响权威存储
			p.logger.Error("Failed to update alert cache",
				zap.String("device_code", reading.DeviceCode),
				zap.Error(err),
			)
		}
	}

	if len(newlyAdded) > 0 {
		p.dispatcher.Dispatch(activeAlert, newlyAdded, created)
	}

	return nil
}

// ProcessStoreMessage 处理存储流的一条采样消息（写入 InfluxDB）
func (p *Processor) ProcessStoreMessage(ctx context.Context, payload []byte, receivedAt time.Time) error {
	reading, err := models.ParseSensorReading(payload, receivedAt)
	if err != nil {
		p.logger.Warn("Discarding malformed store message",
			zap.Error(err),
		)
		return nil
	}

	return p.telemetry.Write(ctx, reading)
}
