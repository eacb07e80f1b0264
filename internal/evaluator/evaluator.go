package evaluator

import (
	"github.com/Sigmacare/iot-stream-kafka/internal/config"
	"github.com/Sigmacare/iot-stream-kafka/internal/consumer"
	"github.com/Sigmacare/iot-stream-kafka/internal/models"

	"go.uber.org/zap"
)

// Evaluator 条件评估器：在已更新的设备状态上评估全部报警条件
type Evaluator struct {
	cfg    *config.DetectionConfig
	logger *zap.Logger
}

// NewEvaluator 创建评估器
func NewEvaluator(cfg *config.DetectionConfig, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		cfg:    cfg,
		logger: logger,
	}
}

// Evaluate 评估设备当前状态，返回检测到的条件类型列表
// 调用方必须已持有该设备锁且已将 reading 写入 state.History
// 跌倒状态机的推进会回写 state.Fall
func (e *Evaluator) Evaluate(state *consumer.DeviceState, reading models.SensorReading, age int) []string {
	var detected []string

	fallState, confirmed := AdvanceFall(state.Fall, reading, state.RecentReadings(e.cfg.InactivityReadings), e.cfg)
	state.Fall = fallState
	if confirmed {
		detected = append(detected, models.ConditionFall)
		e.logger.Info("Fall confirmed",
			zap.String("device_code", reading.DeviceCode),
			zap.Float64("accel_magnitude", reading.AccelMagnitude()),
		)
	}

	th := ThresholdsForAge(e.cfg, age)

	if CheckHeartRate(state.History, reading.ObservedAt, e.cfg, th) {
		detected = append(detected, models.ConditionAbnormalHR)
		e.logger.Info("Abnormal heart rate detected",
			zap.String("device_code", reading.DeviceCode),
			zap.Float64("heart_rate", reading.HeartRate),
			zap.Float64("max_hr", th.MaxHeartRate),
			zap.Float64("min_hr", th.MinHeartRate),
		)
	}

	if CheckOxygen(state.History, reading.ObservedAt, e.cfg, th) {
		detected = append(detected, models.ConditionLowOxygen)
		e.logger.Info("Low oxygen level detected",
			zap.String("device_code", reading.DeviceCode),
			zap.Float64("oxygen", reading.Oxygen),
			zap.Float64("floor", th.OxygenFloor),
		)
	}

	return detected
}
