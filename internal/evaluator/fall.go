package evaluator

import (
	"time"

	"github.com/Sigmacare/iot-stream-kafka/internal/config"
	"github.com/Sigmacare/iot-stream-kafka/internal/consumer"
	"github.com/Sigmacare/iot-stream-kafka/internal/models"
)

// AdvanceFall 推进跌倒检测状态机（纯函数）
// 状态流转：Idle → FreeFallSuspected → ImpactSuspected → 确认后复位
//
// 单阈值冲击检测会被日常动作大量误触发；这里要求完整的跌倒运动学序列：
// 失重（自由落体）→ 1秒内出现高冲击 → 撞击后持续静止 ≥10秒
// 任一阶段缺失或顺序错乱都不会确认
//
// recent 为包含当前采样在内的最近采样序列（用于静止确认）
// 返回推进后的状态与是否确认跌倒；确认后状态复位为 Idle，只上报一次
func AdvanceFall(
	state consumer.FallState,
	reading models.SensorReading,
	recent []models.SensorReading,
	cfg *config.DetectionConfig,
) (consumer.FallState, bool) {
	mag := reading.AccelMagnitude()
	ts := reading.ObservedAt

	switch state.Phase {
	case consumer.FallIdle:
		if mag < cfg.FreeFallThreshold {
			return consumer.FallState{
				Phase:      consumer.FallFreeFallSuspected,
				FreeFallAt: ts,
			}, false
		}
		return state, false

	case consumer.FallFreeFallSuspected:
		if ts.Sub(state.FreeFallAt) > cfg.ImpactWindow {
			// 冲击窗口内未出现撞击，复位；当前采样可能开启新的失重阶段
			return restartFromIdle(mag, ts, cfg), false
		}
		if mag > cfg.ImpactThreshold {
			return consumer.FallState{
				Phase:      consumer.FallImpactSuspected,
				FreeFallAt: state.FreeFallAt,
				ImpactAt:   ts,
			}, false
		}
		return state, false

	case consumer.FallImpactSuspected:
		if ts.Sub(state.ImpactAt) > cfg.ConfirmTimeout {
			return restartFromIdle(mag, ts, cfg), false
		}
		if mag >= cfg.InactivityThreshold {
			// 撞击后恢复活动，不是跌倒
			return restartFromIdle(mag, ts, cfg), false
		}
		if ts.Sub(state.ImpactAt) >= cfg.InactivityDuration &&
			sustainedInactivity(recent, cfg) {
			// 跌倒确认：上报一次并复位
			return consumer.FallState{Phase: consumer.FallIdle}, true
		}
		return state, false
	}

	return state, false
}

// restartFromIdle 复位到 Idle；当前采样本身已处于失重时直接开启新的疑似阶段
func restartFromIdle(mag float64, ts time.Time, cfg *config.DetectionConfig) consumer.FallState {
	if mag < cfg.FreeFallThreshold {
		return consumer.FallState{
			Phase:      consumer.FallFreeFallSuspected,
			FreeFallAt: ts,
		}
	}
	return consumer.FallState{Phase: consumer.FallIdle}
}

// sustainedInactivity 最近 N 条采样的加速度模全部低于静止阈值
func sustainedInactivity(recent []models.SensorReading, cfg *config.DetectionConfig) bool {
	if len(recent) < cfg.InactivityReadings {
		return false
	}
	tail := recent[len(recent)-cfg.InactivityReadings:]
	for _, r := range tail {
		if r.AccelMagnitude() >= cfg.InactivityThreshold {
			return false
		}
	}
	return true
}
