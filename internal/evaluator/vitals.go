package evaluator

import (
	"time"

	"github.com/Sigmacare/iot-stream-kafka/internal/config"
	"github.com/Sigmacare/iot-stream-kafka/internal/models"
)

// CheckHeartRate 心率异常检测（窗口占比测试）
// 30秒窗口内至少 MinHRSamples 条采样，超出 [MinHR, MaxHR] 的占比
// 严格大于 AbnormalRatio 才判定异常——要求持续偏离而非瞬时毛刺，
// 以容忍传感器噪声与运动伪影
func CheckHeartRate(history []models.SensorReading, now time.Time, cfg *config.DetectionConfig, th Thresholds) bool {
	cutoff := now.Add(-cfg.HeartRateWindow)

	var total, abnormal int
	for _, r := range history {
		if !r.ObservedAt.After(cutoff) {
			continue
		}
		total++
		if r.HeartRate > th.MaxHeartRate || r.HeartRate < th.MinHeartRate {
			abnormal++
		}
	}

	if total < cfg.MinHRSamples {
		return false
	}
	return float64(abnormal)/float64(total) > cfg.AbnormalRatio
}

// CheckOxygen 低血氧检测（窗口最小值测试）
// 10秒窗口内至少 MinSpO2Samples 条采样且最小值低于下限才判定；
// 单次瞬时下探不触发，但对持续去饱和比均值测试反应更快
func CheckOxygen(history []models.SensorReading, now time.Time, cfg *config.DetectionConfig, th Thresholds) bool {
	cutoff := now.Add(-cfg.OxygenWindow)

	var total int
	min := 0.0
	for _, r := range history {
		if !r.ObservedAt.After(cutoff) {
			continue
		}
		if total == 0 || r.Oxygen < min {
			min = r.Oxygen
		}
		total++
	}

	if total < cfg.MinSpO2Samples {
		return false
	}
	return min < th.OxygenFloor
}
