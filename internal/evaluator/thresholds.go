package evaluator

import (
	"github.com/Sigmacare/iot-stream-kafka/internal/config"
)

// Thresholds 单次评估使用的生命体征阈值（按患者年龄派生，不持久化）
type Thresholds struct {
	MaxHeartRate float64
	MinHeartRate float64
	OxygenFloor  float64
}

// ThresholdsForAge 根据患者年龄计算阈值
// 最大心率 = 220 - 年龄；年龄未知（<=0）时使用默认年龄
func ThresholdsForAge(cfg *config.DetectionConfig, age int) Thresholds {
	if age <= 0 {
		age = cfg.DefaultAge
	}
	return Thresholds{
		MaxHeartRate: float64(220 - age),
		MinHeartRate: cfg.MinHeartRate,
		OxygenFloor:  cfg.OxygenFloor,
	}
}
