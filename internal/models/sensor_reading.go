package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// SensorReading 标准化后的传感器采样（解析成功后不可变）
// 加速度/陀螺仪单位为设备上报的原始 m/s² 与 °/s，入口处不做单位换算
type SensorReading struct {
	DeviceCode string    `json:"device_code"`
	AccelX     float64   `json:"accelX"`
	AccelY     float64   `json:"accelY"`
	AccelZ     float64   `json:"accelZ"`
	GyroX      float64   `json:"gyroX"`
	GyroY      float64   `json:"gyroY"`
	GyroZ      float64   `json:"gyroZ"`
	HeartRate  float64   `json:"heartRate"`
	Oxygen     float64   `json:"oxygen"`
	ObservedAt time.Time `json:"observed_at"`
}

// sensorReadingPayload 入站消息载荷（指针字段用于检测缺失字段）
type sensorReadingPayload struct {
	DeviceCode *string  `json:"device_code"`
	AccelX     *float64 `json:"accelX"`
	AccelY     *float64 `json:"accelY"`
	AccelZ     *float64 `json:"accelZ"`
	GyroX      *float64 `json:"gyroX"`
	GyroY      *float64 `json:"gyroY"`
	GyroZ      *float64 `json:"gyroZ"`
	HeartRate  *float64 `json:"heartRate"`
	Oxygen     *float64 `json:"oxygen"`
}

// ParseSensorReading 解析并校验入站传感器消息
// 任何必填字段缺失或 JSON 不可解析时返回错误，调用方丢弃该消息
// receivedAt 作为采样的 observed_at（设备不上报时间戳）
func ParseSensorReading(payload []byte, receivedAt time.Time) (*SensorReading, error) {
	var p sensorReadingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sensor reading: %w", err)
	}

	if p.DeviceCode == nil || *p.DeviceCode == "" {
		return nil, fmt.Errorf("missing required field: device_code")
	}

	numeric := map[string]*float64{
		"accelX":    p.AccelX,
		"accelY":    p.AccelY,
		"accelZ":    p.AccelZ,
		"gyroX":     p.GyroX,
		"gyroY":     p.GyroY,
		"gyroZ":     p.GyroZ,
		"heartRate": p.HeartRate,
		"oxygen":    p.Oxygen,
	}
	for name, v := range numeric {
		if v == nil {
			return nil, fmt.Errorf("missing required field: %s", name)
		}
	}

	return &SensorReading{
		DeviceCode: *p.DeviceCode,
		AccelX:     *p.AccelX,
		AccelY:     *p.AccelY,
		AccelZ:     *p.AccelZ,
		GyroX:      *p.GyroX,
		GyroY:      *p.GyroY,
		GyroZ:      *p.GyroZ,
		HeartRate:  *p.HeartRate,
		Oxygen:     *p.Oxygen,
		ObservedAt: receivedAt,
	}, nil
}

// AccelMagnitude 三轴加速度的欧氏范数
func (r *SensorReading) AccelMagnitude() float64 {
	return math.Sqrt(r.AccelX*r.AccelX + r.AccelY*r.AccelY + r.AccelZ*r.AccelZ)
}
