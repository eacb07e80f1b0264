package models

import (
	"strings"
	"time"
)

// 报警条件类型（与前端和历史数据保持一致的展示名）
const (
	ConditionFall       = "Fall Detected"
	ConditionAbnormalHR = "Abnormal Heart Rate"
	ConditionLowOxygen  = "Low Oxygen Level"
)

// Alert 报警记录（对应 alerts 表）
// 每个设备同一时刻最多存在一条未解决的报警；alert_types 只增不减，
// 直到外部 resolve 后记录冻结，后续检测会创建新记录
type Alert struct {
	AlertID    string        `json:"alert_id" db:"alert_id"`
	DeviceCode string        `json:"device_code" db:"device_code"`
	AlertTypes []string      `json:"alertType" db:"alert_types"`
	AlertData  SensorReading `json:"alertData" db:"alert_data"`
	Resolved   bool          `json:"resolved" db:"resolved"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" db:"updated_at"`
}

// HasType 检查报警是否已记录该条件类型
func (a *Alert) HasType(kind string) bool {
	for _, t := range a.AlertTypes {
		if t == kind {
			return true
		}
	}
	return false
}

// AlertNotice 外发的报警通知载荷（发布到 MQTT alerts/<channel>）
type AlertNotice struct {
	DeviceCode string        `json:"device_code"`
	AlertType  []string      `json:"alertType"`
	AlertData  SensorReading `json:"alertData"`
	Resolved   bool          `json:"resolved"`
	Timestamp  time.Time     `json:"timestamp"`
}

// NoticeChannel 根据条件类型派生通知通道名
// 如 "Fall Detected" -> "alerts/fall_detected"
func NoticeChannel(kind string) string {
	return "alerts/" + strings.ReplaceAll(strings.ToLower(kind), " ", "_")
}
