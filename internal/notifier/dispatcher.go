package notifier

import (
	"encoding/json"

	"github.com/Sigmacare/iot-stream-kafka/internal/models"

	"go.uber.org/zap"
)

// Publisher MQTT 发布协作方
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Dispatcher 报警通知分发器
// 负责把新增的报警类别推送到对应 MQTT 主题，并在新建报警时触发一次紧急呼叫
type Dispatcher struct {
	publisher Publisher
	caller    EmergencyCaller
	contact   string
	qos       byte
	logger    *zap.Logger
}

// NewDispatcher 创建通知分发器
func NewDispatcher(publisher Publisher, caller EmergencyCaller, emergencyContact string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		caller:    caller,
		contact:   emergencyContact,
		qos:       1,
		logger:    logger,
	}
}

// Dispatch 为每个新增类别发布一条通知；created 为真时额外触发紧急呼叫
// 发布失败只记录日志，不回滚已持久化的报警记录
func (d *Dispatcher) Dispatch(alert *models.Alert, newlyAdded []string, created bool) {
	for _, kind := range newlyAdded {
		notice := models.AlertNotice{
			DeviceCode: alert.DeviceCode,
			AlertType:  alert.AlertTypes,
			AlertData:  alert.AlertData,
			Resolved:   alert.Resolved,
			Timestamp:  alert.UpdatedAt,
		}

		payload, err := json.Marshal(notice)
		if err != nil {
			d.logger.Error("Failed to marshal alert notice",
				zap.String("device_code", alert.DeviceCode),
				zap.String("alert_kind", kind),
				zap.Error(err),
			)
			continue
		}

		topic := models.NoticeChannel(kind)
		if err := d.publisher.Publish(topic, d.qos, false, payload); err != nil {
			d.logger.Error("Failed to publish alert notice",
				zap.String("device_code", alert.DeviceCode),
				zap.String("topic", topic),
				zap.Error(err),
			)
			continue
		}

		d.logger.Info("Alert notice published",
			zap.String("device_code", alert.DeviceCode),
			zap.String("topic", topic),
		)
	}

	if created && d.caller != nil {
		go d.caller.Notify(d.contact)
	}
}
