package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/Sigmacare/iot-stream-kafka/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store 持久化报警存储协作方
type Store interface {
	// FindOpenAlert 查找设备未解决的报警，不存在时返回 (nil, nil)
	FindOpenAlert(ctx context.Context, deviceCode string) (*models.Alert, error)
	// Save 保存报警（按 alert_id upsert）
	Save(ctx context.Context, alert *models.Alert) error
}

// Lifecycle 报警生命周期管理器
// 把检测结果合并为每设备一条可更新的去重报警记录：
// 首次检测创建，新条件追加，已记录条件重放不产生写入和通知
type Lifecycle struct {
	store  Store
	logger *zap.Logger
}

// NewLifecycle 创建生命周期管理器
func NewLifecycle(store Store, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		store:  store,
		logger: logger,
	}
}

// Reconcile 将本次检测到的条件合并到设备的报警记录
//
// 返回值：
//   - alert: 当前报警（无报警且无检测时为 nil）
//   - newlyAdded: 本次新增的条件类型（为空表示无写入、无通知）
//   - created: 报警是否为本次新建（用于触发紧急呼叫）
//
// 对已记录条件幂等：重放相同条件集不会重复追加或重复通知
// 存储失败时中止本条消息的合并，内存中的采样历史不受影响，
// 下一条采样会从最新存储状态重新尝试
func (l *Lifecycle) Reconcile(
	ctx context.Context,
	deviceCode string,
	detected []string,
	reading models.SensorReading,
) (*models.Alert, []string, bool, error) {
	existing, err := l.store.FindOpenAlert(ctx, deviceCode)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to find open alert: %w", err)
	}

	now := time.Now()

	if existing == nil {
		if len(detected) == 0 {
			return nil, nil, false, nil
		}

		created := &models.Alert{
			AlertID:    uuid.New().String(),
			DeviceCode: deviceCode,
			AlertTypes: append([]string(nil), detected...),
			AlertData:  reading,
			Resolved:   false,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := l.store.Save(ctx, created); err != nil {
			return nil, nil, false, fmt.Errorf("failed to save new alert: %w", err)
		}

		l.logger.Info("Alert created",
			zap.String("alert_id", created.AlertID),
			zap.String("device_code", deviceCode),
			zap.Strings("alert_types", created.AlertTypes),
		)
		return created, append([]string(nil), detected...), true, nil
	}

	// 已有未解决报警：只追加尚未记录的条件，保持插入顺序
	var newlyAdded []string
	for _, kind := range detected {
		if !existing.HasType(kind) {
			newlyAdded = append(newlyAdded, kind)
		}
	}

	if len(newlyAdded) == 0 {
		// 幂等路径：不写存储，不发通知
		return existing, nil, false, nil
	}

	existing.AlertTypes = append(existing.AlertTypes, newlyAdded...)
	existing.AlertData = reading
	existing.UpdatedAt = now

	if err := l.store.Save(ctx, existing); err != nil {
		return nil, nil, false, fmt.Errorf("failed to update alert: %w", err)
	}

	l.logger.Info("Alert updated",
		zap.String("alert_id", existing.AlertID),
		zap.String("device_code", deviceCode),
		zap.Strings("newly_added", newlyAdded),
	)
	return existing, newlyAdded, false, nil
}
