package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Sigmacare/iot-stream-kafka/internal/models"

	"go.uber.org/zap"
)

// AlertRepository 报警持久化仓库（alerts 表）
//
// 表结构：
//   alerts(alert_id uuid PK, device_code text, alert_types jsonb,
//          alert_data jsonb, resolved boolean, created_at, updated_at)
type AlertRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertRepository 创建报警仓库
func NewAlertRepository(db *sql.DB, logger *zap.Logger) *AlertRepository {
	return &AlertRepository{
		db:     db,
		logger: logger,
	}
}

const alertColumns = `
			alert_id,
			device_code,
			alert_types,
			alert_data,
			resolved,
			created_at,
			updated_at`

// FindOpenAlert 查找设备当前未解决的报警
// 不存在时返回 (nil, nil)，调用方据此决定是否新建
func (r *AlertRepository) FindOpenAlert(ctx context.Context, deviceCode string) (*models.Alert, error) {
	if deviceCode == "" {
		return nil, fmt.Errorf("device_code is required")
	}

	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE device_code = $1
		  AND resolved = false
		ORDER BY created_at DESC
		LIMIT 1
	`

	alert, err := r.scanAlert(r.db.QueryRowContext(ctx, query, deviceCode))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open alert: %w", err)
	}

	return alert, nil
}

// Save 保存报警（按 alert_id upsert）
func (r *AlertRepository) Save(ctx context.Context, alert *models.Alert) error {
	if alert.AlertID == "" {
		return fmt.Errorf("alert_id is required")
	}

	typesJSON, err := json.Marshal(alert.AlertTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal alert_types: %w", err)
	}
	dataJSON, err := json.Marshal(alert.AlertData)
	if err != nil {
		return fmt.Errorf("failed to marshal alert_data: %w", err)
	}

	query := `
		INSERT INTO alerts (
			alert_id, device_code, alert_types, alert_data,
			resolved, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (alert_id)
		DO UPDATE SET alert_types = EXCLUDED.alert_types,
		              alert_data  = EXCLUDED.alert_data,
		              updated_at  = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		alert.AlertID,
		alert.DeviceCode,
		typesJSON,
		dataJSON,
		alert.Resolved,
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}

	return nil
}

// Resolve 将最近一条匹配的未解决报警标记为已解决
// deviceCode / alertType 均为可选过滤条件；返回是否有记录被更新
func (r *AlertRepository) Resolve(ctx context.Context, deviceCode, alertType string) (bool, error) {
	var conditions []string
	var args []interface{}

	conditions = append(conditions, "resolved = false")

	if deviceCode != "" {
		args = append(args, deviceCode)
		conditions = append(conditions, fmt.Sprintf("device_code = $%d", len(args)))
	}
	if alertType != "" {
		typeJSON, err := json.Marshal([]string{alertType})
		if err != nil {
			return false, fmt.Errorf("failed to marshal alert type filter: %w", err)
		}
		args = append(args, string(typeJSON))
		conditions = append(conditions, fmt.Sprintf("alert_types @> $%d::jsonb", len(args)))
	}

	args = append(args, time.Now())
	query := fmt.Sprintf(`
		UPDATE alerts
		SET resolved = true,
		    updated_at = $%d
		WHERE alert_id = (
			SELECT alert_id
			FROM alerts
			WHERE %s
			ORDER BY created_at DESC
			LIMIT 1
		)
	`, len(args), strings.Join(conditions, "\n			  AND "))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to resolve alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected > 0 {
		r.logger.Info("Alert resolved",
			zap.String("device_code", deviceCode),
			zap.String("alert_type", alertType),
		)
	}

	return affected > 0, nil
}

// ListPending 按时间倒序返回所有未解决的报警
func (r *AlertRepository) ListPending(ctx context.Context) ([]models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE resolved = false
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		alert, err := r.scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, nil
}

// rowScanner 兼容 *sql.Row 与 *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *AlertRepository) scanAlert(row rowScanner) (*models.Alert, error) {
	var alert models.Alert
	var typesJSON, dataJSON []byte

	err := row.Scan(
		&alert.AlertID,
		&alert.DeviceCode,
		&typesJSON,
		&dataJSON,
		&alert.Resolved,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(typesJSON, &alert.AlertTypes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert_types: %w", err)
	}
	if err := json.Unmarshal(dataJSON, &alert.AlertData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert_data: %w", err)
	}

	return &alert, nil
}
