package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// PatientRepository 患者目录仓库（patients 表）
// 仅供阈值个性化使用：按设备查询患者年龄
type PatientRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPatientRepository 创建患者目录仓库
func NewPatientRepository(db *sql.DB, logger *zap.Logger) *PatientRepository {
	return &PatientRepository{
		db:     db,
		logger: logger,
	}
}

// GetAge 查询设备绑定患者的年龄
// 设备未绑定患者时返回 (0, nil)，调用方回退到默认年龄
func (r *PatientRepository) GetAge(ctx context.Context, deviceCode string) (int, error) {
	if deviceCode == "" {
		return 0, fmt.Errorf("device_code is required")
	}

	query := `
		SELECT age
		FROM patients
		WHERE device_code = $1
		LIMIT 1
	`

	var age int
	err := r.db.QueryRowContext(ctx, query, deviceCode).Scan(&age)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Debug("No patient bound to device",
				zap.String("device_code", deviceCode),
			)
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get patient age: %w", err)
	}

	return age, nil
}
