package repository

import (
	"context"
	"fmt"

	"github.com/Sigmacare/iot-stream-kafka/internal/config"
	"github.com/Sigmacare/iot-stream-kafka/internal/models"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"
)

// TelemetryRepository 原始采样的 InfluxDB 时序存储
type TelemetryRepository struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
	logger      *zap.Logger
}

// NewTelemetryRepository 创建时序存储仓库
func NewTelemetryRepository(cfg *config.InfluxConfig, logger *zap.Logger) *TelemetryRepository {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	writeAPI := client.WriteAPIBlocking(cfg.Org, cfg.Bucket)

	return &TelemetryRepository{
		client:      client,
		writeAPI:    writeAPI,
		measurement: cfg.Measurement,
		logger:      logger,
	}
}

// Write 把一条采样写为一个数据点
// 设备编号作为 tag，全部传感器数值作为 float 字段
func (r *TelemetryRepository) Write(ctx context.Context, reading *models.SensorReading) error {
	point := influxdb2.NewPoint(
		r.measurement,
		map[string]string{
			"device_code": reading.DeviceCode,
		},
		map[string]interface{}{
			"accel_x":    reading.AccelX,
			"accel_y":    reading.AccelY,
			"accel_z":    reading.AccelZ,
			"gyro_x":     reading.GyroX,
			"gyro_y":     reading.GyroY,
			"gyro_z":     reading.GyroZ,
			"heart_rate": reading.HeartRate,
			"oxygen":     reading.Oxygen,
		},
		reading.ObservedAt,
	)

	if err := r.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("failed to write telemetry point: %w", err)
	}

	r.logger.Debug("Telemetry point written",
		zap.String("device_code", reading.DeviceCode),
		zap.Time("observed_at", reading.ObservedAt),
	)

	return nil
}

// Close 关闭 InfluxDB 客户端
func (r *TelemetryRepository) Close() {
	r.client.Close()
}
