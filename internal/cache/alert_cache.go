package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sigmacare/iot-stream-kafka/internal/config"
	"github.com/Sigmacare/iot-stream-kafka/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// AlertCache 设备活跃报警的 Redis 缓存
// 供查询接口快速读取设备当前未解除的报警，权威数据仍在 PostgreSQL
type AlertCache struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewAlertCache 创建报警缓存管理器
func NewAlertCache(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *AlertCache {
	return &AlertCache{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// key 构建缓存键
func (c *AlertCache) key(deviceCode string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Cache.AlertKeyPrefix,
		deviceCode,
		c.config.Cache.AlertSuffix,
	)
}

// Update 更新设备的活跃报警缓存
func (c *AlertCache) Update(ctx context.Context, alert *models.Alert) error {
	key := c.key(alert.DeviceCode)

	jsonData, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	err = c.redisClient.Set(
		ctx,
		key,
		jsonData,
		time.Duration(c.config.Cache.AlertTTL)*time.Second,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set alert cache: %w", err)
	}

	c.logger.Debug("Updated alert cache",
		zap.String("device_code", alert.DeviceCode),
		zap.String("key", key),
		zap.Strings("alert_types", alert.AlertTypes),
	)

	return nil
}

// Get 读取设备的活跃报警；缓存未命中返回 (nil, nil)
func (c *AlertCache) Get(ctx context.Context, deviceCode string) (*models.Alert, error) {
	val, err := c.redisClient.Get(ctx, c.key(deviceCode)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get alert cache: %w", err)
	}

	var alert models.Alert
	if err := json.Unmarshal([]byte(val), &alert); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached alert: %w", err)
	}

	return &alert, nil
}

// Invalidate 清除设备的活跃报警缓存（报警解除后调用）
func (c *AlertCache) Invalidate(ctx context.Context, deviceCode string) error {
	if err := c.redisClient.Del(ctx, c.key(deviceCode)).Err(); err != nil {
		return fmt.Errorf("failed to delete alert cache: %w", err)
	}
	return nil
}
