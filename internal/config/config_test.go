package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "sigmacare", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, "localhost:9092", cfg.Kafka.Brokers)
	assert.Equal(t, "sigma-band-data", cfg.Kafka.ReadingTopic)
	assert.Equal(t, "sensor-data", cfg.Kafka.StoreTopic)
	assert.Equal(t, "processing-group", cfg.Kafka.ProcessGroupID)
	assert.Equal(t, "store-group", cfg.Kafka.StoreGroupID)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	assert.Equal(t, 3.0, cfg.Detection.FreeFallThreshold)
	assert.Equal(t, 24.5, cfg.Detection.ImpactThreshold)
	assert.Equal(t, 7.84, cfg.Detection.InactivityThreshold)
	assert.Equal(t, time.Second, cfg.Detection.ImpactWindow)
	assert.Equal(t, 10*time.Second, cfg.Detection.InactivityDuration)
	assert.Equal(t, 10, cfg.Detection.InactivityReadings)

	assert.Equal(t, 40.0, cfg.Detection.MinHeartRate)
	assert.Equal(t, 30*time.Second, cfg.Detection.HeartRateWindow)
	assert.Equal(t, 5, cfg.Detection.MinHRSamples)
	assert.Equal(t, 0.7, cfg.Detection.AbnormalRatio)
	assert.Equal(t, 90.0, cfg.Detection.OxygenFloor)
	assert.Equal(t, 10*time.Second, cfg.Detection.OxygenWindow)
	assert.Equal(t, 3, cfg.Detection.MinSpO2Samples)
	assert.Equal(t, 50, cfg.Detection.DefaultAge)

	assert.Equal(t, 30*time.Second, cfg.Detection.HistoryWindow)
	assert.Equal(t, 30*time.Second, cfg.Detection.SweepInterval)
	assert.Equal(t, 60*time.Second, cfg.Detection.StaleThreshold)

	assert.Equal(t, "sigmacare:device:", cfg.Cache.AlertKeyPrefix)
	assert.Equal(t, ":alert", cfg.Cache.AlertSuffix)
	assert.Equal(t, 60, cfg.Cache.AlertTTL)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_PORT", "15432")
	os.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	os.Setenv("KAFKA_READING_TOPIC", "test-band-data")
	os.Setenv("MQTT_BROKER", "ssl://broker.test:8883")
	os.Setenv("FALL_IMPACT_THRESHOLD", "19.6")
	os.Setenv("FALL_IMPACT_WINDOW", "2s")
	os.Setenv("MIN_HR_SAMPLES", "7")
	os.Setenv("EMERGENCY_CONTACT", "+15550100")
	os.Setenv("LOG_LEVEL", "debug")
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 15432, cfg.Database.Port)
	assert.Equal(t, "kafka-1:9092,kafka-2:9092", cfg.Kafka.Brokers)
	assert.Equal(t, "test-band-data", cfg.Kafka.ReadingTopic)
	assert.Equal(t, "ssl://broker.test:8883", cfg.MQTT.Broker)
	assert.Equal(t, 19.6, cfg.Detection.ImpactThreshold)
	assert.Equal(t, 2*time.Second, cfg.Detection.ImpactWindow)
	assert.Equal(t, 7, cfg.Detection.MinHRSamples)
	assert.Equal(t, "+15550100", cfg.Twilio.EmergencyContact)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidNumericEnvFallsBack(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PORT", "not-a-number")
	os.Setenv("FALL_FREEFALL_THRESHOLD", "abc")
	os.Setenv("SWEEP_INTERVAL", "soon")
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 3.0, cfg.Detection.FreeFallThreshold)
	assert.Equal(t, 30*time.Second, cfg.Detection.SweepInterval)
}
