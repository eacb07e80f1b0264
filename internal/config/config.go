package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Brokers string // 逗号分隔的 broker 地址列表

	ReadingTopic string // 检测流主题（处理消费者订阅）
	StoreTopic   string // 存储流主题（InfluxDB 存储消费者订阅）

	ProcessGroupID string // 处理消费者组
	StoreGroupID   string // 存储消费者组
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// InfluxConfig InfluxDB配置（原始采样时序存储）
type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

// TwilioConfig 紧急呼叫配置（Twilio Studio Flow）
type TwilioConfig struct {
	BaseURL          string
	AccountSID       string
	AuthToken        string
	FlowSID          string
	FromNumber       string
	EmergencyContact string
}

// DetectionConfig 检测阈值与窗口配置
// 加速度阈值单位为 m/s²，与设备上报单位一致
type DetectionConfig struct {
	// 跌倒检测状态机
	FreeFallThreshold   float64       // 失重阈值（加速度模低于该值进入疑似自由落体）
	ImpactThreshold     float64       // 冲击阈值（加速度模高于该值视为撞击）
	InactivityThreshold float64       // 静止阈值（撞击后低于该值视为无活动）
	ImpactWindow        time.Duration // 自由落体后等待撞击的窗口
	InactivityDuration  time.Duration // 撞击后确认静止所需的最短持续时间
	InactivityReadings  int           // 确认静止所需的最近采样数
	ConfirmTimeout      time.Duration // 撞击后超过该时长未确认则复位

	// 生命体征分析
	MinHeartRate    float64       // 心率下限
	HeartRateWindow time.Duration // 心率分析窗口
	MinHRSamples    int           // 心率分析最少采样数
	AbnormalRatio   float64       // 判定异常的窗口内异常采样占比（严格大于）
	OxygenFloor     float64       // 血氧下限
	OxygenWindow    time.Duration // 血氧分析窗口
	MinSpO2Samples  int           // 血氧分析最少采样数
	DefaultAge      int           // 患者年龄未知时的默认值

	// 设备状态存储
	HistoryWindow  time.Duration // 滚动采样历史窗口
	SweepInterval  time.Duration // 空闲设备清理扫描间隔
	StaleThreshold time.Duration // 设备无活动判定阈值
}

// HTTPConfig HTTP服务配置
type HTTPConfig struct {
	Addr      string
	JWTSecret string
}

// Config 服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	MQTT     MQTTConfig
	Influx   InfluxConfig
	Twilio   TwilioConfig
	HTTP     HTTPConfig

	Detection DetectionConfig

	// 报警缓存配置
	Cache struct {
		AlertKeyPrefix string // 报警缓存键前缀，如 "sigmacare:device:"
		AlertSuffix    string // 报警缓存键后缀，如 ":alert"
		AlertTTL       int    // 报警缓存 TTL（秒）
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量优先，支持本地 .env 文件）
func Load() (*Config, error) {
	// .env 不存在时静默忽略（生产环境直接用环境变量）
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "sigmacare")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Kafka.Brokers = getEnv("KAFKA_BROKERS", "localhost:9092")
	cfg.Kafka.ReadingTopic = getEnv("KAFKA_READING_TOPIC", "sigma-band-data")
	cfg.Kafka.StoreTopic = getEnv("KAFKA_STORE_TOPIC", "sensor-data")
	cfg.Kafka.ProcessGroupID = getEnv("KAFKA_PROCESS_GROUP", "processing-group")
	cfg.Kafka.StoreGroupID = getEnv("KAFKA_STORE_GROUP", "store-group")

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "sigmacare-monitor")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(getEnvInt("MQTT_QOS", 1))

	cfg.Influx.URL = getEnv("INFLUX_URL", "http://localhost:8086")
	cfg.Influx.Token = getEnv("INFLUX_TOKEN", "")
	cfg.Influx.Org = getEnv("INFLUX_ORG", "sigmacare")
	cfg.Influx.Bucket = getEnv("INFLUX_BUCKET", "sensor-data")
	cfg.Influx.Measurement = getEnv("INFLUX_MEASUREMENT", "band_telemetry")

	cfg.Twilio.BaseURL = getEnv("TWILIO_BASE_URL", "https://studio.twilio.com")
	cfg.Twilio.AccountSID = getEnv("TWILIO_ACCOUNT_SID", "")
	cfg.Twilio.AuthToken = getEnv("TWILIO_AUTH_TOKEN", "")
	cfg.Twilio.FlowSID = getEnv("TWILIO_FLOW_SID", "")
	cfg.Twilio.FromNumber = getEnv("TWILIO_PHONE_NUMBER", "")
	cfg.Twilio.EmergencyContact = getEnv("EMERGENCY_CONTACT", "")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":5000")
	cfg.HTTP.JWTSecret = getEnv("JWT_SECRET", "")

	// 检测阈值（m/s²；默认值按 1g = 9.8 换算）
	cfg.Detection.FreeFallThreshold = getEnvFloat("FALL_FREEFALL_THRESHOLD", 3.0)
	cfg.Detection.ImpactThreshold = getEnvFloat("FALL_IMPACT_THRESHOLD", 24.5) // 2.5g
	cfg.Detection.InactivityThreshold = getEnvFloat("FALL_INACTIVITY_THRESHOLD", 7.84) // 0.8g
	cfg.Detection.ImpactWindow = getEnvDuration("FALL_IMPACT_WINDOW", time.Second)
	cfg.Detection.InactivityDuration = getEnvDuration("FALL_INACTIVITY_DURATION", 10*time.Second)
	cfg.Detection.InactivityReadings = getEnvInt("FALL_INACTIVITY_READINGS", 10)
	cfg.Detection.ConfirmTimeout = getEnvDuration("FALL_CONFIRM_TIMEOUT", 30*time.Second)

	cfg.Detection.MinHeartRate = getEnvFloat("MIN_HEART_RATE", 40)
	cfg.Detection.HeartRateWindow = getEnvDuration("HEART_RATE_WINDOW", 30*time.Second)
	cfg.Detection.MinHRSamples = getEnvInt("MIN_HR_SAMPLES", 5)
	cfg.Detection.AbnormalRatio = getEnvFloat("ABNORMAL_HR_RATIO", 0.7)
	cfg.Detection.OxygenFloor = getEnvFloat("OXYGEN_FLOOR", 90)
	cfg.Detection.OxygenWindow = getEnvDuration("OXYGEN_WINDOW", 10*time.Second)
	cfg.Detection.MinSpO2Samples = getEnvInt("MIN_SPO2_SAMPLES", 3)
	cfg.Detection.DefaultAge = getEnvInt("DEFAULT_PATIENT_AGE", 50)

	cfg.Detection.HistoryWindow = getEnvDuration("HISTORY_WINDOW", 30*time.Second)
	cfg.Detection.SweepInterval = getEnvDuration("SWEEP_INTERVAL", 30*time.Second)
	cfg.Detection.StaleThreshold = getEnvDuration("STALE_THRESHOLD", 60*time.Second)

	cfg.Cache.AlertKeyPrefix = getEnv("CACHE_ALERT_PREFIX", "sigmacare:device:")
	cfg.Cache.AlertSuffix = ":alert"
	cfg.Cache.AlertTTL = getEnvInt("CACHE_ALERT_TTL", 60)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
