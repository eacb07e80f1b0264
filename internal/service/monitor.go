package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/Sigmacare/iot-stream-kafka/internal/alert"
	"github.com/Sigmacare/iot-stream-kafka/internal/cache"
	"github.com/Sigmacare/iot-stream-kafka/internal/config"
	"github.com/Sigmacare/iot-stream-kafka/internal/consumer"
	"github.com/Sigmacare/iot-stream-kafka/internal/evaluator"
	httpapi "github.com/Sigmacare/iot-stream-kafka/internal/http"
	"github.com/Sigmacare/iot-stream-kafka/internal/notifier"
	"github.com/Sigmacare/iot-stream-kafka/internal/producer"
	"github.com/Sigmacare/iot-stream-kafka/internal/repository"
	"github.com/Sigmacare/iot-stream-kafka/pkg/mqtt"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// MonitorService 监测服务（整合各层）
type MonitorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	logger      *zap.Logger

	// 各层组件
	states          *consumer.DeviceStateStore
	alertRepo       *repository.AlertRepository
	patientRepo     *repository.PatientRepository
	telemetryRepo   *repository.TelemetryRepository
	alertCache      *cache.AlertCache
	processor       *Processor
	readingConsumer *consumer.ReadingConsumer
	storeConsumer   *consumer.ReadingConsumer
	readingProducer *producer.Producer
	storeProducer   *producer.Producer
	httpServer      *http.Server
}

// NewMonitorService 创建监测服务
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 1. 连接数据库
	db, err := sql.Open("postgres", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT
	mqttClient, err := mqtt.NewClient(&mqtt.Config{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		QoS:      cfg.MQTT.QoS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect mqtt broker: %w", err)
	}

	// 4. 创建 Repository 层
	alertRepo := repository.NewAlertRepository(db, logger)
	patientRepo := repository.NewPatientRepository(db, logger)
	telemetryRepo := repository.NewTelemetryRepository(&cfg.Influx, logger)

	// 5. 创建缓存与设备状态
	alertCache := cache.NewAlertCache(cfg, redisClient, logger)
	states := consumer.NewDeviceStateStore(cfg.Detection.HistoryWindow, logger)

	// 6. 创建检测与报警层
	eval := evaluator.NewEvaluator(&cfg.Detection, logger)
	lifecycle := alert.NewLifecycle(alertRepo, logger)
	caller := notifier.NewTwilioCaller(&cfg.Twilio, logger)
	dispatcher := notifier.NewDispatcher(mqttClient, caller, cfg.Twilio.EmergencyContact, logger)

	// 7. 创建处理管线
	proc := NewProcessor(cfg, states, eval, patientRepo, lifecycle, alertCache, dispatcher, telemetryRepo, logger)

	// 8. 创建 Kafka 消费者与生产者
	readingConsumer, err := consumer.NewReadingConsumer(
		cfg.Kafka.Brokers, cfg.Kafka.ReadingTopic, cfg.Kafka.ProcessGroupID,
		proc.ProcessReading, logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reading consumer: %w", err)
	}
	storeConsumer, err := consumer.NewReadingConsumer(
		cfg.Kafka.Brokers, cfg.Kafka.StoreTopic, cfg.Kafka.StoreGroupID,
		proc.ProcessStoreMessage, logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store consumer: %w", err)
	}

	readingProducer, err := producer.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ReadingTopic, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create reading producer: %w", err)
	}
	storeProducer, err := producer.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.StoreTopic, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create store producer: %w", err)
	}

	// 9. 创建 HTTP 层
	router := httpapi.NewRouter(logger)
	router.RegisterSensorRoutes(
		httpapi.NewSensorHandler(readingProducer, storeProducer, logger),
		httpapi.NewDeviceAuth(cfg.HTTP.JWTSecret, logger),
	)
	router.RegisterAlertRoutes(httpapi.NewAlertHandler(alertRepo, alertCache, logger))

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	return &MonitorService{
		config:          cfg,
		db:              db,
		redisClient:     redisClient,
		mqttClient:      mqttClient,
		logger:          logger,
		states:          states,
		alertRepo:       alertRepo,
		patientRepo:     patientRepo,
		telemetryRepo:   telemetryRepo,
		alertCache:      alertCache,
		processor:       proc,
		readingConsumer: readingConsumer,
		storeConsumer:   storeConsumer,
		readingProducer: readingProducer,
		storeProducer:   storeProducer,
		httpServer:      httpServer,
	}, nil
}

// Start 启动服务（消费循环、状态清理、HTTP 服务）
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting monitor service",
		zap.String("http_addr", s.config.HTTP.Addr),
		zap.String("reading_topic", s.config.Kafka.ReadingTopic),
		zap.String("store_topic", s.config.Kafka.StoreTopic),
	)

	s.states.StartSweep(ctx, s.config.Detection.SweepInterval, s.config.Detection.StaleThreshold)

	go func() {
		if err := s.readingConsumer.Run(ctx); err != nil {
			s.logger.Error("Reading consumer stopped with error", zap.Error(err))
		}
	}()
	go func() {
		if err := s.storeConsumer.Run(ctx); err != nil {
			s.logger.Error("Store consumer stopped with error", zap.Error(err))
		}
	}()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server stopped with error", zap.Error(err))
		}
	}()

	return nil
}

// Stop 停止服务并释放资源
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping monitor service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to shutdown http server", zap.Error(err))
	}

	if err := s.readingConsumer.Close(); err != nil {
		s.logger.Error("Failed to close reading consumer", zap.Error(err))
	}
	if err := s.storeConsumer.Close(); err != nil {
		s.logger.Error("Failed to close store consumer", zap.Error(err))
	}
	if err := s.readingProducer.Close(); err != nil {
		s.logger.Error("Failed to close reading producer", zap.Error(err))
	}
	if err := s.storeProducer.Close(); err != nil {
		s.logger.Error("Failed to close store producer", zap.Error(err))
	}

	s.telemetryRepo.Close()
	s.mqttClient.Disconnect()

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}
	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}

	return nil
}

// buildDSN 构建数据库连接字符串
func buildDSN(cfg *config.Config) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.SSLMode,
	)
}
