package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Sigmacare/iot-stream-kafka/internal/models"

	"go.uber.org/zap"
)

// ReadingPublisher 采样消息的 Kafka 发布协作方
type ReadingPublisher interface {
	Publish(ctx context.Context, deviceCode string, payload []byte) error
}

// SensorHandler 设备采样上报接口
// 校验后把原始载荷同时投递到检测流和存储流
type SensorHandler struct {
	readingStream ReadingPublisher
	storeStream   ReadingPublisher
	logger        *zap.Logger
}

// NewSensorHandler 创建采样上报处理器
func NewSensorHandler(readingStream, storeStream ReadingPublisher, logger *zap.Logger) *SensorHandler {
	return &SensorHandler{
		readingStream: readingStream,
		storeStream:   storeStream,
		logger:        logger,
	}
}

// Ingest POST /sensor
// 202 表示已入队，处理结果异步可见
func (h *SensorHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r, 1<<20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	reading, err := models.ParseSensorReading(body, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	ctx := r.Context()
	if err := h.readingStream.Publish(ctx, reading.DeviceCode, body); err != nil {
		h.logger.Error("Failed to publish to reading stream",
			zap.String("device_code", reading.DeviceCode),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if err := h.storeStream.Publish(ctx, reading.DeviceCode, body); err != nil {
		h.logger.Error("Failed to publish to store stream",
			zap.String("device_code", reading.DeviceCode),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Data received & queued for processing",
	})
}
