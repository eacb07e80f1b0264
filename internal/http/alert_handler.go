package httpapi

import (
	"context"
	"net/http"

	"github.com/Sigmacare/iot-stream-kafka/internal/models"

	"go.uber.org/zap"
)

// AlertStore 报警查询与解除协作方
type AlertStore interface {
	ListPending(ctx context.Context) ([]models.Alert, error)
	Resolve(ctx context.Context, deviceCode, alertType string) (bool, error)
}

// AlertCacheReader 活跃报警缓存读取协作方
type AlertCacheReader interface {
	Get(ctx context.Context, deviceCode string) (*models.Alert, error)
	Invalidate(ctx context.Context, deviceCode string) error
}

// AlertHandler 报警查询与解除接口
type AlertHandler struct {
	store  AlertStore
	cache  AlertCacheReader
	logger *zap.Logger
}

// NewAlertHandler 创建报警接口处理器
func NewAlertHandler(store AlertStore, cache AlertCacheReader, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// ListPending GET /pending-alerts
// 按创建时间倒序返回全部未解除报警；
// 带 device_code 参数时先查缓存，未命中再落库
func (h *AlertHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if deviceCode := r.URL.Query().Get("device_code"); deviceCode != "" {
		if cached, err := h.cache.Get(ctx, deviceCode); err == nil && cached != nil {
			writeJSON(w, http.StatusOK, []models.Alert{*cached})
			return
		}
	}

	alerts, err := h.store.ListPending(ctx)
	if err != nil {
		h.logger.Error("Failed to list pending alerts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if alerts == nil {
		alerts = []models.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// resolveRequest POST /resolve-alert 请求体（两个过滤条件均可选）
type resolveRequest struct {
	DeviceCode string `json:"device_code"`
	AlertType  string `json:"alertType"`
}

// Resolve POST /resolve-alert
// 解除最近一条匹配的未解除报警；无匹配返回 404
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readBody(r, 1<<16)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req resolveRequest
	if len(body) > 0 {
		if err := unmarshalJSON(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	resolved, err := h.store.Resolve(ctx, req.DeviceCode, req.AlertType)
	if err != nil {
		h.logger.Error("Failed to resolve alert", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !resolved {
		writeError(w, http.StatusNotFound, "Alert not found or already resolved")
		return
	}

	if req.DeviceCode != "" {
		if err := h.cache.Invalidate(ctx, req.DeviceCode); err != nil {
			h.logger.Warn("Failed to invalidate alert cache",
				zap.String("device_code", req.DeviceCode),
				zap.Error(err),
			)
		}
	}

	h.logger.Info("Alert resolved",
		zap.String("device_code", req.DeviceCode),
		zap.String("alert_type", req.AlertType),
	)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
