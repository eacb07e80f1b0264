package notifier

import (
	"fmt"
	"time"

	"github.com/Sigmacare/iot-stream-kafka/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// EmergencyCaller 紧急语音呼叫协作方（fire-and-forget）
type EmergencyCaller interface {
	Notify(phoneNumber string)
}

// TwilioCaller Twilio Studio Flow 执行客户端
// 通过 REST API 触发预配置的语音呼叫流程
type TwilioCaller struct {
	httpClient *resty.Client
	cfg        *config.TwilioConfig
	logger     *zap.Logger
}

// twilioExecution Twilio Execution 创建响应
type twilioExecution struct {
	Sid    string `json:"sid"`
	Status string `json:"status"`
}

// NewTwilioCaller 创建 Twilio 呼叫客户端
func NewTwilioCaller(cfg *config.TwilioConfig, logger *zap.Logger) *TwilioCaller {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetHeader("Accept", "application/json")

	return &TwilioCaller{
		httpClient: client,
		cfg:        cfg,
		logger:     logger,
	}
}

// Notify 触发紧急呼叫流程
// 失败只记录日志：呼叫结果不影响报警合并的正确性，重试策略属于 Twilio 侧
func (c *TwilioCaller) Notify(phoneNumber string) {
	if phoneNumber == "" {
		c.logger.Warn("Emergency contact not configured, skipping call")
		return
	}

	var execution twilioExecution
	resp, err := c.httpClient.R().
		SetFormData(map[string]string{
			"To":   phoneNumber,
			"From": c.cfg.FromNumber,
		}).
		SetResult(&execution).
		Post(fmt.Sprintf("/v2/Flows/%s/Executions", c.cfg.FlowSID))

	if err != nil {
		c.logger.Error("Emergency call dispatch failed",
			zap.String("to", phoneNumber),
			zap.Error(err),
		)
		return
	}
	if resp.IsError() {
		c.logger.Error("Emergency call rejected by Twilio",
			zap.String("to", phoneNumber),
			zap.Int("status_code", resp.StatusCode()),
		)
		return
	}

	c.logger.Info("Emergency call dispatched",
		zap.String("to", phoneNumber),
		zap.String("execution_sid", execution.Sid),
	)
}
