package notifier

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sigmacare/iot-stream-kafka/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePublisher 记录发布调用的测试替身
type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

// fakeCaller 记录呼叫次数的测试替身
type fakeCaller struct {
	mu    sync.Mutex
	calls []string
	done  chan struct{}
}

func (c *fakeCaller) Notify(phoneNumber string) {
	c.mu.Lock()
	c.calls = append(c.calls, phoneNumber)
	c.mu.Unlock()
	if c.done != nil {
		close(c.done)
	}
}

func testAlert(kinds ...string) *models.Alert {
	return &models.Alert{
		AlertID:    "a1b2c3",
		DeviceCode: "SB-1001",
		AlertTypes: kinds,
		AlertData: models.SensorReading{
			DeviceCode: "SB-1001",
			HeartRate:  150,
			ObservedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher_PublishesPerNewKind(t *testing.T) {
	pub := &fakePublisher{}
	d := NewDispatcher(pub, nil, "+15550100", zap.NewNop())

	alert := testAlert(models.ConditionFall, models.ConditionLowOxygen)
	d.Dispatch(alert, []string{models.ConditionFall, models.ConditionLowOxygen}, false)

	require.Len(t, pub.topics, 2)
	assert.Equal(t, "alerts/fall_detected", pub.topics[0])
	assert.Equal(t, "alerts/low_oxygen_level", pub.topics[1])

	// 每条通知都携带报警的完整类别列表
	var notice models.AlertNotice
	require.NoError(t, json.Unmarshal(pub.payloads[0], &notice))
	assert.Equal(t, "SB-1001", notice.DeviceCode)
	assert.Equal(t, []string{models.ConditionFall, models.ConditionLowOxygen}, notice.AlertType)
	assert.False(t, notice.Resolved)
}

func TestDispatcher_NoNewKindsNoPublish(t *testing.T) {
	pub := &fakePublisher{}
	d := NewDispatcher(pub, nil, "+15550100", zap.NewNop())

	d.Dispatch(testAlert(models.ConditionFall), nil, false)

	assert.Empty(t, pub.topics)
}

func TestDispatcher_CallsOnceOnCreation(t *testing.T) {
	pub := &fakePublisher{}
	caller := &fakeCaller{done: make(chan struct{})}
	d := NewDispatcher(pub, caller, "+15550100", zap.NewNop())

	d.Dispatch(testAlert(models.ConditionFall), []string{models.ConditionFall}, true)

	select {
	case <-caller.done:
	case <-time.After(2 * time.Second):
		t.Fatal("emergency call was not triggered")
	}

	caller.mu.Lock()
	defer caller.mu.Unlock()
	require.Len(t, caller.calls, 1)
	assert.Equal(t, "+15550100", caller.calls[0])
}

func TestDispatcher_NoCallWhenAppendingToExistingAlert(t *testing.T) {
	pub := &fakePublisher{}
	caller := &fakeCaller{}
	d := NewDispatcher(pub, caller, "+15550100", zap.NewNop())

	d.Dispatch(testAlert(models.ConditionFall, models.ConditionAbnormalHR),
		[]string{models.ConditionAbnormalHR}, false)

	time.Sleep(50 * time.Millisecond)
	caller.mu.Lock()
	defer caller.mu.Unlock()
	assert.Empty(t, caller.calls)
}

func TestDispatcher_PublishFailureDoesNotPanic(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	d := NewDispatcher(pub, nil, "+15550100", zap.NewNop())

	assert.NotPanics(t, func() {
		d.Dispatch(testAlert(models.ConditionFall), []string{models.ConditionFall}, false)
	})
}
