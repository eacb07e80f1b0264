package alert

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Sigmacare/iot-stream-kafka/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore 内存版 Store（按设备保存最近一条未解决报警）
type fakeStore struct {
	alerts    map[string]*models.Alert
	saveCalls int
	findErr   error
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{alerts: make(map[string]*models.Alert)}
}

func (s *fakeStore) FindOpenAlert(_ context.Context, deviceCode string) (*models.Alert, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	a, ok := s.alerts[deviceCode]
	if !ok || a.Resolved {
		return nil, nil
	}
	cp := *a
	cp.AlertTypes = append([]string(nil), a.AlertTypes...)
	return &cp, nil
}

func (s *fakeStore) Save(_ context.Context, alert *models.Alert) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saveCalls++
	cp := *alert
	cp.AlertTypes = append([]string(nil), alert.AlertTypes...)
	s.alerts[alert.DeviceCode] = &cp
	return nil
}

func testReading(device string) models.SensorReading {
	return models.SensorReading{
		DeviceCode: device,
		AccelZ:     9.8,
		HeartRate:  72,
		Oxygen:     85,
		ObservedAt: time.Now(),
	}
}

func TestReconcile_CreatesAlertOnFirstDetection(t *testing.T) {
	store := newFakeStore()
	lc := NewLifecycle(store, zap.NewNop())

	alert, newlyAdded, created, err := lc.Reconcile(
		context.Background(), "SB-001",
		[]string{models.ConditionLowOxygen},
		testReading("SB-001"),
	)

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.True(t, created)
	assert.NotEmpty(t, alert.AlertID)
	assert.Equal(t, []string{models.ConditionLowOxygen}, alert.AlertTypes)
	assert.Equal(t, []string{models.ConditionLowOxygen}, newlyAdded)
	assert.False(t, alert.Resolved)
	assert.Equal(t, 1, store.saveCalls)
}

func TestReconcile_NoConditionsNoAlert(t *testing.T) {
	store := newFakeStore()
	lc := NewLifecycle(store, zap.NewNop())

	alert, newlyAdded, created, err := lc.Reconcile(
		context.Background(), "SB-001", nil, testReading("SB-001"),
	)

	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Empty(t, newlyAdded)
	assert.False(t, created)
	assert.Equal(t, 0, store.saveCalls)
}

func TestReconcile_ReplayIsIdempotent(t *testing.T) {
	store := newFakeStore()
	lc := NewLifecycle(store, zap.NewNop())
	ctx := context.Background()

	_, _, _, err := lc.Reconcile(ctx, "SB-001", []string{models.ConditionLowOxygen}, testReading("SB-001"))
	require.NoError(t, err)

	// 重放同一条件集：无写入、无新增
	alert, newlyAdded, created, err := lc.Reconcile(ctx, "SB-001", []string{models.ConditionLowOxygen}, testReading("SB-001"))

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Empty(t, newlyAdded)
	assert.False(t, created)
	assert.Equal(t, 1, store.saveCalls)
}

func TestReconcile_AppendsNewConditionWithoutRemoving(t *testing.T) {
	store := newFakeStore()
	lc := NewLifecycle(store, zap.NewNop())
	ctx := context.Background()

	_, _, _, err := lc.Reconcile(ctx, "SB-001", []string{models.ConditionLowOxygen}, testReading("SB-001"))
	require.NoError(t, err)

	// 低血氧持续的同时新增跌倒
	alert, newlyAdded, created, err := lc.Reconcile(
		ctx, "SB-001",
		[]string{models.ConditionFall, models.ConditionLowOxygen},
		testReading("SB-001"),
	)

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.False(t, created)
	assert.Equal(t, []string{models.ConditionFall}, newlyAdded)
	// 插入顺序保留，已有条件不移除
	assert.Equal(t, []string{models.ConditionLowOxygen, models.ConditionFall}, alert.AlertTypes)
	assert.Equal(t, 2, store.saveCalls)
}

func TestReconcile_ResolvedAlertGetsFreshRecord(t *testing.T) {
	store := newFakeStore()
	lc := NewLifecycle(store, zap.NewNop())
	ctx := context.Background()

	first, _, _, err := lc.Reconcile(ctx, "SB-001", []string{models.ConditionFall}, testReading("SB-001"))
	require.NoError(t, err)

	// 外部解决后再次检测同一条件 → 创建全新记录而非复用已解决的
	store.alerts["SB-001"].Resolved = true

	second, newlyAdded, created, err := lc.Reconcile(ctx, "SB-001", []string{models.ConditionFall}, testReading("SB-001"))

	require.NoError(t, err)
	require.NotNil(t, second)
	assert.True(t, created)
	assert.NotEqual(t, first.AlertID, second.AlertID)
	assert.False(t, second.Resolved)
	assert.Equal(t, []string{models.ConditionFall}, newlyAdded)
}

func TestReconcile_FindErrorAborts(t *testing.T) {
	store := newFakeStore()
	store.findErr = fmt.Errorf("connection refused")
	lc := NewLifecycle(store, zap.NewNop())

	alert, newlyAdded, created, err := lc.Reconcile(
		context.Background(), "SB-001",
		[]string{models.ConditionFall},
		testReading("SB-001"),
	)

	assert.Error(t, err)
	assert.Nil(t, alert)
	assert.Empty(t, newlyAdded)
	assert.False(t, created)
}

func TestReconcile_SaveErrorAborts(t *testing.T) {
	store := newFakeStore()
	store.saveErr = fmt.Errorf("write timeout")
	lc := NewLifecycle(store, zap.NewNop())

	_, _, _, err := lc.Reconcile(
		context.Background(), "SB-001",
		[]string{models.ConditionFall},
		testReading("SB-001"),
	)

	assert.Error(t, err)
	// 下一条采样从最新存储状态重试，创建仍然成立
	store.saveErr = nil
	alert, newlyAdded, created, err := lc.Reconcile(
		context.Background(), "SB-001",
		[]string{models.ConditionFall},
		testReading("SB-001"),
	)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.True(t, created)
	assert.Equal(t, []string{models.ConditionFall}, newlyAdded)
}
