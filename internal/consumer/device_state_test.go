package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Sigmacare/iot-stream-kafka/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore() *DeviceStateStore {
	return NewDeviceStateStore(30*time.Second, zap.NewNop())
}

func readingAt(device string, ts time.Time) models.SensorReading {
	return models.SensorReading{
		DeviceCode: device,
		AccelZ:     9.8,
		HeartRate:  72,
		Oxygen:     98,
		ObservedAt: ts,
	}
}

func TestDeviceStateStore_AcquireCreatesState(t *testing.T) {
	store := newTestStore()

	state, release := store.Acquire("SB-001")
	defer release()

	require.NotNil(t, state)
	assert.Empty(t, state.History)
	assert.Equal(t, FallIdle, state.Fall.Phase)
	assert.Equal(t, 1, store.Len())
}

func TestDeviceStateStore_UpdateAppendsAndPrunes(t *testing.T) {
	store := newTestStore()
	now := time.Now()

	state, release := store.Acquire("SB-001")
	defer release()

	// 窗口外的旧采样在下次更新时被裁剪
	store.Update(state, readingAt("SB-001", now.Add(-45*time.Second)))
	store.Update(state, readingAt("SB-001", now.Add(-10*time.Second)))
	store.Update(state, readingAt("SB-001", now))

	require.Len(t, state.History, 2)
	assert.Equal(t, now, state.LastActivityAt)
	assert.True(t, state.History[0].ObservedAt.Before(state.History[1].ObservedAt))
}

func TestDeviceState_ReadingsSince(t *testing.T) {
	now := time.Now()
	state := &DeviceState{}
	state.Append(readingAt("SB-001", now.Add(-20*time.Second)), 30*time.Second)
	state.Append(readingAt("SB-001", now.Add(-5*time.Second)), 30*time.Second)
	state.Append(readingAt("SB-001", now), 30*time.Second)

	recent := state.ReadingsSince(now.Add(-10 * time.Second))
	assert.Len(t, recent, 2)

	all := state.ReadingsSince(now.Add(-time.Minute))
	assert.Len(t, all, 3)

	none := state.ReadingsSince(now)
	assert.Empty(t, none)
}

func TestDeviceState_RecentReadings(t *testing.T) {
	now := time.Now()
	state := &DeviceState{}
	for i := 0; i < 5; i++ {
		state.Append(readingAt("SB-001", now.Add(time.Duration(i)*time.Second)), time.Minute)
	}

	assert.Len(t, state.RecentReadings(3), 3)
	assert.Len(t, state.RecentReadings(10), 5)
}

func TestDeviceStateStore_SweepRemovesStale(t *testing.T) {
	store := newTestStore()
	now := time.Now()

	state, release := store.Acquire("SB-stale")
	store.Update(state, readingAt("SB-stale", now.Add(-2*time.Minute)))
	release()

	state, release = store.Acquire("SB-active")
	store.Update(state, readingAt("SB-active", now))
	release()

	removed := store.SweepOnce(now, time.Minute)

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
}

func TestDeviceStateStore_SweepSkipsLockedDevice(t *testing.T) {
	store := newTestStore()
	now := time.Now()

	state, release := store.Acquire("SB-busy")
	store.Update(state, readingAt("SB-busy", now.Add(-2*time.Minute)))

	// 设备锁被处理链路持有时，扫描不得移除该设备
	removed := store.SweepOnce(now, time.Minute)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 1, store.Len())

	release()

	removed = store.SweepOnce(now, time.Minute)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, store.Len())
}

func TestDeviceStateStore_StartSweepReturnsImmediately(t *testing.T) {
	store := newTestStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state, release := store.Acquire("SB-stale")
	store.Update(state, readingAt("SB-stale", time.Now().Add(-2*time.Minute)))
	release()

	// 调用方（服务 Start）依赖 StartSweep 立即返回，扫描在后台进行
	done := make(chan struct{})
	go func() {
		store.StartSweep(ctx, 10*time.Millisecond, time.Minute)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StartSweep did not return")
	}

	assert.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 10*time.Millisecond, "background sweep did not evict stale device")
}

func TestDeviceStateStore_ConcurrentDevicesIndependent(t *testing.T) {
	store := newTestStore()
	now := time.Now()

	var wg sync.WaitGroup
	devices := []string{"SB-001", "SB-002", "SB-003", "SB-004"}
	for _, code := range devices {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				state, release := store.Acquire(code)
				store.Update(state, readingAt(code, now.Add(time.Duration(i)*100*time.Millisecond)))
				release()
			}
		}(code)
	}
	wg.Wait()

	assert.Equal(t, len(devices), store.Len())
	for _, code := range devices {
		state, release := store.Acquire(code)
		assert.NotEmpty(t, state.History)
		release()
	}
}
