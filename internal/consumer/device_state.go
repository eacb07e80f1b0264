package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/Sigmacare/iot-stream-kafka/internal/models"

	"go.uber.org/zap"
)

// FallPhase 跌倒状态机阶段
type FallPhase int

const (
	FallIdle FallPhase = iota
	FallFreeFallSuspected
	FallImpactSuspected
)

// FallState 跌倒检测状态（标签化状态 + 各阶段进入时间）
type FallState struct {
	Phase      FallPhase `json:"phase"`
	FreeFallAt time.Time `json:"free_fall_at,omitempty"` // 疑似自由落体开始时间
	ImpactAt   time.Time `json:"impact_at,omitempty"`    // 疑似撞击时间
}

// DeviceState 设备运行时状态（引擎独占，纯内存，不持久化）
// 淘汰后丢失可接受：后续采样可重建
type DeviceState struct {
	History        []models.SensorReading // 滚动采样历史（按到达顺序，按时间窗裁剪）
	Fall           FallState              // 跌倒状态机状态
	LastActivityAt time.Time              // 最近一次采样时间（用于淘汰）
}

// Append 追加采样并裁剪历史窗口
func (d *DeviceState) Append(reading models.SensorReading, window time.Duration) {
	cutoff := reading.ObservedAt.Add(-window)

	// 原地裁剪过期采样（保持顺序）
	kept := d.History[:0]
	for _, r := range d.History {
		if r.ObservedAt.After(cutoff) {
			kept = append(kept, r)
		}
	}
	d.History = append(kept, reading)
	d.LastActivityAt = reading.ObservedAt
}

// ReadingsSince 返回窗口内的采样（cutoff 之后）
func (d *DeviceState) ReadingsSince(cutoff time.Time) []models.SensorReading {
	for i, r := range d.History {
		if r.ObservedAt.After(cutoff) {
			return d.History[i:]
		}
	}
	return nil
}

// RecentReadings 返回最近 n 条采样
func (d *DeviceState) RecentReadings(n int) []models.SensorReading {
	if len(d.History) <= n {
		return d.History
	}
	return d.History[len(d.History)-n:]
}

// deviceEntry 设备状态条目（条目锁同时串行化该设备的整条处理链路）
type deviceEntry struct {
	mu    sync.Mutex
	state DeviceState
}

// DeviceStateStore 设备状态存储（按 device_code 索引）
type DeviceStateStore struct {
	mu      sync.Mutex
	devices map[string]*deviceEntry
	window  time.Duration
	logger  *zap.Logger
}

// NewDeviceStateStore 创建设备状态存储
func NewDeviceStateStore(window time.Duration, logger *zap.Logger) *DeviceStateStore {
	return &DeviceStateStore{
		devices: make(map[string]*deviceEntry),
		window:  window,
		logger:  logger,
	}
}

// Acquire 获取设备状态并持有该设备锁（不存在则创建）
// 返回的 release 必须在处理链路结束后调用；同一设备的
// update→evaluate→reconcile→dispatch 全程持锁，保证每设备串行
func (s *DeviceStateStore) Acquire(deviceCode string) (*DeviceState, func()) {
	for {
		s.mu.Lock()
		entry, ok := s.devices[deviceCode]
		if !ok {
			entry = &deviceEntry{}
			s.devices[deviceCode] = entry
		}
		s.mu.Unlock()

		entry.mu.Lock()

		// 等锁期间条目可能已被淘汰扫描移除，重新检查后重试
		s.mu.Lock()
		current := s.devices[deviceCode]
		s.mu.Unlock()
		if current == entry {
			return &entry.state, entry.mu.Unlock
		}
		entry.mu.Unlock()
	}
}

// Update 在持锁状态下追加采样
func (s *DeviceStateStore) Update(state *DeviceState, reading models.SensorReading) {
	state.Append(reading, s.window)
}

// Len 当前跟踪的设备数
func (s *DeviceStateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices)
}

// StartSweep 启动空闲设备淘汰的后台扫描（固定间隔，与消息到达无关）
// 立即返回，扫描循环在后台运行直到 ctx 取消
func (s *DeviceStateStore) StartSweep(ctx context.Context, interval, stale time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Device state sweep stopped")
				return
			case <-ticker.C:
				removed := s.SweepOnce(time.Now(), stale)
				if removed > 0 {
					s.logger.Info("Evicted stale device states",
						zap.Int("removed", removed),
						zap.Int("remaining", s.Len()),
					)
				}
			}
		}
	}()
}

// SweepOnce 执行一次淘汰扫描，返回移除的条目数
// 只移除能原子抢占的条目（TryLock），绝不与进行中的处理链路竞争
func (s *DeviceStateStore) SweepOnce(now time.Time, stale time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for code, entry := range s.devices {
		if !entry.mu.TryLock() {
			// 该设备正在处理中，下一轮再看
			continue
		}
		if now.Sub(entry.state.LastActivityAt) > stale {
			delete(s.devices, code)
			removed++
		}
		entry.mu.Unlock()
	}
	return removed
}
