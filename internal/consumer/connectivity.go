package consumer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wisefido-emergency/internal/metrics"
	"wisefido-emergency/internal/models"
	"wisefido-emergency/internal/offline"

	"go.uber.org/zap"
)

// SyncConfirmer 恢复联网后确认离线报警已同步
// 返回错误时本次同步取消，报警重新入队
type SyncConfirmer interface {
	ConfirmSync(ctx context.Context, alerts []models.QueuedAlert) error
}

// SyncConfirmerFunc 函数适配
type SyncConfirmerFunc func(ctx context.Context, alerts []models.QueuedAlert) error

// ConfirmSync 实现 SyncConfirmer
func (f SyncConfirmerFunc) ConfirmSync(ctx context.Context, alerts []models.QueuedAlert) error {
	return f(ctx, alerts)
}

// AutoConfirm 无需人工确认，直接清空
type AutoConfirm struct{}

// ConfirmSync 实现 SyncConfirmer
func (AutoConfirm) ConfirmSync(context.Context, []models.QueuedAlert) error { return nil }

// ConnectivityMonitor 网络状态；离线 -> 在线时同步离线队列
type ConnectivityMonitor struct {
	queue     offline.Queue
	confirmer SyncConfirmer
	logger    *zap.Logger

	mu     sync.Mutex
	online bool

	// syncMu 串行化同步过程
	syncMu sync.Mutex
}

// NewConnectivityMonitor 创建网络状态监控
func NewConnectivityMonitor(queue offline.Queue, confirmer SyncConfirmer, online bool, logger *zap.Logger) *ConnectivityMonitor {
	if confirmer == nil {
		confirmer = AutoConfirm{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectivityMonitor{
		queue:     queue,
		confirmer: confirmer,
		logger:    logger,
		online:    online,
	}
}

// Online 当前是否在线
func (m *ConnectivityMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline 更新网络状态；离线 -> 在线时同步离线队列，返回同步的报警数
func (m *ConnectivityMonitor) SetOnline(ctx context.Context, online bool) (int, error) {
	m.mu.Lock()
	prev := m.online
	m.online = online
	m.mu.Unlock()

	if prev == online {
		return 0, nil
	}
	m.logger.Info("Connectivity changed", zap.Bool("online", online))
	if !online {
		return 0, nil
	}
	return m.Sync(ctx)
}

// Sync 取出全部离线报警交给 SyncConfirmer 确认
// 先整体取出再确认，取出后新入队的报警留给下一次同步
func (m *ConnectivityMonitor) Sync(ctx context.Context) (int, error) {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()

	drained, err := m.queue.Drain(ctx)
	if err != nil {
		m.logger.Error("Failed to drain offline queue", zap.Error(err))
		return 0, fmt.Errorf("failed to drain offline queue: %w", err)
	}
	if len(drained) == 0 {
		return 0, nil
	}

	if err := m.confirmer.ConfirmSync(ctx, drained); err != nil {
		m.logger.Warn("Offline sync not confirmed, requeueing",
			zap.Int("count", len(drained)),
			zap.Error(err),
		)
		m.requeue(ctx, drained)
		return 0, fmt.Errorf("offline sync not confirmed: %w", err)
	}

	metrics.AddOfflineDrained(len(drained))
	if n, err := m.queue.Len(ctx); err == nil {
		metrics.SetOfflineQueueDepth(n)
	}
	m.logger.Info("Offline alerts synced", zap.Int("count", len(drained)))
	return len(drained), nil
}

// requeue 放回队首，确认期间新追加的记录排在其后
func (m *ConnectivityMonitor) requeue(ctx context.Context, items []models.QueuedAlert) {
	if err := m.queue.Requeue(ctx, items); err != nil {
		m.logger.Error("Failed to requeue offline alerts",
			zap.Int("count", len(items)),
			zap.Error(err),
		)
	}
}

// Start 按 interval 调用 isOnline 更新网络状态，阻塞直到 ctx 取消
func (m *ConnectivityMonitor) Start(ctx context.Context, interval time.Duration, isOnline func() bool) error {
	if isOnline == nil {
		return fmt.Errorf("connectivity check is required")
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check := func() {
		if _, err := m.SetOnline(ctx, isOnline()); err != nil {
			m.logger.Error("Connectivity check failed", zap.Error(err))
		}
	}
	check()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Connectivity monitor stopped")
			return nil
		case <-ticker.C:
			check()
		}
	}
}
