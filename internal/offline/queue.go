package offline

import (
	"context"
	"errors"
	"sync"

	"wisefido-emergency/internal/models"
)

// ErrQueueUnavailable 离线队列存储不可用
// 队列只是同步/审计用的旁路，报警存储不受影响
var ErrQueueUnavailable = errors.New("offline queue unavailable")

// Queue 离线报警队列
type Queue interface {
	// Enqueue 追加一条记录
	Enqueue(ctx context.Context, item models.QueuedAlert) error
	// Pending 查看当前全部记录（不清除）
	Pending(ctx context.Context) ([]models.QueuedAlert, error)
	// Drain 原子地取出并清空；Drain 期间新追加的记录保留在队列中
	Drain(ctx context.Context) ([]models.QueuedAlert, error)
	// Requeue 把 Drain 取出的记录按原顺序放回队首
	Requeue(ctx context.Context, items []models.QueuedAlert) error
	// Len 记录数
	Len(ctx context.Context) (int, error)
}

// MemoryQueue 进程内队列（无 Redis 时使用）
type MemoryQueue struct {
	mu    sync.Mutex
	items []models.QueuedAlert
}

// NewMemoryQueue 创建进程内队列
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Enqueue 追加
func (q *MemoryQueue) Enqueue(_ context.Context, item models.QueuedAlert) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, cloneItem(item))
	return nil
}

// Pending 查看
func (q *MemoryQueue) Pending(_ context.Context) ([]models.QueuedAlert, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.QueuedAlert, 0, len(q.items))
	for _, item := range q.items {
		out = append(out, cloneItem(item))
	}
	return out, nil
}

// Drain 取出并清空
func (q *MemoryQueue) Drain(_ context.Context) ([]models.QueuedAlert, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	if out == nil {
		out = []models.QueuedAlert{}
	}
	return out, nil
}

// Requeue 放回队首
func (q *MemoryQueue) Requeue(_ context.Context, items []models.QueuedAlert) error {
	if len(items) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	head := make([]models.QueuedAlert, 0, len(items)+len(q.items))
	for _, item := range items {
		head = append(head, cloneItem(item))
	}
	q.items = append(head, q.items...)
	return nil
}

// Len 记录数
func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

func cloneItem(item models.QueuedAlert) models.QueuedAlert {
	c := item
	c.EmergencyAlert = *item.EmergencyAlert.Clone()
	return c
}
