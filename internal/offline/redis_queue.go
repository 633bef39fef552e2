package offline

import (
	"context"
	"encoding/json"
	"fmt"

	"wisefido-emergency/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultQueueKey 默认 Redis 列表键
const DefaultQueueKey = "emergency:offline:alerts"

// RedisQueue 基于 Redis 列表的离线队列（设备重启后保留）
type RedisQueue struct {
	redisClient *redis.Client
	key         string
	logger      *zap.Logger
}

// NewRedisQueue 创建 Redis 离线队列
func NewRedisQueue(redisClient *redis.Client, key string, logger *zap.Logger) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisQueue{
		redisClient: redisClient,
		key:         key,
		logger:      logger,
	}
}

// Enqueue RPUSH 一条 JSON 记录
func (q *RedisQueue) Enqueue(ctx context.Context, item models.QueuedAlert) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal queued alert: %w", err)
	}
	if err := q.redisClient.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("%w: failed to push alert %s: %w", ErrQueueUnavailable, item.ID, err)
	}
	return nil
}

// Pending LRANGE 全部记录
func (q *RedisQueue) Pending(ctx context.Context) ([]models.QueuedAlert, error) {
	vals, err := q.redisClient.LRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read queue: %w", ErrQueueUnavailable, err)
	}
	return q.decode(vals), nil
}

// Drain 在 MULTI/EXEC 中执行 LRANGE + DEL
// 事务之后的 RPUSH 会写入新列表，不会丢失
func (q *RedisQueue) Drain(ctx context.Context) ([]models.QueuedAlert, error) {
	var rng *redis.StringSliceCmd
	_, err := q.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rng = pipe.LRange(ctx, q.key, 0, -1)
		pipe.Del(ctx, q.key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to drain queue: %w", ErrQueueUnavailable, err)
	}
	return q.decode(rng.Val()), nil
}

// Requeue 一次 LPUSH 放回队首；按倒序推入以保持原顺序
func (q *RedisQueue) Requeue(ctx context.Context, items []models.QueuedAlert) error {
	if len(items) == 0 {
		return nil
	}
	vals := make([]interface{}, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		data, err := json.Marshal(items[i])
		if err != nil {
			return fmt.Errorf("failed to marshal queued alert: %w", err)
		}
		vals = append(vals, data)
	}
	if err := q.redisClient.LPush(ctx, q.key, vals...).Err(); err != nil {
		return fmt.Errorf("%w: failed to requeue %d alerts: %w", ErrQueueUnavailable, len(items), err)
	}
	return nil
}

// Len LLEN
func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.redisClient.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read queue length: %w", ErrQueueUnavailable, err)
	}
	return int(n), nil
}

func (q *RedisQueue) decode(vals []string) []models.QueuedAlert {
	out := make([]models.QueuedAlert, 0, len(vals))
	for _, v := range vals {
		var item models.QueuedAlert
		if err := json.Unmarshal([]byte(v), &item); err != nil {
			// 损坏的记录跳过，不影响其他记录
			q.logger.Warn("Skipping corrupt offline queue entry",
				zap.String("key", q.key),
				zap.Error(err),
			)
			continue
		}
		out = append(out, item)
	}
	return out
}
