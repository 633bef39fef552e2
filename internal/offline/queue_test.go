package offline

import (
	"context"
	"errors"
	"testing"
	"time"

	"wisefido-emergency/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, *RedisQueue) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { redisClient.Close() })

	return mr, redisClient, NewRedisQueue(redisClient, "", zap.NewNop())
}

func sosItem(id string, at time.Time) models.QueuedAlert {
	return models.QueuedAlert{
		EmergencyAlert: models.EmergencyAlert{
			ID:        id,
			Type:      models.AlertTypeSOS,
			Level:     models.AlertLevelCaregiver,
			Status:    models.AlertStatusActive,
			Title:     "SOS Emergency",
			Timestamp: at,
			IsOffline: true,
			Location:  &models.Location{Lat: 1, Lng: 2},
		},
		QueuedAt: at,
	}
}

func queues(t *testing.T) map[string]Queue {
	_, _, rq := setupTestRedis(t)
	return map[string]Queue{
		"memory": NewMemoryQueue(),
		"redis":  rq,
	}
}

func TestQueue_DrainThree(t *testing.T) {
	for name, q := range queues(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

			for _, id := range []string{"a1", "a2", "a3"} {
				require.NoError(t, q.Enqueue(ctx, sosItem(id, at)))
			}

			n, err := q.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			pending, err := q.Pending(ctx)
			require.NoError(t, err)
			assert.Len(t, pending, 3)

			drained, err := q.Drain(ctx)
			require.NoError(t, err)
			require.Len(t, drained, 3)
			assert.Equal(t, "a1", drained[0].ID)
			assert.Equal(t, "a3", drained[2].ID)
			assert.True(t, drained[0].QueuedAt.Equal(at))
			assert.Equal(t, 1.0, drained[0].Location.Lat)

			n, err = q.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)

			drained, err = q.Drain(ctx)
			require.NoError(t, err)
			assert.Empty(t, drained)
		})
	}
}

func TestQueue_EnqueueAfterDrainKept(t *testing.T) {
	for name, q := range queues(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, q.Enqueue(ctx, sosItem("a1", time.Now())))

			_, err := q.Drain(ctx)
			require.NoError(t, err)

			require.NoError(t, q.Enqueue(ctx, sosItem("a2", time.Now())))
			pending, err := q.Pending(ctx)
			require.NoError(t, err)
			require.Len(t, pending, 1)
			assert.Equal(t, "a2", pending[0].ID)
		})
	}
}

func TestQueue_RequeueKeepsOrderAtHead(t *testing.T) {
	for name, q := range queues(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
			for _, id := range []string{"a1", "a2"} {
				require.NoError(t, q.Enqueue(ctx, sosItem(id, at)))
			}

			drained, err := q.Drain(ctx)
			require.NoError(t, err)
			require.NoError(t, q.Enqueue(ctx, sosItem("a3", at)))
			require.NoError(t, q.Requeue(ctx, drained))
			require.NoError(t, q.Requeue(ctx, nil))

			pending, err := q.Pending(ctx)
			require.NoError(t, err)
			ids := make([]string, 0, len(pending))
			for _, item := range pending {
				ids = append(ids, item.ID)
			}
			assert.Equal(t, []string{"a1", "a2", "a3"}, ids)
		})
	}
}

func TestRedisQueue_SkipsCorruptEntries(t *testing.T) {
	mr, _, q := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, sosItem("a1", time.Now())))
	_, err := mr.RPush(DefaultQueueKey, "{not json")
	require.NoError(t, err)

	drained, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Len(t, drained, 1)
	assert.False(t, mr.Exists(DefaultQueueKey))
}

func TestRedisQueue_Unavailable(t *testing.T) {
	mr, _, q := setupTestRedis(t)
	mr.Close()

	err := q.Enqueue(context.Background(), sosItem("a1", time.Now()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQueueUnavailable))

	_, err = q.Drain(context.Background())
	assert.True(t, errors.Is(err, ErrQueueUnavailable))
}
