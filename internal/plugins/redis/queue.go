package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisEventQueue is a Redis Streams backed queue with consumer-group
// semantics: an entry stays pending until the handler's caller
// acknowledges it, so a worker crash replays it.
type RedisEventQueue struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRedisEventQueue(rdb *redis.Client, log *slog.Logger) *RedisEventQueue {
	return &RedisEventQueue{rdb: rdb, log: log}
}

func (q *RedisEventQueue) streamKey(topic string) string {
	return "stream:" + topic
}

func (q *RedisEventQueue) PublishToStream(ctx context.Context, topic string, payload []byte) error {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.streamKey(topic),
		MaxLen: 1000,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{"data": payload},
	}).Err()
}

func (q *RedisEventQueue) SubscribeToStream(
	ctx context.Context,
	topic string,
	conGroup string,
	handler func(ctx context.Context, entryID string, data []byte) error,
) error {
	stream := q.streamKey(topic)
	// Create group if not exists
	err := q.rdb.XGroupCreateMkStream(ctx, stream, conGroup, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	consumerName := uuid.NewString()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				// Read new entries (">")
				res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
					Group:    conGroup,
					Consumer: consumerName,
					Streams:  []string{stream, ">"},
					Count:    1,
					Block:    2 * time.Second,
				}).Result()
				if err != nil {
					if err != redis.Nil && ctx.Err() == nil {
						q.log.Error("queue - stream read error", "topic", topic, "err", err)
					}
					continue
				}
				for _, s := range res {
					for _, entry := range s.Messages {
						raw, ok := entry.Values["data"].(string)
						if !ok {
							continue
						}
						if err := handler(ctx, entry.ID, []byte(raw)); err != nil {
							q.log.Error("queue - handler error", "topic", topic, "entry_id", entry.ID, "err", err)
						}
					}
				}
			}
		}
	}()
	return nil
}

func (q *RedisEventQueue) AcknowledgeMessage(ctx context.Context, topic, conGroup, entryID string) error {
	return q.rdb.XAck(ctx, q.streamKey(topic), conGroup, entryID).Err()
}

func (q *RedisEventQueue) DeleteMessage(ctx context.Context, topic, entryID string) error {
	return q.rdb.XDel(ctx, q.streamKey(topic), entryID).Err()
}
