package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const onlineKey = "presence:online"

// RedisPresenceStore keeps one global ZSet of user ids scored by their
// last heartbeat. Staleness is evaluated at read time, so a crashed
// connection falls out of the online set without any explicit cleanup.
type RedisPresenceStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisPresenceStore(rdb *redis.Client, ttl time.Duration) *RedisPresenceStore {
	return &RedisPresenceStore{rdb: rdb, ttl: ttl}
}

// UpdateOnlineStatus adds/updates the user in the ZSet with the current
// timestamp.
func (p *RedisPresenceStore) UpdateOnlineStatus(
	ctx context.Context,
	userID int64,
	ttl time.Duration,
) error {
	if ttl <= 0 {
		ttl = p.ttl
	}
	err := p.rdb.ZAdd(ctx, onlineKey, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: strconv.FormatInt(userID, 10),
	}).Err()
	if err != nil {
		return err
	}
	// Expire the whole set so it doesn't leak when the service idles.
	return p.rdb.Expire(ctx, onlineKey, ttl*2).Err()
}

// OnlineUsers returns users whose last heartbeat is within the ttl.
func (p *RedisPresenceStore) OnlineUsers(ctx context.Context) ([]int64, error) {
	threshold := time.Now().Add(-p.ttl).Unix()

	// Remove stale members first (self-cleaning)
	p.rdb.ZRemRangeByScore(ctx, onlineKey, "-inf", strconv.FormatInt(threshold, 10))

	members, err := p.rdb.ZRange(ctx, onlineKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// ClearUser drops the user's entry on disconnect.
func (p *RedisPresenceStore) ClearUser(ctx context.Context, userID int64) error {
	return p.rdb.ZRem(ctx, onlineKey, strconv.FormatInt(userID, 10)).Err()
}
