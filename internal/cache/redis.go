package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emandor/crosseval_service/internal/providers"
)

func MustConnect(addr string, db int) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := r.Ping(context.Background()).Err(); err != nil {
		panic(err)
	}
	return r
}

const statusKeyPrefix = "status:"

// StatusStore keeps the last observed status of each backend in redis.
type StatusStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewStatusStore(rdb redis.Cmdable, ttl time.Duration) *StatusStore {
	return &StatusStore{rdb: rdb, ttl: ttl}
}

type storedStatus struct {
	providers.BackendStatus
	SeenAt time.Time `json:"seenAt"`
}

func (s *StatusStore) Save(ctx context.Context, statuses map[string]providers.BackendStatus) error {
	if len(statuses) == 0 {
		return nil
	}
	now := time.Now().UTC()
	pipe := s.rdb.Pipeline()
	for id, st := range statuses {
		b, err := json.Marshal(storedStatus{BackendStatus: st, SeenAt: now})
		if err != nil {
			return fmt.Errorf("encoding status for %s: %w", id, err)
		}
		pipe.Set(ctx, statusKeyPrefix+id, b, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Load returns the statuses found for ids; missing or expired entries are
// simply absent.
func (s *StatusStore) Load(ctx context.Context, ids []string) (map[string]providers.BackendStatus, error) {
	out := make(map[string]providers.BackendStatus, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = statusKeyPrefix + id
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var st storedStatus
		if json.Unmarshal([]byte(str), &st) != nil {
			continue
		}
		out[ids[i]] = st.BackendStatus
	}
	return out, nil
}
