package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/learnhub/internal/model"
)

const redisKeyPrefix = "dashboard:state:"

// RedisStateStore はRedisにJSONでビュー状態を保持するStateStore。
// 複数インスタンス構成でもビュー状態を共有できる。
type RedisStateStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStateStore はRedisStateStoreを生成する。
// ttlは最終更新からの保持期間で、0以下の場合は期限なしとなる。
func NewRedisStateStore(client redis.Cmdable, ttl time.Duration) *RedisStateStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStateStore{client: client, ttl: ttl}
}

// Get はビュー状態を取得する。
func (r *RedisStateStore) Get(ctx context.Context, uid string) (*model.DashboardState, error) {
	data, err := r.client.Get(ctx, redisKey(uid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard state: %w", err)
	}

	var state model.DashboardState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode dashboard state: %w", err)
	}
	return &state, nil
}

// Save はビュー状態を保存し、保持期間を更新する。
func (r *RedisStateStore) Save(ctx context.Context, state *model.DashboardState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode dashboard state: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(state.UID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save dashboard state: %w", err)
	}
	return nil
}

// Delete はビュー状態を削除する。
func (r *RedisStateStore) Delete(ctx context.Context, uid string) error {
	if err := r.client.Del(ctx, redisKey(uid)).Err(); err != nil {
		return fmt.Errorf("failed to delete dashboard state: %w", err)
	}
	return nil
}

func redisKey(uid string) string {
	return redisKeyPrefix + uid
}

// NewRedisClient はREDIS_URLからクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
