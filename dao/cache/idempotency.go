package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStorage 至少一次投递场景下的去重标记
type IdempotencyStorage struct {
	redis *redis.Client
}

func NewIdempotencyStorage(rds *redis.Client) *IdempotencyStorage {
	return &IdempotencyStorage{redis: rds}
}

// Acquire 首次调用返回 true，ttl 内重复调用返回 false
func (s *IdempotencyStorage) Acquire(ctx context.Context, scope, id string, ttl time.Duration) (bool, error) {
	return s.redis.SetNX(ctx, s.name(scope, id), time.Now().Unix(), ttl).Result()
}

// Release 处理失败时释放，让下一次投递可以重试
func (s *IdempotencyStorage) Release(ctx context.Context, scope, id string) error {
	return s.redis.Del(ctx, s.name(scope, id)).Err()
}

// storefront:idem:{scope}:{id}
func (s *IdempotencyStorage) name(scope, id string) string {
	return fmt.Sprintf("storefront:idem:%s:%s", scope, id)
}
