package client

import (
	"Storefront/config"
	"Storefront/pkg/log"
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient 购物车文档、跨设备同步频道和消费去重共用一个连接池
func NewRedisClient(conf *config.Config) (*redis.Client, func()) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", conf.Redis.Address, conf.Redis.Port),
		Password: conf.Redis.Password,
		Username: conf.Redis.Username,
		DB:       conf.Redis.Database,
		PoolSize: conf.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.L.Fatal("connect redis error", zap.Error(err))
	}
	log.L.Info("redis client success", zap.String("addr", client.Options().Addr))
	return client, func() { _ = client.Close() }
}
