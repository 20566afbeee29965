package cache

import (
	"Storefront/config"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// 连接记录的过期时间，节点异常退出时兜底清理
const socketExpire = 24 * time.Hour

// SocketStorage 记录每个购物车身份在各节点上的实时连接，用于统计在线设备数
type SocketStorage struct {
	redis *redis.Client
	sid   string
}

func NewSocketStorage(rds *redis.Client, conf *config.Config) *SocketStorage {
	return &SocketStorage{redis: rds, sid: strconv.FormatInt(conf.App.NodeID, 10)}
}

// Bind 绑定客户端连接
// @params identity 购物车身份 key
// @params clientId 客户端连接ID
func (s *SocketStorage) Bind(ctx context.Context, identity string, clientId int64) error {
	_, err := s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.identityKey(identity), s.member(clientId))
		pipe.Expire(ctx, s.identityKey(identity), socketExpire)
		return nil
	})
	return err
}

// UnBind 解除绑定
func (s *SocketStorage) UnBind(ctx context.Context, identity string, clientId int64) error {
	return s.redis.SRem(ctx, s.identityKey(identity), s.member(clientId)).Err()
}

// Online 所有节点上该身份的在线连接数
func (s *SocketStorage) Online(ctx context.Context, identity string) int64 {
	n, err := s.redis.SCard(ctx, s.identityKey(identity)).Result()
	if err != nil {
		return 0
	}
	return n
}

// cart:ws:{identity}
func (s *SocketStorage) identityKey(identity string) string {
	return fmt.Sprintf("cart:ws:%s", identity)
}

// {sid}:{clientId}
func (s *SocketStorage) member(clientId int64) string {
	return fmt.Sprintf("%s:%d", s.sid, clientId)
}
