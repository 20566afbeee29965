package cache

import (
	"Storefront/internal/cart"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// 远端购物车保留 90 天，每次写入续期
const cartDocExpire = 90 * 24 * time.Hour

// casScript 时间戳严格更大才覆盖，保证 last-writer-wins 与到达顺序无关
// KEYS[1] 文档 key
// ARGV[1] lastUpdated  ARGV[2] 文档 JSON  ARGV[3] 过期秒数
var casScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'ts')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'ts', ARGV[1], 'doc', ARGV[2])
redis.call('EXPIRE', KEYS[1], ARGV[3])
return 1
`)

type CartStorage struct {
	redis *redis.Client
}

var _ cart.RemoteStore = (*CartStorage)(nil)

func NewCartStorage(rds *redis.Client) *CartStorage {
	return &CartStorage{redis: rds}
}

// Fetch 读取远端文档，合计字段一律重新计算
func (s *CartStorage) Fetch(ctx context.Context, id cart.Identity) (cart.Cart, bool, error) {
	doc, err := s.redis.HGet(ctx, s.docKey(id), "doc").Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.Cart{}, false, nil
	}
	if err != nil {
		return cart.Cart{}, false, err
	}

	var c cart.Cart
	if err = json.Unmarshal(doc, &c); err != nil {
		return cart.Cart{}, false, fmt.Errorf("decode cart doc: %w", err)
	}
	return cart.Normalize(c), true, nil
}

// Write 条件写入，生效后广播给其它设备
func (s *CartStorage) Write(ctx context.Context, id cart.Identity, c cart.Cart, origin string) (bool, error) {
	doc, err := json.Marshal(c)
	if err != nil {
		return false, err
	}

	applied, err := casScript.Run(ctx, s.redis,
		[]string{s.docKey(id)},
		strconv.FormatInt(c.LastUpdated, 10), doc, int64(cartDocExpire/time.Second),
	).Int()
	if err != nil {
		return false, err
	}
	if applied == 0 {
		return false, nil
	}

	msg, err := json.Marshal(cart.RemoteUpdate{Cart: c, Origin: origin})
	if err != nil {
		return true, err
	}
	// 广播失败不影响写入结果，订阅方下次拉取时会拿到最新文档
	_ = s.redis.Publish(ctx, s.channel(id), msg).Err()
	return true, nil
}

// Subscribe 订阅文档变更，返回前确认订阅已建立
func (s *CartStorage) Subscribe(ctx context.Context, id cart.Identity) (cart.Subscription, error) {
	ps := s.redis.Subscribe(ctx, s.channel(id))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &cartSubscription{
		ps:      ps,
		updates: make(chan cart.RemoteUpdate, 16),
	}
	go sub.pump()
	return sub, nil
}

// 购物车文档
// cart:doc:{identity}
func (s *CartStorage) docKey(id cart.Identity) string {
	return fmt.Sprintf("cart:doc:%s", id.Key())
}

// 文档变更频道
// cart:sync:{identity}
func (s *CartStorage) channel(id cart.Identity) string {
	return fmt.Sprintf("cart:sync:%s", id.Key())
}

type cartSubscription struct {
	ps      *redis.PubSub
	updates chan cart.RemoteUpdate
	once    sync.Once
	err     error
}

func (s *cartSubscription) Updates() <-chan cart.RemoteUpdate {
	return s.updates
}

func (s *cartSubscription) Close() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
	})
	return s.err
}

// pump PubSub 关闭后 Channel 随之关闭，这里再关闭 updates
func (s *cartSubscription) pump() {
	defer close(s.updates)
	for msg := range s.ps.Channel() {
		var u cart.RemoteUpdate
		if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
			continue
		}
		u.Cart = cart.Normalize(u.Cart)
		s.updates <- u
	}
}
