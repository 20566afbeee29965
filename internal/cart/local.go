package cart

import (
	"encoding/json"
	"errors"
	"time"
)

// DefaultLocalTTL 本地购物车保留 30 天
const DefaultLocalTTL = 30 * 24 * time.Hour

type localEntry struct {
	Cart      Cart  `json:"cart"`
	ExpiresAt int64 `json:"expires_at"` // 毫秒
}

// LocalPersistence 按身份隔离的本地写穿缓存，过期时间在写入时确定
type LocalPersistence struct {
	Store LocalStore
	TTL   time.Duration
	Now   func() time.Time
}

func NewLocalPersistence(store LocalStore, ttl time.Duration) *LocalPersistence {
	if ttl <= 0 {
		ttl = DefaultLocalTTL
	}
	return &LocalPersistence{Store: store, TTL: ttl, Now: time.Now}
}

func (p *LocalPersistence) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p *LocalPersistence) Save(id Identity, c Cart) error {
	b, err := json.Marshal(localEntry{
		Cart:      c,
		ExpiresAt: p.now().Add(p.TTL).UnixMilli(),
	})
	if err != nil {
		return err
	}
	return p.Store.Set(id.Key(), b)
}

// Load 读取本地购物车。不存在、已过期或内容损坏都视为不存在，后两种会顺带清理
func (p *LocalPersistence) Load(id Identity) (Cart, bool, error) {
	b, err := p.Store.Get(id.Key())
	if errors.Is(err, ErrNotExist) {
		return Cart{}, false, nil
	}
	if err != nil {
		return Cart{}, false, err
	}

	var entry localEntry
	if err = json.Unmarshal(b, &entry); err != nil {
		return Cart{}, false, p.Store.Delete(id.Key())
	}

	if p.now().UnixMilli() > entry.ExpiresAt {
		return Cart{}, false, p.Store.Delete(id.Key())
	}

	return Normalize(entry.Cart), true, nil
}

func (p *LocalPersistence) Clear(id Identity) error {
	return p.Store.Delete(id.Key())
}
