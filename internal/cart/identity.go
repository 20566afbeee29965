package cart

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Identity 购物车的归属：匿名伪ID 或 已登录用户ID
type Identity struct {
	ID            string `json:"id"`
	Authenticated bool   `json:"authenticated"`
}

func Anonymous(id string) Identity {
	return Identity{ID: id}
}

func User(id string) Identity {
	return Identity{ID: id, Authenticated: true}
}

// Key 存储键，匿名与登录用户分属不同命名空间，避免 ID 碰撞
func (i Identity) Key() string {
	if i.Authenticated {
		return "u:" + i.ID
	}
	return "a:" + i.ID
}

func (i Identity) IsZero() bool {
	return i.ID == ""
}

// IdentityProvider 外部身份来源，提供当前身份和身份变更通知
type IdentityProvider interface {
	Current() Identity
	Changes() <-chan Identity
}

// AnonymousIDs 匿名伪ID生成器
type AnonymousIDs interface {
	NewID() string
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// StaticProvider 手动切换身份的 IdentityProvider，Set 之后通知所有订阅者
type StaticProvider struct {
	mu      sync.Mutex
	current Identity
	subs    []chan Identity
}

func NewStaticProvider(initial Identity) *StaticProvider {
	return &StaticProvider{current: initial}
}

func (p *StaticProvider) Current() Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Changes 每次调用返回一个新的通知通道，缓冲为1，只保留最新身份
func (p *StaticProvider) Changes() <-chan Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan Identity, 1)
	p.subs = append(p.subs, ch)
	return ch
}

func (p *StaticProvider) Set(id Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = id
	for _, ch := range p.subs {
		// 丢掉还没被消费的旧值
		select {
		case <-ch:
		default:
		}
		ch <- id
	}
}

func unixMilli(ms int64) time.Time {
	return time.UnixMilli(ms)
}
