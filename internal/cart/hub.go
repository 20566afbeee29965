package cart

import (
	"context"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// Hub 按会话管理 Coordinator，每个会话一个 actor
type Hub struct {
	remote  RemoteStore
	local   *LocalPersistence
	opts    Options
	idleTTL time.Duration
	logger  *zap.Logger

	sessions cmap.ConcurrentMap[string, *Coordinator]
}

func NewHub(remote RemoteStore, local *LocalPersistence, opts Options, idleTTL time.Duration, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Hub{
		remote:   remote,
		local:    local,
		opts:     opts,
		idleTTL:  idleTTL,
		logger:   logger,
		sessions: cmap.New[*Coordinator](),
	}
}

func closed(c *Coordinator) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

// Session 获取或创建会话对应的协调器
func (h *Hub) Session(key string) *Coordinator {
	return h.sessions.Upsert(key, nil, func(exist bool, inMap *Coordinator, _ *Coordinator) *Coordinator {
		if exist && inMap != nil && !closed(inMap) {
			return inMap
		}
		return NewCoordinator(h.remote, h.local, h.opts, h.logger.With(zap.String("session", key)))
	})
}

// MaxQuantity 单行数量上限
func (h *Hub) MaxQuantity() int {
	return quantityLimit(h.opts.MaxQuantity)
}

func (h *Hub) Len() int {
	return h.sessions.Count()
}

// Evict 关闭并移除会话
func (h *Hub) Evict(key string) {
	var victim *Coordinator
	h.sessions.RemoveCb(key, func(_ string, c *Coordinator, exists bool) bool {
		if exists {
			victim = c
		}
		return exists
	})
	if victim != nil {
		victim.Close()
	}
}

// Sweep 清理空闲超过 idleTTL 的会话，返回清理数量
func (h *Hub) Sweep(now time.Time) int {
	n := 0
	for item := range h.sessions.IterBuffered() {
		if now.Sub(item.Val.LastActive()) < h.idleTTL {
			continue
		}
		removed := h.sessions.RemoveCb(item.Key, func(_ string, c *Coordinator, exists bool) bool {
			// 期间被重新创建过就不动
			return exists && c == item.Val
		})
		if removed {
			item.Val.Close()
			n++
		}
	}
	return n
}

// Run 定期清理空闲会话，ctx 结束时关闭全部会话
func (h *Hub) Run(ctx context.Context) error {
	interval := h.idleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.Close()
			return nil
		case now := <-ticker.C:
			if n := h.Sweep(now); n > 0 {
				h.logger.Info("cart sessions swept", zap.Int("count", n), zap.Int("remain", h.Len()))
			}
		}
	}
}

// Close 并发关闭所有会话
func (h *Hub) Close() {
	var wg conc.WaitGroup
	for item := range h.sessions.IterBuffered() {
		c := item.Val
		h.sessions.Remove(item.Key)
		wg.Go(c.Close)
	}
	wg.Wait()
}
