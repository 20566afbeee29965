package handler

import (
	"Storefront/config"
	"Storefront/dao/cache"
	"Storefront/internal/cart"
	"Storefront/middleware"
	"Storefront/pkg/log"
	"Storefront/pkg/snowflake"
	"Storefront/service"
	"Storefront/types"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 25 * time.Second // 必须小于 wsPongWait
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// CartSocket 购物车实时推送：同一账号在其它设备上的修改经 redis 同步后推给当前连接
type CartSocket struct {
	Config        *config.Config
	CartService   service.ICartService
	SocketStorage *cache.SocketStorage
	AnonymousIDs  cart.AnonymousIDs
}

func (h *CartSocket) RegisterRouter(r gin.IRouter) {
	identity := middleware.Identity([]byte(h.Config.Jwt.Secret), h.AnonymousIDs)
	r.GET("/v1/cart/ws", identity, h.HandleWS)
}

func (h *CartSocket) HandleWS(c *gin.Context) {
	// 1. 身份和协调器要在升级前确定，失败时还能返回普通 HTTP 错误
	sess, err := cartSession(c)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	coord, err := h.CartService.Coordinator(c.Request.Context(), sess)
	if err != nil {
		log.L.Warn("cart socket bind session", zap.String("session", sess.ID), zap.Error(err))
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}

	// 2. 升级
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	clientId := snowflake.GenID()
	boundKey := ""
	defer func() {
		if boundKey != "" {
			_ = h.SocketStorage.UnBind(context.Background(), boundKey, clientId)
		}
	}()

	// 3. 读协程只负责心跳，连接断开时关闭 closed
	closed := make(chan struct{})
	pings := make(chan struct{}, 1)
	go func() {
		defer close(closed)
		conn.SetReadLimit(1024)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			var msg struct {
				Type string `json:"type"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				// 客户端断开是正常行为
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
			if msg.Type == "ping" {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	// 4. 写循环：快照变化就推送
	snaps, stop := coord.Watch()
	defer stop()
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-coord.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"), time.Now().Add(wsWriteWait))
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			// 身份变化（例如同一设备登录）时重新登记在线连接
			if key := snap.Identity.Key(); key != boundKey {
				if boundKey != "" {
					_ = h.SocketStorage.UnBind(context.Background(), boundKey, clientId)
				}
				if err := h.SocketStorage.Bind(context.Background(), key, clientId); err != nil {
					log.L.Warn("cart socket bind", zap.String("identity", key), zap.Error(err))
				}
				boundKey = key
			}
			resp := types.NewCartResponse(snap)
			resp.Devices = h.SocketStorage.Online(context.Background(), boundKey)
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(gin.H{"type": "cart", "data": resp}); err != nil {
				return
			}
		case <-pings:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(gin.H{"type": "pong"}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
