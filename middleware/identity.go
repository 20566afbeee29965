package middleware

import (
	"Storefront/internal/cart"
	"Storefront/pkg/context"
	"Storefront/pkg/response"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionHeader 设备级购物车会话号，客户端没有时由服务端生成并回写
const SessionHeader = "X-Cart-Session"

// Identity 购物车身份：匿名会话号一定存在，缺失时由 ids 生成；登录 token 可选。
// token 存在但无效时直接拒绝，避免把登录用户的购物车当成匿名写入
func Identity(secret []byte, ids cart.AnonymousIDs) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := c.GetHeader(SessionHeader)
		if sid == "" {
			sid = c.Query("session")
		}
		if sid == "" || len(sid) > 64 {
			sid = ids.NewID()
		}
		c.Header(SessionHeader, sid)
		c.Set(context.CtxSessionID, sid)

		token, err := bearer(c)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, err.Error())
			return
		}
		if token != "" {
			if _, err := authenticate(c, secret, token); err != nil {
				response.Abort(c, http.StatusUnauthorized, err.Error())
				return
			}
		}

		c.Next()
	}
}
