package middleware

import (
	"Storefront/pkg/context"
	"Storefront/pkg/jwt"
	"Storefront/pkg/response"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// 距离过期不足该时长时下发新 token
const refreshBuffer = 5 * time.Minute

var errBadAuthorization = errors.New("Authorization 格式错误")

// bearer 解析 Authorization: Bearer <token>，websocket 握手无法带头时读 ?token=
func bearer(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return c.Query("token"), nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errBadAuthorization
	}
	return parts[1], nil
}

// authenticate 校验 token 并在临近过期时续签，续签保留角色
func authenticate(c *gin.Context, secret []byte, token string) (*jwt.Claims, error) {
	claims, err := jwt.ParseToken(secret, jwt.TypeAccess, token)
	if err != nil {
		return nil, err
	}
	if jwt.ShouldRotateToken(claims, refreshBuffer) {
		if fresh, err := jwt.GenerateRoleToken(secret, claims.UserID, jwt.TypeAccess, claims.Role, refreshBuffer*2); err == nil {
			c.Header("X-New-Access-Token", fresh)
		}
	}
	c.Set(context.CtxUserID, claims.UserID)
	c.Set(context.CtxRole, claims.Role)
	return claims, nil
}

// required 解析必须存在的 token，失败时已经中断请求
func required(c *gin.Context, secret []byte) (*jwt.Claims, bool) {
	token, err := bearer(c)
	if err != nil {
		response.Abort(c, http.StatusUnauthorized, err.Error())
		return nil, false
	}
	if token == "" {
		response.Abort(c, http.StatusUnauthorized, "缺少 Authorization")
		return nil, false
	}

	claims, err := authenticate(c, secret, token)
	if err != nil {
		response.Abort(c, http.StatusUnauthorized, err.Error())
		return nil, false
	}
	return claims, true
}

// Auth 必须登录
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := required(c, secret); !ok {
			return
		}
		c.Next()
	}
}

// Admin 必须是运营账号，普通用户返回 403
func Admin(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := required(c, secret)
		if !ok {
			return
		}
		if !claims.IsAdmin() {
			response.Abort(c, http.StatusForbidden, "没有操作权限")
			return
		}
		c.Next()
	}
}
