package context

import (
	"Storefront/pkg/response"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CtxUserID    = "user_id"
	CtxRole      = "role"
	CtxSessionID = "cart_session"
)

type HandlerFunc func(*gin.Context) error

func Wrap(h func(*gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h(c); err != nil {

			// 如果已经写过响应，直接返回
			if c.Writer.Written() {
				return
			}
			// 业务错误，Code 是合法的 HTTP 错误码时直接作为状态码
			var be *response.BizError
			if errors.As(err, &be) {
				status := http.StatusOK
				if be.Code >= 400 && be.Code < 600 {
					status = be.Code
				}
				c.JSON(status, response.Response{
					Code: be.Code,
					Msg:  be.Msg,
					Data: be.Data,
				})
				return
			}
			c.JSON(http.StatusInternalServerError, response.Response{
				Code: 500,
				Msg:  err.Error(),
			})
		}
	}
}

// GetUserID 已登录用户ID，匿名访问时返回空串
func GetUserID(c *gin.Context) string {
	return c.GetString(CtxUserID)
}

// GetSessionID 购物车会话ID（匿名伪ID），由 Identity 中间件写入
func GetSessionID(c *gin.Context) (string, error) {
	v := c.GetString(CtxSessionID)
	if v == "" {
		return "", errors.New("cart session 不存在")
	}
	return v, nil
}
