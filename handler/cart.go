package handler

import (
	"Storefront/config"
	"Storefront/dao/cache"
	"Storefront/internal/cart"
	"Storefront/middleware"
	"Storefront/pkg/context"
	"Storefront/pkg/response"
	"Storefront/service"
	"Storefront/types"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Cart struct {
	Config        *config.Config
	CartService   service.ICartService
	SocketStorage *cache.SocketStorage
	AnonymousIDs  cart.AnonymousIDs
}

func (h *Cart) RegisterRouter(r gin.IRouter) {
	identity := middleware.Identity([]byte(h.Config.Jwt.Secret), h.AnonymousIDs)
	g := r.Group("/v1/cart")
	g.Use(identity)
	{
		g.GET("", context.Wrap(h.Get))
		g.DELETE("", context.Wrap(h.Clear))
		g.POST("/items", context.Wrap(h.AddItem))
		g.PUT("/items/:product_id", context.Wrap(h.UpdateItem))
		g.DELETE("/items/:product_id", context.Wrap(h.RemoveItem))
	}
}

// cartSession 由 Identity 中间件写入的会话号和登录用户组装当前身份
func cartSession(c *gin.Context) (service.Session, error) {
	sid, err := context.GetSessionID(c)
	if err != nil {
		return service.Session{}, response.NewError(http.StatusBadRequest, err.Error())
	}
	if uid := context.GetUserID(c); uid != "" {
		return service.Session{ID: sid, Identity: cart.User(uid)}, nil
	}
	return service.Session{ID: sid, Identity: cart.Anonymous(sid)}, nil
}

// summary 变更类接口只返回合计
func summary(c *gin.Context, snap cart.Snapshot) {
	response.Success(c, &types.CartSummary{Total: snap.Cart.Subtotal, ItemCount: snap.Cart.ItemCount})
}

func (h *Cart) reply(c *gin.Context, snap cart.Snapshot) {
	resp := types.NewCartResponse(snap)
	if h.SocketStorage != nil {
		resp.Devices = h.SocketStorage.Online(c.Request.Context(), snap.Identity.Key())
	}
	response.Success(c, resp)
}

func (h *Cart) Get(c *gin.Context) error {
	sess, err := cartSession(c)
	if err != nil {
		return err
	}
	snap, err := h.CartService.GetCart(c.Request.Context(), sess)
	if err != nil {
		return bizError(err)
	}
	h.reply(c, snap)
	return nil
}

func (h *Cart) AddItem(c *gin.Context) error {
	var req types.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return response.NewError(http.StatusBadRequest, "参数格式错误: "+err.Error())
	}
	sess, err := cartSession(c)
	if err != nil {
		return err
	}

	snap, err := h.CartService.AddToCart(c.Request.Context(), sess, req.ProductID, req.VariantKey, req.Quantity)
	if err != nil {
		return bizError(err)
	}
	summary(c, snap)
	return nil
}

func (h *Cart) UpdateItem(c *gin.Context) error {
	var req types.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return response.NewError(http.StatusBadRequest, "参数格式错误: "+err.Error())
	}
	sess, err := cartSession(c)
	if err != nil {
		return err
	}

	snap, err := h.CartService.UpdateQuantity(c.Request.Context(), sess, c.Param("product_id"), req.VariantKey, req.Quantity)
	if err != nil {
		return bizError(err)
	}
	summary(c, snap)
	return nil
}

func (h *Cart) RemoveItem(c *gin.Context) error {
	var req types.RemoveCartItemRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		return response.NewError(http.StatusBadRequest, "参数格式错误: "+err.Error())
	}
	sess, err := cartSession(c)
	if err != nil {
		return err
	}

	snap, err := h.CartService.RemoveFromCart(c.Request.Context(), sess, c.Param("product_id"), req.VariantKey)
	if err != nil {
		return bizError(err)
	}
	summary(c, snap)
	return nil
}

func (h *Cart) Clear(c *gin.Context) error {
	sess, err := cartSession(c)
	if err != nil {
		return err
	}
	if _, err = h.CartService.ClearCart(c.Request.Context(), sess); err != nil {
		return bizError(err)
	}
	response.Success(c, nil)
	return nil
}
