package handler

import (
	"Storefront/config"
	"Storefront/internal/cart"
	"Storefront/middleware"
	"Storefront/models"
	"Storefront/pkg/context"
	"Storefront/pkg/response"
	"Storefront/service"
	"Storefront/types"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Order struct {
	Config       *config.Config
	OrderService service.IOrderService
	CartService  service.ICartService
	AnonymousIDs cart.AnonymousIDs
}

func (o *Order) RegisterRouter(r gin.IRouter) {
	identity := middleware.Identity([]byte(o.Config.Jwt.Secret), o.AnonymousIDs)
	order := r.Group("/v1/order")
	order.Use(identity)
	{
		order.POST("", context.Wrap(o.Create))
		order.POST("/checkout", context.Wrap(o.Checkout))
		order.GET("/list", context.Wrap(o.List))
		order.GET("/:id", context.Wrap(o.Get))
		order.POST("/:id/cancel", context.Wrap(o.Cancel))
	}
}

func loginUser(c *gin.Context) (string, error) {
	uid := context.GetUserID(c)
	if uid == "" {
		return "", response.NewError(http.StatusUnauthorized, service.ErrLoginRequired.Error())
	}
	return uid, nil
}

func orderID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, response.NewError(http.StatusBadRequest, "id参数错误")
	}
	return id, nil
}

// Create 显式传商品时直接下单，不传时用当前购物车结算
func (o *Order) Create(c *gin.Context) error {
	var req types.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return response.NewError(http.StatusBadRequest, "参数格式错误: "+err.Error())
	}
	uid, err := loginUser(c)
	if err != nil {
		return err
	}

	if len(req.Items) == 0 {
		return o.checkout(c, req.ShippingAddress, req.PaymentMethod)
	}

	items := make([]cart.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, cart.Item{ProductID: it.ProductID, VariantKey: it.VariantKey, Quantity: it.Quantity})
	}
	order, err := o.OrderService.CreateOrder(c.Request.Context(), &service.CreateOrderInput{
		UserID:          uid,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		return bizError(err)
	}
	response.Success(c, &types.CreateOrderResponse{OrderID: order.ID, Order: order})
	return nil
}

func (o *Order) Checkout(c *gin.Context) error {
	var req types.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return response.NewError(http.StatusBadRequest, "参数格式错误: "+err.Error())
	}
	if _, err := loginUser(c); err != nil {
		return err
	}
	return o.checkout(c, req.ShippingAddress, req.PaymentMethod)
}

func (o *Order) checkout(c *gin.Context, addr models.ShippingAddress, payment string) error {
	sess, err := cartSession(c)
	if err != nil {
		return err
	}
	order, err := o.CartService.Checkout(c.Request.Context(), sess, addr, payment)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, &types.CreateOrderResponse{OrderID: order.ID, Order: order})
	return nil
}

func (o *Order) Get(c *gin.Context) error {
	uid, err := loginUser(c)
	if err != nil {
		return err
	}
	id, err := orderID(c)
	if err != nil {
		return err
	}

	order, err := o.OrderService.GetOrder(c.Request.Context(), uid, id)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, order)
	return nil
}

func (o *Order) List(c *gin.Context) error {
	var req types.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		return response.NewError(http.StatusBadRequest, "参数格式错误: "+err.Error())
	}
	uid, err := loginUser(c)
	if err != nil {
		return err
	}

	resp, err := o.OrderService.ListOrders(c.Request.Context(), uid, req.Cursor, req.Limit)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, resp)
	return nil
}

// Cancel 取消订单并回补库存
func (o *Order) Cancel(c *gin.Context) error {
	uid, err := loginUser(c)
	if err != nil {
		return err
	}
	id, err := orderID(c)
	if err != nil {
		return err
	}

	order, err := o.OrderService.CancelOrder(c.Request.Context(), uid, id)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, order)
	return nil
}
