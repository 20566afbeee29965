package types

import (
	"Storefront/dao"
	"Storefront/models"
)

type OrderItemRequest struct {
	ProductID  string `json:"product_id" binding:"required"`
	VariantKey string `json:"variant_key"`
	Quantity   int    `json:"quantity" binding:"min=1"`
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest     `json:"items" binding:"dive"` // 为空时用购物车下单
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method" binding:"required"`
}

type CheckoutRequest struct {
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method" binding:"required"`
}

type CreateOrderResponse struct {
	OrderID int64         `json:"order_id,string"`
	Order   *models.Order `json:"order"`
}

// StockConflictResponse 库存冲突时返回全部冲突的商品
type StockConflictResponse struct {
	Failures []dao.Shortfall `json:"failures"`
}

type ListOrdersRequest struct {
	Cursor int64 `form:"cursor"`
	Limit  int   `form:"limit"`
}

type ListOrdersResponse struct {
	Orders     []*models.Order `json:"orders"`
	HasMore    bool            `json:"has_more"`
	NextCursor int64           `json:"next_cursor,string"` // 下一次请求带上的游标（订单ID）
}
