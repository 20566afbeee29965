package types

import "Storefront/internal/cart"

type AddCartItemRequest struct {
	ProductID  string `json:"product_id" binding:"required"`     // 商品ID
	VariantKey string `json:"variant_key"`                       // 规格，空为默认规格
	Quantity   int    `json:"quantity" binding:"min=1,max=9999"` // 加购数量，单行上限见 cart.max_quantity
}

type UpdateCartItemRequest struct {
	VariantKey string `json:"variant_key"`
	Quantity   int    `json:"quantity" binding:"max=9999"` // 绝对数量，<=0 等价于删除
}

type RemoveCartItemRequest struct {
	VariantKey string `form:"variant_key"`
}

// CartSummary 变更类接口的返回
type CartSummary struct {
	Total     int64 `json:"total"` // 商品小计（分）
	ItemCount int   `json:"item_count"`
}

type CartResponse struct {
	Cart     cart.Cart `json:"cart"`
	Status   string    `json:"status"`
	Warning  bool      `json:"warning"` // true 时前端提示“修改可能未保存”
	Identity string    `json:"identity"`
	Devices  int64     `json:"devices,omitempty"` // 在线设备数
}

func NewCartResponse(s cart.Snapshot) *CartResponse {
	return &CartResponse{
		Cart:     s.Cart,
		Status:   s.Status.String(),
		Warning:  s.Warning,
		Identity: s.Identity.Key(),
	}
}
