package types

type RestockRequest struct {
	ProductID  string `json:"product_id" binding:"required"`
	VariantKey string `json:"variant_key"`
	Quantity   int64  `json:"quantity" binding:"min=1"`
}

type RestockResponse struct {
	Stock int64 `json:"stock"`
}

type UpsertInventoryRequest struct {
	ProductID    string `json:"product_id" binding:"required"`
	VariantKey   string `json:"variant_key"`
	VariantIndex int    `json:"variant_index"`
	Title        string `json:"title" binding:"required"`
	Price        int64  `json:"price" binding:"min=0"` // 售价（分）
	Stock        int64  `json:"stock" binding:"min=0"`
}
