package models

import "time"

// Inventory 库存台账，每个 (商品, 规格) 一行
type Inventory struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement;column:id" json:"id"`                                                                                              // ID: 自增主键
	ProductID    string    `gorm:"size:64;not null;uniqueIndex:uk_product_variant,priority:1;index:idx_product_variant_index,priority:1;column:product_id" json:"product_id"` // ProductID: 商品ID
	VariantIndex int       `gorm:"not null;default:0;index:idx_product_variant_index,priority:2;column:variant_index" json:"variant_index"`                                   // VariantIndex: 规格序号，与目录导入保持一致
	VariantKey   string    `gorm:"size:64;not null;default:'';uniqueIndex:uk_product_variant,priority:2;column:variant_key" json:"variant_key"`                               // VariantKey: 规格标识（颜色/色号），空串为默认规格
	Title        string    `gorm:"size:255;not null;default:'';column:title" json:"title"`                                                                                    // Title: 商品名称
	Price        int64     `gorm:"not null;column:price" json:"price"`                                                                                                        // Price: 当前售价（分），下单时以此为准
	Stock        int64     `gorm:"not null;default:0;column:stock" json:"stock"`                                                                                              // Stock: 可售库存，不允许为负
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Inventory) TableName() string {
	return "inventories"
}

// InventoryKey 台账定位键
type InventoryKey struct {
	ProductID  string `json:"product_id"`
	VariantKey string `json:"variant_key"`
}

func (i Inventory) Key() InventoryKey {
	return InventoryKey{ProductID: i.ProductID, VariantKey: i.VariantKey}
}
