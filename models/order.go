package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCancelled = "cancelled"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

// OrderLine 下单时的商品快照，之后价格、库存变化都不会影响已下订单
type OrderLine struct {
	ProductID  string `json:"product_id"`
	VariantKey string `json:"variant_key,omitempty"`
	Title      string `json:"title"`
	UnitPrice  int64  `json:"unit_price"` // 成交单价（分）
	Quantity   int    `json:"quantity"`
	LineTotal  int64  `json:"line_total"`
}

type ShippingAddress struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order 订单主表，明细以 JSON 快照形式保存
type Order struct {
	ID              int64                               `gorm:"primaryKey;autoIncrement:false;column:id" json:"id,string"`                                                  // ID: 雪花ID
	OrderSn         string                              `gorm:"column:order_sn;type:varchar(32);not null;uniqueIndex:uk_order_sn" json:"order_sn"`                          // OrderSn: 对外展示的订单号
	UserID          string                              `gorm:"column:user_id;type:varchar(64);not null;index:idx_user_id" json:"user_id"`
	Items           datatypes.JSONType[[]OrderLine]     `gorm:"column:items;not null" json:"items"`
	Subtotal        int64                               `gorm:"column:subtotal;not null" json:"subtotal"`                                                                   // 单位：分
	Tax             int64                               `gorm:"column:tax;not null" json:"tax"`
	Shipping        int64                               `gorm:"column:shipping;not null" json:"shipping"`
	Total           int64                               `gorm:"column:total;not null" json:"total"`
	ShippingAddress datatypes.JSONType[ShippingAddress] `gorm:"column:shipping_address;not null" json:"shipping_address"`
	PaymentMethod   string                              `gorm:"column:payment_method;type:varchar(20);not null" json:"payment_method"`
	PaymentStatus   string                              `gorm:"column:payment_status;type:varchar(16);not null;default:'pending'" json:"payment_status"`
	OrderStatus     string                              `gorm:"column:order_status;type:varchar(16);not null;default:'pending';index:idx_order_status" json:"order_status"`
	ConfirmedAt     *time.Time                          `gorm:"column:confirmed_at" json:"confirmed_at,omitempty"`
	CancelledAt     *time.Time                          `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt       time.Time                           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

const (
	OutboxStatusPending = 0
	OutboxStatusSent    = 1
)

// OrderOutbox 与订单同事务写入的待投递消息，由 relay 异步投递，至少一次
type OrderOutbox struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	OrderID   int64          `gorm:"column:order_id;not null;index:idx_order_id" json:"order_id,string"`
	Topic     string         `gorm:"column:topic;type:varchar(64);not null" json:"topic"`
	Payload   datatypes.JSON `gorm:"column:payload;not null" json:"payload"`
	Status    int8           `gorm:"column:status;not null;default:0;index:idx_status" json:"status"`           // 0:待投递 1:已投递
	Attempts  int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError string         `gorm:"column:last_error;type:varchar(255);not null;default:''" json:"last_error"`
	SentAt    *time.Time     `gorm:"column:sent_at" json:"sent_at,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (OrderOutbox) TableName() string {
	return "order_outboxes"
}
