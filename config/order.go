package config

import "time"

// Order 下单相关配置，金额单位：分
type Order struct {
	TaxRateBP          int64         `json:"tax_rate_bp" yaml:"tax_rate_bp"`                   // 税率，万分比
	ShippingFee        int64         `json:"shipping_fee" yaml:"shipping_fee"`                 // 固定运费
	FreeShippingOver   int64         `json:"free_shipping_over" yaml:"free_shipping_over"`     // 满额包邮，0 表示不包邮
	OutboxPollInterval time.Duration `json:"outbox_poll_interval" yaml:"outbox_poll_interval"` // outbox 扫描间隔
	OutboxBatch        int           `json:"outbox_batch" yaml:"outbox_batch"`
	Topic              string        `json:"topic" yaml:"topic"` // 订单创建事件 topic
	PaymentMethods     []string      `json:"payment_methods" yaml:"payment_methods"`
}

func (o *Order) WithDefaults() *Order {
	if o == nil {
		o = &Order{}
	}
	if o.TaxRateBP < 0 {
		o.TaxRateBP = 0
	}
	if o.OutboxPollInterval <= 0 {
		o.OutboxPollInterval = time.Second
	}
	if o.OutboxBatch <= 0 {
		o.OutboxBatch = 50
	}
	if o.Topic == "" {
		o.Topic = "STOREFRONT_ORDER_CREATED"
	}
	if len(o.PaymentMethods) == 0 {
		o.PaymentMethods = []string{"card", "paypal", "cod"}
	}
	return o
}
