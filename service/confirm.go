package service

import (
	"Storefront/dao"
	"Storefront/dao/cache"
	"Storefront/models"
	"Storefront/pkg/log"
	"context"
	"errors"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 通知去重标记保留时间，需要大于消息最大重投间隔
const notifyDedupeTTL = 24 * time.Hour

// Notifier 下单后的通知（邮件/短信等）
type Notifier interface {
	OrderPlaced(ctx context.Context, order *models.Order) error
}

// LogNotifier 只记日志的通知实现
type LogNotifier struct{}

func (LogNotifier) OrderPlaced(_ context.Context, order *models.Order) error {
	log.L.Info("notify order placed",
		zap.Int64("order_id", order.ID),
		zap.String("order_sn", order.OrderSn),
		zap.String("user_id", order.UserID),
	)
	return nil
}

// PaymentGateway 支付扣款，返回支付状态
type PaymentGateway interface {
	Capture(ctx context.Context, order *models.Order) (string, error)
}

// SimulatedPayment 模拟支付：货到付款保持待支付，其它方式直接成功
type SimulatedPayment struct{}

func (SimulatedPayment) Capture(_ context.Context, order *models.Order) (string, error) {
	if order.PaymentMethod == "cod" {
		return models.PaymentStatusPending, nil
	}
	return models.PaymentStatusPaid, nil
}

// OrderConfirmer 消费订单创建事件，完成下单后的记账并把订单置为 confirmed。
// 消息至少投递一次，Handle 可以安全地重复执行
type OrderConfirmer struct {
	OrderDAO    *dao.Order
	Idempotency *cache.IdempotencyStorage
	Notifier    Notifier
	Payment     PaymentGateway
}

// HandleMessage 解析 MQ 消息体。无法解析的消息直接丢弃，避免反复重投
func (c *OrderConfirmer) HandleMessage(ctx context.Context, body []byte) error {
	orderID := gjson.GetBytes(body, "order_id").Int()
	if orderID <= 0 {
		log.L.Warn("drop malformed order event", zap.ByteString("body", body))
		return nil
	}
	return c.Handle(ctx, orderID)
}

func (c *OrderConfirmer) Handle(ctx context.Context, orderID int64) error {
	order, err := c.OrderDAO.FindById(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.L.Warn("confirm unknown order", zap.Int64("order_id", orderID))
		return nil
	}
	if err != nil {
		return err
	}
	if order.OrderStatus != models.OrderStatusPending {
		orderConfirmationsTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	// 1. 通知只发一次
	key := orderKey(orderID)
	first, err := c.Idempotency.Acquire(ctx, "order_notify", key, notifyDedupeTTL)
	if err != nil {
		return err
	}
	if first {
		if err = c.Notifier.OrderPlaced(ctx, order); err != nil {
			_ = c.Idempotency.Release(ctx, "order_notify", key)
			orderConfirmationsTotal.WithLabelValues("error").Inc()
			return err
		}
	}

	// 2. 模拟扣款
	status, err := c.Payment.Capture(ctx, order)
	if err != nil {
		orderConfirmationsTotal.WithLabelValues("error").Inc()
		return err
	}

	// 3. pending -> confirmed，条件更新保证重复消费无副作用
	changed, err := c.OrderDAO.Confirm(ctx, orderID, status)
	if err != nil {
		orderConfirmationsTotal.WithLabelValues("error").Inc()
		return err
	}
	if changed {
		orderConfirmationsTotal.WithLabelValues("confirmed").Inc()
		log.L.Info("order confirmed", zap.Int64("order_id", orderID), zap.String("payment_status", status))
	}
	return nil
}
