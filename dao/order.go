package dao

import (
	"Storefront/models"
	"context"
	"time"

	"gorm.io/gorm"
)

type Order struct {
	Repo[models.Order]
}

func NewOrder(db *gorm.DB) *Order {
	return &Order{
		Repo: NewRepo[models.Order](db),
	}
}

// CreateTx 在预占库存的事务中写订单
func (o *Order) CreateTx(tx *gorm.DB, order *models.Order) error {
	return tx.Create(order).Error
}

// FindByUser 只能查到自己的订单
func (o *Order) FindByUser(ctx context.Context, userID string, orderID int64) (*models.Order, error) {
	return o.FindByWhere(ctx, "id = ? AND user_id = ?", orderID, userID)
}

// ListByUser 游标分页，cursor 为上一页最后一条的订单ID，0 表示第一页
func (o *Order) ListByUser(ctx context.Context, userID string, cursor int64, limit int) ([]*models.Order, error) {
	var orders []*models.Order
	q := o.Db.WithContext(ctx).Where("user_id = ?", userID)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	err := q.Order("id DESC").Limit(limit).Find(&orders).Error
	return orders, err
}

// Confirm pending -> confirmed，重复调用不会产生副作用，返回本次是否真正更新
func (o *Order) Confirm(ctx context.Context, orderID int64, paymentStatus string) (bool, error) {
	now := time.Now()
	res := o.Model(ctx).
		Where("id = ? AND order_status = ?", orderID, models.OrderStatusPending).
		Updates(map[string]any{
			"order_status":   models.OrderStatusConfirmed,
			"payment_status": paymentStatus,
			"confirmed_at":   &now,
		})
	return res.RowsAffected == 1, res.Error
}

// LockTx 事务内加锁读取
func (o *Order) LockTx(tx *gorm.DB, userID string, orderID int64) (*models.Order, error) {
	var order models.Order
	err := lockRows(tx).Where("id = ? AND user_id = ?", orderID, userID).Take(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelTx 只有 fromStatus 状态的订单才能取消
func (o *Order) CancelTx(tx *gorm.DB, orderID int64, fromStatus, paymentStatus string) (bool, error) {
	now := time.Now()
	res := tx.Model(&models.Order{}).
		Where("id = ? AND order_status = ?", orderID, fromStatus).
		Updates(map[string]any{
			"order_status":   models.OrderStatusCancelled,
			"payment_status": paymentStatus,
			"cancelled_at":   &now,
		})
	return res.RowsAffected == 1, res.Error
}
