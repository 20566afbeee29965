package dao

import (
	"Storefront/models"
	"context"
	"time"

	"gorm.io/gorm"
)

type Outbox struct {
	Repo[models.OrderOutbox]
}

func NewOutbox(db *gorm.DB) *Outbox {
	return &Outbox{
		Repo: NewRepo[models.OrderOutbox](db),
	}
}

func (o *Outbox) CreateTx(tx *gorm.DB, msg *models.OrderOutbox) error {
	return tx.Create(msg).Error
}

// Pending 按写入顺序取待投递消息
func (o *Outbox) Pending(ctx context.Context, limit int) ([]*models.OrderOutbox, error) {
	return o.FindAll(ctx, func(db *gorm.DB) {
		db.Where("status = ?", models.OutboxStatusPending).Order("id ASC").Limit(limit)
	})
}

func (o *Outbox) MarkSent(ctx context.Context, id uint64) error {
	now := time.Now()
	_, err := o.UpdateById(ctx, id, map[string]any{
		"status":   models.OutboxStatusSent,
		"attempts": gorm.Expr("attempts + 1"),
		"sent_at":  &now,
	})
	return err
}

// MarkFailed 保持待投递状态，下次轮询重试
func (o *Outbox) MarkFailed(ctx context.Context, id uint64, reason string) error {
	if len(reason) > 255 {
		reason = reason[:255]
	}
	_, err := o.UpdateById(ctx, id, map[string]any{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": reason,
	})
	return err
}
