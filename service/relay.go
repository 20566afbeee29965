package service

import (
	"Storefront/config"
	"Storefront/dao"
	"Storefront/pkg/log"
	"Storefront/pkg/rocketmq"
	"context"
	"time"

	"go.uber.org/zap"
)

// OutboxRelay 轮询 outbox，把订单事件投递到 MQ。投递成功才标记，失败的留到下一轮，至少一次
type OutboxRelay struct {
	Config    *config.Config
	OutboxDAO *dao.Outbox
	Publisher rocketmq.Publisher
}

func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Config.Order.OutboxPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				log.L.Warn("outbox flush failed", zap.Error(err))
			}
		}
	}
}

// Flush 投递一批待发送消息，返回成功条数
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	rows, err := r.OutboxDAO.Pending(ctx, r.Config.Order.OutboxBatch)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, row := range rows {
		if err = r.Publisher.Publish(ctx, row.Topic, orderKey(row.OrderID), row.Payload); err != nil {
			outboxPublishedTotal.WithLabelValues("error").Inc()
			log.L.Warn("publish outbox message failed",
				zap.Uint64("id", row.ID), zap.Int64("order_id", row.OrderID), zap.Error(err))
			if err = r.OutboxDAO.MarkFailed(ctx, row.ID, err.Error()); err != nil {
				return sent, err
			}
			continue
		}
		if err = r.OutboxDAO.MarkSent(ctx, row.ID); err != nil {
			return sent, err
		}
		outboxPublishedTotal.WithLabelValues("ok").Inc()
		sent++
	}
	return sent, nil
}
