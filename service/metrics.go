package service

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders placed",
		},
	)

	stockConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_stock_conflicts_total",
			Help: "Checkouts rejected because of insufficient stock",
		},
	)

	orderConfirmationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_confirmations_total",
			Help: "Order confirmation attempts by result",
		},
		[]string{"result"},
	)

	outboxPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_outbox_published_total",
			Help: "Outbox messages relayed by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(ordersCreatedTotal)
	prometheus.MustRegister(stockConflictsTotal)
	prometheus.MustRegister(orderConfirmationsTotal)
	prometheus.MustRegister(outboxPublishedTotal)
}
