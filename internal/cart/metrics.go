package cart

import "github.com/prometheus/client_golang/prometheus"

var (
	// 远端写入结果：ok / rejected（被更新的文档覆盖） / error
	remoteWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_remote_writes_total",
			Help: "Total number of debounced cart write-backs",
		},
		[]string{"result"},
	)

	remoteUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_remote_updates_total",
			Help: "Realtime cart updates received, by outcome",
		},
		[]string{"outcome"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cart_active_sessions",
			Help: "Number of live cart coordinators",
		},
	)
)

func init() {
	prometheus.MustRegister(remoteWritesTotal)
	prometheus.MustRegister(remoteUpdatesTotal)
	prometheus.MustRegister(activeSessions)
}
