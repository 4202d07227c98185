package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rookies_ws_connections",
		Help: "open websocket connections",
	})
	WSMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rookies_ws_messages_sent_total",
		Help: "frames enqueued to websocket clients",
	})
	WSSlowClients = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rookies_ws_slow_clients_total",
		Help: "connections dropped because their send queue was full",
	})
	ChatMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rookies_chat_messages_total",
		Help: "chat messages persisted",
	})
	BetsPlaced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rookies_bets_placed_total",
		Help: "bets accepted",
	})
	BetsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rookies_bets_rejected_total",
		Help: "bet placements refused, by reason",
	}, []string{"reason"})
	BetsSettled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rookies_bets_settled_total",
		Help: "bets settled, by final status",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(WSConnections, WSMessagesSent, WSSlowClients,
		ChatMessages, BetsPlaced, BetsRejected, BetsSettled)
}
