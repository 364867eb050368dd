package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// MessagesSent counts persisted guard/resident messages by channel (rest, socket) and sender role.
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_messages_sent_total",
		Help: "Total number of messages persisted",
	}, []string{"channel", "sender_role"})

	// WebSocketConnections is the gauge of open socket connections on this process.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gatehouse_websocket_connections",
		Help: "Number of active WebSocket connections",
	})

	// WebSocketEvents counts inbound socket events by name and outcome.
	WebSocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_websocket_events_total",
		Help: "Total inbound WebSocket events by name and outcome",
	}, []string{"event", "outcome"})

	// WebSocketBackpressureDrops counts frames dropped because a client's queue was full or closed.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket frames dropped due to backpressure",
	}, []string{"reason"})

	// FanoutPublishes counts room fan-out publications by transport (redis, local).
	FanoutPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_fanout_publishes_total",
		Help: "Total number of fan-out publications by transport",
	}, []string{"transport"})

	// DBQueryDuration observes SQL latency by statement verb (select, insert, update, delete).
	DBQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatehouse_db_query_duration_seconds",
		Help:    "Database query latency by statement verb",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation"})
)
