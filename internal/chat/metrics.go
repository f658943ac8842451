package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connected_clients",
		Help: "Number of users currently registered",
	})

	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total lines processed by type",
	}, []string{"type"})

	DeliveryFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_delivery_failures_total",
		Help: "Writes to a peer connection that failed during fan-out",
	})

	EventProcessingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_event_processing_seconds",
		Help:    "Time to dispatch one inbound line, by type",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
)

const (
	metricJoin              = "join"
	metricDisconnect        = "disconnect"
	metricHandshakeRejected = "handshake_rejected"
)

func init() {
	prometheus.MustRegister(ConnectedClients)
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(DeliveryFailures)
	prometheus.MustRegister(EventProcessingDuration)
}
