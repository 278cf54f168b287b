package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "marketplace"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency by route.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route", "status"},
	)
	UsersRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "users_registered_total", Help: "Number of registered accounts."},
	)
	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "messages_sent_total", Help: "Number of stored chat messages by kind (direct, group)."},
		[]string{"kind"},
	)
	ItemsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "items_created_total", Help: "Number of marketplace listings created."},
	)
	TransactionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "transactions_total", Help: "Number of transactions reaching each status."},
		[]string{"status"},
	)
	WebsocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "websocket_clients", Help: "Connected chat websocket clients on this instance."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(RequestDuration)
	reg.MustRegister(UsersRegistered)
	reg.MustRegister(MessagesSent)
	reg.MustRegister(ItemsCreated)
	reg.MustRegister(TransactionTransitions)
	reg.MustRegister(WebsocketClients)
}

// Middleware records request latency labelled with the matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
