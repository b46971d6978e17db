package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentbot_sales_total",
		Help: "Successfully provisioned rentals.",
	})
	ExtensionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentbot_extensions_total",
		Help: "Applied rental extensions.",
	})
	RefundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentbot_refunds_total",
		Help: "Refunds issued to buyers.",
	})
	ExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentbot_expired_total",
		Help: "Rentals closed by the expiry sweep.",
	})
	SendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentbot_chat_send_failures_total",
		Help: "Chat messages that failed after a committed state change.",
	})
	RateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentbot_rate_limit_hits_total",
		Help: "Rate-limited marketplace calls.",
	})
)
