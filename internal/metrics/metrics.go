package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	OrdersCreated          *prometheus.CounterVec
	PaymentCallbacks       *prometheus.CounterVec
	StockDecrementFailures prometheus.Counter
	RequestDuration        *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_orders_created_total",
			Help: "Orders created, by checkout kind.",
		}, []string{"kind"}),
		PaymentCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_payment_callbacks_total",
			Help: "Payment provider callbacks, by outcome.",
		}, []string{"outcome"}),
		StockDecrementFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_stock_decrement_failures_total",
			Help: "Stock decrements that failed after order creation.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shop_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	reg.MustRegister(
		m.OrdersCreated,
		m.PaymentCallbacks,
		m.StockDecrementFailures,
		m.RequestDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
