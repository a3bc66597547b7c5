// Package metrics exposes engine activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/lobsim/internal/domain"
)

const namespace = "lob"

// Sources are read lazily at scrape time. Nil entries are not registered.
type Sources struct {
	QueueDepth    func() int
	Processed     func() uint64
	DroppedEvents func() uint64
	PendingEvents func() int
}

// Collector turns engine events into metrics. It is an events.Handler.
type Collector struct {
	tick decimal.Decimal

	events         *prometheus.CounterVec
	trades         prometheus.Counter
	tradedQuantity prometheus.Counter
	tradeSize      prometheus.Histogram
	lastTradePrice prometheus.Gauge
	stopsTriggered prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer, instrument string, tick decimal.Decimal, src Sources) *Collector {
	labels := prometheus.Labels{"instrument": instrument}
	c := &Collector{
		tick: tick,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "events_total",
			Help:        "Engine events by type.",
			ConstLabels: labels,
		}, []string{"type"}),
		trades: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "trades_total",
			Help:        "Executed trades.",
			ConstLabels: labels,
		}),
		tradedQuantity: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "traded_quantity_total",
			Help:        "Sum of executed quantity.",
			ConstLabels: labels,
		}),
		tradeSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "trade_size",
			Help:        "Distribution of executed quantity per trade.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 10),
		}),
		lastTradePrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_trade_price",
			Help:        "Price of the most recent trade.",
			ConstLabels: labels,
		}),
		stopsTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "stops_triggered_total",
			Help:        "Stop orders converted to market orders.",
			ConstLabels: labels,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of response latency (seconds) for HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	reg.MustRegister(
		c.events,
		c.trades,
		c.tradedQuantity,
		c.tradeSize,
		c.lastTradePrice,
		c.stopsTriggered,
		c.httpRequests,
		c.httpDuration,
	)

	if src.QueueDepth != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "queue_depth",
			Help:        "Requests waiting for the matching worker.",
			ConstLabels: labels,
		}, func() float64 { return float64(src.QueueDepth()) }))
	}
	if src.Processed != nil {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "requests_processed_total",
			Help:        "Requests completed by the matching worker.",
			ConstLabels: labels,
		}, func() float64 { return float64(src.Processed()) }))
	}
	if src.DroppedEvents != nil {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "events_dropped_total",
			Help:        "Events discarded because the dispatcher buffer was full.",
			ConstLabels: labels,
		}, func() float64 { return float64(src.DroppedEvents()) }))
	}
	if src.PendingEvents != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "events_pending",
			Help:        "Events buffered for delivery.",
			ConstLabels: labels,
		}, func() float64 { return float64(src.PendingEvents()) }))
	}

	return c
}

// Handle records one engine event.
func (c *Collector) Handle(_ context.Context, ev domain.Event) error {
	c.events.WithLabelValues(string(ev.Type)).Inc()
	switch ev.Type {
	case domain.EventTrade:
		c.trades.Inc()
		c.tradedQuantity.Add(float64(ev.Quantity))
		c.tradeSize.Observe(float64(ev.Quantity))
		c.lastTradePrice.Set(domain.TicksToPrice(ev.Price, c.tick).InexactFloat64())
	case domain.EventStopTriggered:
		c.stopsTriggered.Inc()
	}
	return nil
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware counts requests and observes latency per chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		c.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
		c.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
