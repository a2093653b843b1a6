package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	trades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lutinex",
			Subsystem: "market",
			Name:      "trades_total",
			Help:      "Buy and sell requests by outcome.",
		},
		[]string{"side", "outcome"},
	)

	tradedShares = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lutinex",
			Subsystem: "market",
			Name:      "traded_shares_total",
			Help:      "Shares moved by successful trades.",
		},
		[]string{"side"},
	)

	dayAdvances = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lutinex",
			Subsystem: "market",
			Name:      "day_advances_total",
			Help:      "Day advances by outcome.",
		},
		[]string{"outcome"},
	)

	dayAdvanceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lutinex",
			Subsystem: "market",
			Name:      "day_advance_duration_seconds",
			Help:      "Duration of day advance transactions.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
	)

	pricesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lutinex",
			Subsystem: "market",
			Name:      "prices_written_total",
			Help:      "Share prices appended by day advances.",
		},
	)

	dividendsPaid = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lutinex",
			Subsystem: "market",
			Name:      "dividends_paid_total",
			Help:      "Total amount credited as dividends.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lutinex",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lutinex",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)
)

func init() {
	Registry.MustRegister(
		trades,
		tradedShares,
		dayAdvances,
		dayAdvanceDuration,
		pricesWritten,
		dividendsPaid,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// ObserveTrade records one buy or sell attempt.
func ObserveTrade(side, outcome string, shares int64) {
	trades.WithLabelValues(side, outcome).Inc()
	if outcome == "ok" {
		tradedShares.WithLabelValues(side).Add(float64(shares))
	}
}

// ObserveDayAdvance records one day advance attempt.
func ObserveDayAdvance(outcome string, prices int, d time.Duration) {
	dayAdvances.WithLabelValues(outcome).Inc()
	dayAdvanceDuration.Observe(d.Seconds())
	if outcome == "ok" {
		pricesWritten.Add(float64(prices))
	}
}

// ObserveDividends records a completed distribution.
func ObserveDividends(amount float64) {
	if amount > 0 {
		dividendsPaid.Add(amount)
	}
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request counts and latency per chi route pattern.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
