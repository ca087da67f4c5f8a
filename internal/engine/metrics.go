package engine

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/reqview/internal/connectors"
	"github.com/xela07ax/reqview/internal/domain"
)

type Metrics struct {
	// Latency: сколько заняла выборка (включая повторы)
	FetchDuration *prometheus.HistogramVec

	// Traffic: исход каждой выборки — ok, api_error, failed
	FetchTotal *prometheus.CounterVec

	// Errors: классификация отказов
	ErrorTotal *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - ок, 0.5 - проба, 1 - выбило)
	CircuitBreakerState *prometheus.GaugeVec

	// Cache: попадания и промахи Redis
	CacheTotal *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		FetchDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reqview_fetch_duration_seconds",
			Help:    "Histogram of query latencies.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"source", "outcome"}),

		FetchTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "reqview_fetch_total",
			Help: "Total number of issued queries by outcome.",
		}, []string{"source", "outcome"}),

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "reqview_errors_total",
			Help: "Total number of errors by type.",
		}, []string{"type"}), // типы: api, throttle, server, circuit_open, timeout, canceled, transport

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "reqview_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 0.5=half-open, 1=open).",
		}, []string{"name"}),

		CacheTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "reqview_cache_total",
			Help: "Response cache lookups by result.",
		}, []string{"result"}), // hit, miss, error
	}
}

// Instrument оборачивает Fetcher сбором метрик.
func Instrument(next Fetcher, m *Metrics, source string) Fetcher {
	return FetcherFunc(func(ctx context.Context, q domain.Query) (*domain.Response, error) {
		start := time.Now()
		resp, err := next.Fetch(ctx, q)

		outcome := "ok"
		switch {
		case err != nil:
			outcome = "failed"
			m.ErrorTotal.WithLabelValues(ErrorType(err)).Inc()
		case !resp.OK():
			outcome = "api_error"
			m.ErrorTotal.WithLabelValues("api").Inc()
		}

		m.FetchTotal.WithLabelValues(source, outcome).Inc()
		m.FetchDuration.WithLabelValues(source, outcome).Observe(time.Since(start).Seconds())
		return resp, err
	})
}

// ErrorType сводит ошибку к метке для метрик и логов.
func ErrorType(err error) string {
	var tErr *connectors.ThrottleError
	var sErr *connectors.ServerError
	switch {
	case errors.As(err, &tErr):
		return "throttle"
	case errors.As(err, &sErr):
		return "server"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transport"
	}
}
