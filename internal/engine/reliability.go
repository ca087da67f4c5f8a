package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/reqview/internal/connectors"
	"github.com/xela07ax/reqview/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ReliabilityOptions — параметры предохранителя, лимитера и повторов.
type ReliabilityOptions struct {
	Name        string
	Attempts    uint
	BaseDelay   time.Duration
	RateLimit   float64 // запросов в секунду, 0 — без лимита
	RateBurst   int
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration // Время, через которое CB попробует "закрыться"
	MaxFailures uint32
}

func DefaultReliabilityOptions() ReliabilityOptions {
	return ReliabilityOptions{
		Name:        "postgrest",
		Attempts:    3,
		BaseDelay:   100 * time.Millisecond,
		RateLimit:   10,
		RateBurst:   5,
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		MaxFailures: 5,
	}
}

type ReliabilityWrapper struct {
	next    Fetcher
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	opts    ReliabilityOptions
	logger  *zap.Logger
}

func NewReliabilityWrapper(next Fetcher, opts ReliabilityOptions, metrics *Metrics, logger *zap.Logger) *ReliabilityWrapper {
	if opts.Attempts == 0 {
		opts.Attempts = 1
	}
	logger = logger.With(zap.String("mod", "reliability"))

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.MaxRequests,
		Interval:    opts.Interval,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > opts.MaxFailures
		},
		// Отмена со стороны вызывающего — не отказ сервиса
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerGauge(to))
			}
		},
	})

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &ReliabilityWrapper{
		next:    next,
		cb:      cb,
		limiter: rate.NewLimiter(limit, burst),
		opts:    opts,
		logger:  logger,
	}
}

func (w *ReliabilityWrapper) Fetch(ctx context.Context, q domain.Query) (*domain.Response, error) {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	// 2. Circuit Breaker
	cbResult, err := w.cb.Execute(func() (interface{}, error) {
		var finalResp *domain.Response

		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.opts.Attempts),
			retry.Delay(w.opts.BaseDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(connectors.IsRetryable),
			retry.OnRetry(func(n uint, err error) {
				w.logger.Warn("fetch attempt failed, retrying",
					zap.Uint("attempt", n+1), zap.String("query", q.String()), zap.Error(err))
			}),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Сервис сам сказал, сколько ждать
				var tErr *connectors.ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			var callErr error
			finalResp, callErr = w.next.Fetch(ctx, q)
			return callErr
		})

		return finalResp, retryErr
	})

	if err != nil {
		return nil, err
	}

	return cbResult.(*domain.Response), nil
}

// State отдает состояние предохранителя (для логов и health).
func (w *ReliabilityWrapper) State() gobreaker.State {
	return w.cb.State()
}

func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 0.5
	default:
		return 0
	}
}
