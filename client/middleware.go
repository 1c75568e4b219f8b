// Package client decorates the remote boundary interfaces with circuit
// breaking, rate limiting, request tagging and instrumentation.
package client

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/abhissng/cortex/adapters/log"
	"github.com/abhissng/cortex/adapters/metrics"
	"github.com/abhissng/cortex/core"
)

type requestIDKey struct{}

// RequestID returns the request id tagged on the context by the
// middleware, or an empty string.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Middleware wraps boundary calls with a shared circuit breaker, an
// optional rate limiter, structured logging and request metrics.
type Middleware struct {
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *log.Log
	metrics *metrics.BatchMetrics
}

// MiddlewareOption configures a Middleware.
type MiddlewareOption func(*Middleware)

// WithRateLimit caps outgoing calls at the given number per window.
func WithRateLimit(count int, window time.Duration) MiddlewareOption {
	return func(m *Middleware) {
		if count > 0 && window > 0 {
			m.limiter = rate.NewLimiter(rate.Limit(float64(count)/window.Seconds()), 1)
		}
	}
}

// WithMiddlewareLogger sets the logger.
func WithMiddlewareLogger(logger *log.Log) MiddlewareOption {
	return func(m *Middleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics registers a request metrics sink.
func WithMetrics(metrics *metrics.BatchMetrics) MiddlewareOption {
	return func(m *Middleware) {
		m.metrics = metrics
	}
}

// WithBreakerSettings replaces the default circuit breaker.
func WithBreakerSettings(settings gobreaker.Settings) MiddlewareOption {
	return func(m *Middleware) {
		m.breaker = gobreaker.NewCircuitBreaker(settings)
	}
}

// NewMiddleware creates a middleware with a breaker tripping after five
// consecutive failures and recovering after ten seconds.
func NewMiddleware(name string, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		logger: log.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Middleware) do(ctx context.Context, operation string, call func(ctx context.Context) (any, error)) (any, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	requestID := uuid.NewString()
	ctx = context.WithValue(ctx, requestIDKey{}, requestID)

	start := time.Now()
	out, err := m.breaker.Execute(func() (any, error) {
		return call(ctx)
	})
	elapsed := time.Since(start)

	if m.metrics != nil {
		m.metrics.ObserveRequest(operation, statusLabel(err), elapsed)
	}

	if err != nil {
		m.logger.Warn("boundary request failed",
			log.String("operation", operation),
			log.String("requestId", requestID),
			log.Duration("elapsed", elapsed),
			log.Err(err))
		return nil, err
	}

	m.logger.Debug("boundary request completed",
		log.String("operation", operation),
		log.String("requestId", requestID),
		log.Duration("elapsed", elapsed))
	return out, nil
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		return strconv.Itoa(apiErr.Status)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "rejected"
	}
	return "error"
}

// WrapRetriever returns a Retriever routed through the middleware.
func WrapRetriever[T any](m *Middleware, operation string, inner core.Retriever[T]) core.Retriever[T] {
	return retrieverFunc[T](func(ctx context.Context, ids []core.Value, ignoreUnknown bool) ([]T, error) {
		out, err := m.do(ctx, operation, func(ctx context.Context) (any, error) {
			return inner.Retrieve(ctx, ids, ignoreUnknown)
		})
		if err != nil {
			return nil, err
		}
		return out.([]T), nil
	})
}

// WrapCreator returns a Creator routed through the middleware.
func WrapCreator[TItem, TCreate any](m *Middleware, operation string, inner core.Creator[TItem, TCreate]) core.Creator[TItem, TCreate] {
	return creatorFunc[TItem, TCreate](func(ctx context.Context, items []TCreate) ([]TItem, error) {
		out, err := m.do(ctx, operation, func(ctx context.Context) (any, error) {
			return inner.Create(ctx, items)
		})
		if err != nil {
			return nil, err
		}
		return out.([]TItem), nil
	})
}

// WrapUpserter returns an Upserter routed through the middleware.
func WrapUpserter[TItem, TUpdate any](m *Middleware, operation string, inner core.Upserter[TItem, TUpdate]) core.Upserter[TItem, TUpdate] {
	return upserterFunc[TItem, TUpdate](func(ctx context.Context, items []TUpdate) ([]TItem, error) {
		out, err := m.do(ctx, operation, func(ctx context.Context) (any, error) {
			return inner.Upsert(ctx, items)
		})
		if err != nil {
			return nil, err
		}
		return out.([]TItem), nil
	})
}

type retrieverFunc[T any] func(ctx context.Context, ids []core.Value, ignoreUnknown bool) ([]T, error)

func (f retrieverFunc[T]) Retrieve(ctx context.Context, ids []core.Value, ignoreUnknown bool) ([]T, error) {
	return f(ctx, ids, ignoreUnknown)
}

type creatorFunc[TItem, TCreate any] func(ctx context.Context, items []TCreate) ([]TItem, error)

func (f creatorFunc[TItem, TCreate]) Create(ctx context.Context, items []TCreate) ([]TItem, error) {
	return f(ctx, items)
}

type upserterFunc[TItem, TUpdate any] func(ctx context.Context, items []TUpdate) ([]TItem, error)

func (f upserterFunc[TItem, TUpdate]) Upsert(ctx context.Context, items []TUpdate) ([]TItem, error) {
	return f(ctx, items)
}
