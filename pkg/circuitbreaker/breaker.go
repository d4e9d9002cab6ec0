// Package circuitbreaker wraps sony/gobreaker for calls to the delivery
// backend. Reminder registration is best-effort, so when the backend is down
// the breaker sheds calls quickly instead of stalling every reschedule.
package circuitbreaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// State is the breaker state exposed to callers and metrics.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Config holds circuit breaker tuning.
type Config struct {
	// Name identifies the breaker in logs and metrics.
	Name string
	// MaxRequests is how many probe requests pass in half-open state.
	MaxRequests uint32
	// Interval clears counters in the closed state.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// FailureThreshold opens the breaker after this many consecutive
	// failures when traffic is light.
	FailureThreshold uint32
	// FailureRatio opens the breaker once this ratio fails.
	FailureRatio float64
	// MinRequests is the traffic floor before FailureRatio applies.
	MinRequests uint32
}

// DefaultConfig returns defaults tuned for a local notification broker:
// a missed registration is recoverable, so the breaker trips early and
// recovers fast.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      2,
		Interval:         30 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 3,
		FailureRatio:     0.5,
		MinRequests:      5,
	}
}

// CircuitBreaker guards one external collaborator.
type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	logger *zap.Logger

	rejected metric.Int64Counter

	mu    sync.RWMutex
	state State
}

// New creates a circuit breaker.
func New(cfg Config, logger *zap.Logger) (*CircuitBreaker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &CircuitBreaker{
		name:   cfg.Name,
		logger: logger,
		state:  StateClosed,
	}

	var err error
	b.rejected, err = otel.Meter("circuit-breaker").Int64Counter("circuit_breaker_rejected_total",
		metric.WithDescription("Calls rejected because the circuit was open"))
	if err != nil {
		return nil, fmt.Errorf("create rejected counter: %w", err)
	}

	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			b.mu.Lock()
			b.state = mapState(to)
			b.mu.Unlock()
			b.logger.Warn("circuit breaker state changed",
				zap.String("breaker", b.name),
				zap.String("from", string(mapState(from))),
				zap.String("to", string(mapState(to))))
		},
	})

	return b, nil
}

// Execute runs fn through the breaker.
func (b *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		b.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("name", b.name)))
	}
	return err
}

// GetState returns the current breaker state.
func (b *CircuitBreaker) GetState() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// IsOpen reports whether the breaker is currently shedding calls.
func (b *CircuitBreaker) IsOpen() bool { return b.GetState() == StateOpen }

func mapState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
