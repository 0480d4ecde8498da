package patterns

import (
	"errors"
	"fmt"

	"github.com/example/orderdesk/pkg/config"
	"github.com/example/orderdesk/pkg/metrics"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// CircuitBreaker wraps gobreaker with metrics and logging.
type CircuitBreaker struct {
	cb           *gobreaker.CircuitBreaker
	name         string
	isSuccessful func(error) bool
}

// NewCircuitBreaker builds a breaker from cfg. isSuccessful decides which
// errors say nothing about the health of the callee and so must not count
// toward tripping; nil counts every error.
func NewCircuitBreaker(name string, cfg config.BreakerConfig, isSuccessful func(error) bool, logger *zap.Logger) *CircuitBreaker {
	minRequests := cfg.MinRequests
	ratio := cfg.FailureRatio
	if isSuccessful == nil {
		isSuccessful = func(err error) bool { return err == nil }
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:         name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		IsSuccessful: isSuccessful,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests || counts.Requests == 0 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		OnStateChange: func(cbName string, from gobreaker.State, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(cbName).Set(float64(StateValue(to)))
			logger.Info("Circuit breaker state changed",
				zap.String("circuit", cbName),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return &CircuitBreaker{cb: cb, name: name, isSuccessful: isSuccessful}
}

// Execute runs fn through the breaker. Errors from an open breaker are
// reworded but still match gobreaker's sentinels.
func (c *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := c.cb.Execute(fn)
	if err != nil {
		if !c.isSuccessful(err) {
			metrics.CircuitBreakerFailures.WithLabelValues(c.name).Inc()
		}
		return nil, c.formatError(err)
	}
	return result, nil
}

func (c *CircuitBreaker) formatError(err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return fmt.Errorf("circuit breaker %s is open (service unavailable): %w", c.name, err)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("circuit breaker %s: too many requests in half-open state: %w", c.name, err)
	}
	return err
}

func (c *CircuitBreaker) State() gobreaker.State {
	return c.cb.State()
}

// StateValue maps a breaker state to the gauge value (0=closed, 1=open, 2=half-open).
func StateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return -1
	}
}
