// Package resilience wraps outbound provider calls with a circuit breaker,
// bounded exponential retries and per-provider health bookkeeping.
package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the circuit breaker guarding one provider.
type BreakerConfig struct {
	// Name is reported in logs and in the ops status endpoint.
	Name string

	// HalfOpenRequests is how many probes may pass while half-open.
	// Default: 1
	HalfOpenRequests uint32

	// Interval clears the closed-state counts periodically. Zero keeps them.
	Interval time.Duration

	// OpenTimeout is how long the breaker stays open before probing.
	// Default: 60 seconds
	OpenTimeout time.Duration

	// ReadyToTrip decides when a closed breaker opens.
	// Default: TripOnFailureRatio(5, 0.5)
	ReadyToTrip func(counts gobreaker.Counts) bool

	Logger zerolog.Logger
}

// DefaultBreakerConfig returns the breaker settings used for data providers.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		HalfOpenRequests: 1,
		OpenTimeout:      60 * time.Second,
		ReadyToTrip:      TripOnFailureRatio(5, 0.5),
		Logger:           zerolog.Nop(),
	}
}

// TripOnFailureRatio opens the breaker once at least minRequests have been
// seen and the share of failures reaches ratio.
func TripOnFailureRatio(minRequests uint32, ratio float64) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests < minRequests || counts.Requests == 0 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
	}
}

func newBreaker[T any](cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = TripOnFailureRatio(5, 0.5)
	}
	logger := cfg.Logger

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: cfg.ReadyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("provider circuit changed state")
		},
	})
}
