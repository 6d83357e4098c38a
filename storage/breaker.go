package storage

import (
	"context"
	"errors"
	"time"

	"github.com/MLotfy88/Medi-Tempo/logging"
	"github.com/sony/gobreaker"
)

// BreakerSettings tunes when a backend is considered broken
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ConsecutiveFails uint32
}

// DefaultBreakerSettings trips after five consecutive failures and retries
// again after thirty seconds.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		ConsecutiveFails: 5,
	}
}

// Breaker guards a KeyValue backend with a circuit breaker
type Breaker struct {
	inner KeyValue
	cb    *gobreaker.CircuitBreaker
}

// NewBreaker wraps kv with the default breaker settings
func NewBreaker(kv KeyValue, name string) *Breaker {
	return NewBreakerWithSettings(kv, name, DefaultBreakerSettings())
}

// NewBreakerWithSettings wraps kv with custom breaker settings
func NewBreakerWithSettings(kv KeyValue, name string, s BreakerSettings) *Breaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "storage-" + name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFails
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logging.Warn("Storage circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is the caller's doing, not a backend failure
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	return &Breaker{inner: kv, cb: cb}
}

func (b *Breaker) GetItem(ctx context.Context, key string) ([]byte, bool, error) {
	type item struct {
		value []byte
		found bool
	}

	res, err := b.cb.Execute(func() (interface{}, error) {
		v, ok, err := b.inner.GetItem(ctx, key)
		return item{value: v, found: ok}, err
	})
	if err != nil {
		return nil, false, translateBreakerError(err)
	}

	it := res.(item)
	return it.value, it.found, nil
}

func (b *Breaker) SetItems(ctx context.Context, items map[string][]byte) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.SetItems(ctx, items)
	})
	return translateBreakerError(err)
}

func (b *Breaker) Close() error {
	return b.inner.Close()
}

// State reports the breaker state name: closed, half-open or open
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func translateBreakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrStorageUnavailable
	}
	return err
}
