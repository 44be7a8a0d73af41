// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package storage

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/stowage/internal/logging"
	"github.com/tomtom215/stowage/internal/metrics"
)

// BreakerSettings tune the circuit breaker in front of a remote backend.
type BreakerSettings struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint32

	// OpenTimeout is how long the circuit stays open before a trial call.
	OpenTimeout time.Duration
}

// DefaultBreakerSettings opens after three consecutive failures and probes
// again after one minute.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{FailureThreshold: 3, OpenTimeout: time.Minute}
}

// breaker wraps calls to one remote backend.
type breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[interface{}]
}

func newBreaker(name string, settings BreakerSettings) *breaker {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = DefaultBreakerSettings().FailureThreshold
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// A canceled caller says nothing about the backend's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
	return &breaker{name: name, cb: cb}
}

// State returns the current breaker state.
func (b *breaker) State() gobreaker.State {
	return b.cb.State()
}

// execute runs fn through the breaker and records the outcome.
func execute[T any](b *breaker, fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		}
		var zero T
		return zero, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	out, _ := res.(T)
	return out, nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
