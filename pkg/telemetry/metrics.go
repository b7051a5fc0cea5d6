// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ChainMetrics tracks provider-chain behavior: how often each tier is
// attempted, fails, and wins, plus attempt latency. All methods are safe
// on a nil receiver so instrumentation stays optional.
type ChainMetrics struct {
	attempts  metric.Int64Counter
	failures  metric.Int64Counter
	accepted  metric.Int64Counter
	fallbacks metric.Int64Counter
	latency   metric.Float64Histogram
}

// NewChainMetrics creates a provider-chain metrics tracker with OTEL meters.
func NewChainMetrics() (*ChainMetrics, error) {
	meter := otel.Meter("fleetsense/analyzer")

	attempts, err := meter.Int64Counter(
		"fleetsense.provider.attempts",
		metric.WithDescription("Provider attempts by tier"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"fleetsense.provider.failures",
		metric.WithDescription("Provider failures by tier and error code"),
	)
	if err != nil {
		return nil, err
	}

	accepted, err := meter.Int64Counter(
		"fleetsense.provider.accepted",
		metric.WithDescription("Accepted responses by tier"),
	)
	if err != nil {
		return nil, err
	}

	fallbacks, err := meter.Int64Counter(
		"fleetsense.chain.fallbacks",
		metric.WithDescription("Transitions to a lower tier"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram(
		"fleetsense.provider.latency",
		metric.WithDescription("Provider attempt latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &ChainMetrics{
		attempts:  attempts,
		failures:  failures,
		accepted:  accepted,
		fallbacks: fallbacks,
		latency:   latency,
	}, nil
}

// RecordAttempt counts one attempt against a tier.
func (m *ChainMetrics) RecordAttempt(ctx context.Context, tier string) {
	if m == nil {
		return
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}

// RecordFailure counts a failed attempt with its error code.
func (m *ChainMetrics) RecordFailure(ctx context.Context, tier, code string) {
	if m == nil {
		return
	}
	m.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.String("code", code),
	))
}

// RecordAccepted counts an accepted response for a tier.
func (m *ChainMetrics) RecordAccepted(ctx context.Context, tier string) {
	if m == nil {
		return
	}
	m.accepted.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}

// RecordFallback counts a transition from one tier to the next.
func (m *ChainMetrics) RecordFallback(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordLatency records one attempt duration for a tier.
func (m *ChainMetrics) RecordLatency(ctx context.Context, tier string, seconds float64) {
	if m == nil {
		return
	}
	m.latency.Record(ctx, seconds, metric.WithAttributes(attribute.String("tier", tier)))
}
