package observability

import (
	"context"
	"time"

	"opsdemo/internal/crm"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStatus wraps a crm.StatusProvider with a span, a latency
// histogram and per-state counters for every status check.
type InstrumentedStatus struct {
	inner    crm.StatusProvider
	tracer   trace.Tracer
	duration metric.Float64Histogram
	requests metric.Int64Counter
	errors   metric.Int64Counter
}

var _ crm.StatusProvider = (*InstrumentedStatus)(nil)

// NewInstrumentedStatus decorates inner.
func NewInstrumentedStatus(inner crm.StatusProvider, opts ...InstrumentOption) (*InstrumentedStatus, error) {
	cfg := newInstrumentConfig(opts)
	meter := cfg.meterProvider.Meter(instrumentationName + "/crm")

	duration, err := meter.Float64Histogram(
		"crm.status.duration",
		metric.WithDescription("Duration of CRM status checks in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requests, err := meter.Int64Counter(
		"crm.status.requests",
		metric.WithDescription("Number of CRM status checks by resulting state"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"crm.status.errors",
		metric.WithDescription("Number of CRM status checks that did not report ok"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStatus{
		inner:    inner,
		tracer:   cfg.tracerProvider.Tracer(instrumentationName + "/crm"),
		duration: duration,
		requests: requests,
		errors:   errCounter,
	}, nil
}

// GetStatus delegates to the wrapped provider and records the outcome.
func (s *InstrumentedStatus) GetStatus(ctx context.Context) crm.Result {
	ctx, span := s.tracer.Start(ctx, "crm.GetStatus")
	defer span.End()

	start := time.Now()
	result := s.inner.GetStatus(ctx)
	state := result.State()

	attrs := metric.WithAttributes(attribute.String("state", state.String()))
	s.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	s.requests.Add(ctx, 1, attrs)

	span.SetAttributes(attribute.String("crm.status", state.String()))
	if org, ok := result.Org(); ok {
		span.SetAttributes(attribute.String("crm.org", org))
	}

	switch state {
	case crm.StateOK:
		span.SetStatus(codes.Ok, "")
	case crm.StateDisabled:
		s.errors.Add(ctx, 1, attrs)
	default:
		s.errors.Add(ctx, 1, attrs)
		span.SetStatus(codes.Error, state.String())
	}

	return result
}
