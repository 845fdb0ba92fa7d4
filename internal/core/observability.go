package core

import (
	"context"
	"time"

	"pidcheck/pkg/domain"
)

// MetricsRecorder receives the outcome and latency of every service
// operation: build, validate, save, load, list, delete and archive.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// ReportObserver is told the overall status of every report the service
// produces.
type ReportObserver interface {
	ObserveReport(status domain.Status)
}

// Tracer starts a span around a service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended with the operation's error, nil on success.
type TraceSpan interface {
	End(err error)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopReportObserver struct{}

func (noopReportObserver) ObserveReport(domain.Status) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
