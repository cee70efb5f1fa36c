package observability

import (
	"context"
	"fmt"
	"time"

	"cms-query-workers/internal/jcrquery"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability owns the OpenTelemetry meter provider. Its instruments are
// exported through the default Prometheus registry.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	jobCounter    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
	queryCounter  otelmetric.Int64Counter
	queryDuration otelmetric.Float64Histogram
}

// New builds a provider reading into the Prometheus exporter, or into the
// given readers when any are passed.
func New(serviceName string, readers ...metric.Reader) (*Observability, error) {
	if len(readers) == 0 {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		readers = append(readers, exporter)
	}

	opts := make([]metric.Option, 0, len(readers))
	for _, r := range readers {
		opts = append(opts, metric.WithReader(r))
	}
	provider := metric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)
	o := &Observability{meterProvider: provider, meter: meter}

	var err error
	if o.jobCounter, err = meter.Int64Counter("jobs.processed",
		otelmetric.WithDescription("Number of jobs processed")); err != nil {
		return nil, err
	}
	if o.jobDuration, err = meter.Float64Histogram("jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if o.queryCounter, err = meter.Int64Counter("queries.executed",
		otelmetric.WithDescription("Structured queries executed")); err != nil {
		return nil, err
	}
	if o.queryDuration, err = meter.Float64Histogram("queries.duration",
		otelmetric.WithDescription("Structured query latency"),
		otelmetric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o == nil || o.jobCounter == nil {
		return
	}
	o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string) {
	if o == nil || o.jobDuration == nil {
		return
	}
	o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

// QueryStarted and QueryFinished let Observability serve as a query observer.
func (o *Observability) QueryStarted(context.Context, jcrquery.Workspace, jcrquery.BuiltQuery) {}

func (o *Observability) QueryFinished(ctx context.Context, workspace jcrquery.Workspace, _ jcrquery.BuiltQuery, _ int, elapsed time.Duration, err error) {
	if o == nil || o.queryCounter == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("workspace", string(workspace)),
		attribute.String("status", status),
	)
	o.queryCounter.Add(ctx, 1, attrs)
	o.queryDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return o.meterProvider.Shutdown(ctx)
}
