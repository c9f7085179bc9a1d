package orm

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/arllen133/usersvc/orm"
	meterName  = "github.com/arllen133/usersvc/orm"
)

// Metrics holds the OpenTelemetry metric instruments
type Metrics struct {
	QueryCount    metric.Int64Counter
	QueryDuration metric.Float64Histogram
	QueryErrors   metric.Int64Counter
}

// ObservabilityConfig holds logging, tracing, and metrics configuration
type ObservabilityConfig struct {
	Logger             *slog.Logger
	Tracer             trace.Tracer
	Metrics            *Metrics
	SlowQueryThreshold time.Duration
	LogQueries         bool // Log all queries (debug mode)
}

func defaultObservabilityConfig() *ObservabilityConfig {
	return &ObservabilityConfig{
		SlowQueryThreshold: 200 * time.Millisecond,
	}
}

// WithLogger sets the logger for the engine and its sessions
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.obs.Logger = logger
	}
}

// WithTracer sets the OpenTelemetry tracer
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.obs.Tracer = tracer
	}
}

// WithDefaultTracer uses the global OpenTelemetry tracer
func WithDefaultTracer() Option {
	return WithTracer(otel.Tracer(tracerName))
}

// WithMeter sets the OpenTelemetry meter for metrics
func WithMeter(meter metric.Meter) Option {
	return func(e *Engine) {
		e.obs.Metrics = initMetrics(meter)
	}
}

// WithDefaultMeter uses the global OpenTelemetry meter
func WithDefaultMeter() Option {
	return WithMeter(otel.Meter(meterName))
}

// WithSlowQueryThreshold sets the slow query threshold for logging
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.obs.SlowQueryThreshold = d
		}
	}
}

// WithQueryLogging enables logging of all queries
func WithQueryLogging(enabled bool) Option {
	return func(e *Engine) {
		e.obs.LogQueries = enabled
	}
}

func initMetrics(meter metric.Meter) *Metrics {
	queryCount, _ := meter.Int64Counter("orm.query.count",
		metric.WithDescription("Total number of SQL queries executed"),
		metric.WithUnit("{query}"),
	)

	queryDuration, _ := meter.Float64Histogram("orm.query.duration",
		metric.WithDescription("Query execution duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)

	queryErrors, _ := meter.Int64Counter("orm.query.errors",
		metric.WithDescription("Total number of query errors"),
		metric.WithUnit("{error}"),
	)

	return &Metrics{
		QueryCount:    queryCount,
		QueryDuration: queryDuration,
		QueryErrors:   queryErrors,
	}
}

// observe runs fn under a span, records metrics and logs the statement.
// sql.ErrNoRows is a result, not a failure.
func (s *Session) observe(ctx context.Context, operation, query string, fn func(context.Context) error) error {
	obs := s.engine.obs
	system := s.engine.dialect.Name()

	var span trace.Span
	if obs.Tracer != nil {
		ctx, span = obs.Tracer.Start(ctx, "orm."+operation,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("db.system", system),
				attribute.String("db.statement", query),
			),
		)
		defer span.End()
	}

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	failed := err != nil && !errors.Is(err, sql.ErrNoRows)
	if failed && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	obs.recordMetrics(ctx, system, operation, duration, failed)
	obs.logQuery(ctx, operation, query, duration, err, failed)
	return err
}

func (o *ObservabilityConfig) recordMetrics(ctx context.Context, system, operation string, duration time.Duration, failed bool) {
	if o.Metrics == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("db.operation", operation),
		attribute.String("db.system", system),
	)

	o.Metrics.QueryCount.Add(ctx, 1, attrs)
	o.Metrics.QueryDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if failed {
		o.Metrics.QueryErrors.Add(ctx, 1, attrs)
	}
}

func (o *ObservabilityConfig) logQuery(ctx context.Context, operation, query string, duration time.Duration, err error, failed bool) {
	if o.Logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.Duration("duration", duration),
	}

	if o.LogQueries {
		attrs = append(attrs, slog.String("query", query))
	}

	if failed {
		o.Logger.LogAttrs(ctx, slog.LevelError, "query failed", append(attrs, slog.String("error", err.Error()))...)
		return
	}

	if duration > o.SlowQueryThreshold {
		o.Logger.LogAttrs(ctx, slog.LevelWarn, "slow query", attrs...)
		return
	}

	if o.LogQueries {
		o.Logger.LogAttrs(ctx, slog.LevelDebug, "query executed", attrs...)
	}
}
