package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	slogctx "github.com/veqryn/slog-context"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/config"
)

const (
	attrRequestID = "request_id"
	attrOperation = "operation"
)

var (
	counter metric.Int64Counter
	hist    metric.Int64Histogram
)

func applicationAttributes(cfg *config.Config, extra ...attribute.KeyValue) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("application.name", cfg.Application.Name),
		attribute.String("application.environment", cfg.Application.Environment),
	}

	return append(attrs, extra...)
}

func initMeters(ctx context.Context, cfg *config.Config) error {
	meter := otel.Meter(
		"loanlounge/"+cfg.Application.Name,
		metric.WithInstrumentationVersion(otel.Version()),
		metric.WithInstrumentationAttributes(applicationAttributes(cfg)...),
	)

	var err error

	counter, err = meter.Int64Counter(
		"http.request_count",
		metric.WithDescription("Incoming request count"),
		metric.WithUnit("request"),
	)
	if err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "creating request_count meter")
	}

	hist, err = meter.Int64Histogram(
		"http.duration",
		metric.WithDescription("Incoming end to end duration"),
		metric.WithUnit("milliseconds"),
	)
	if err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "creating duration meter")
	}

	return nil
}

// withTelemetry wraps a handler with the request-scoped log fields, a span
// and the request counters for one named operation.
func withTelemetry(cfg *config.Config, operation string, next http.HandlerFunc) http.HandlerFunc {
	traceAttrs := applicationAttributes(cfg, attribute.String(attrOperation, operation))
	tracer := otel.Tracer(operation, trace.WithInstrumentationAttributes(traceAttrs...))

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := slogctx.With(r.Context(),
			attrRequestID, uuid.NewString(),
			attrOperation, operation,
		)

		parentCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(r.Header))

		ctx, span := tracer.Start(parentCtx, operation+"-span", trace.WithAttributes(traceAttrs...))
		defer span.End()

		requestStartTime := time.Now()

		defer func() {
			elapsedTime := time.Since(requestStartTime)

			attrs := metric.WithAttributes(
				applicationAttributes(cfg,
					attribute.String("userAgent", r.UserAgent()),
					attribute.String(attrOperation, operation),
				)...,
			)

			counter.Add(ctx, 1, attrs)
			hist.Record(ctx, elapsedTime.Milliseconds(), attrs)
		}()

		slogctx.Debug(ctx, "Processing "+operation+" request")
		next(w, r.WithContext(ctx))
		slogctx.Debug(ctx, "Finished "+operation+" request")
	}
}
