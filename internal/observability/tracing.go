// Package observability provides OpenTelemetry tracing and Prometheus metrics
// for the prediction pipeline.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name used for the agni tracer.
	TracerName = "github.com/efebarandurmaz/agni"
)

// TracingConfig configures the OpenTelemetry tracing.
type TracingConfig struct {
	// ServiceName is the name of the service (default: "agni")
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Environment is the deployment environment (dev, staging, prod)
	Environment string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317")
	// If empty, tracing is disabled.
	OTLPEndpoint string

	// SampleRate is the trace sampling rate (0.0 to 1.0, default: 1.0)
	SampleRate float64
}

// DefaultTracingConfig returns a default tracing configuration.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "agni",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider wraps the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing initializes OpenTelemetry tracing.
// Returns a no-op tracer if OTLPEndpoint is empty.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}

	// If no endpoint, return no-op tracer
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{
			tracer: otel.Tracer(TracerName),
		}, nil
	}

	// Create OTLP exporter
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(), // Use TLS in production
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	// Create resource with service info
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	// Create sampler
	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if cfg.SampleRate <= 0 {
		sampler = sdktrace.NeverSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	// Create trace provider
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	// Set global provider and propagator
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

// Shutdown gracefully shuts down the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns the underlying tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// SpanKind constants for pipeline operations.
const (
	SpanKindPrediction = "prediction"
	SpanKindRetrieval  = "retrieval"
	SpanKindLLM        = "llm"
	SpanKindCorpusLoad = "corpus_load"
)

// StartPredictionSpan starts the root span of one prediction request.
func StartPredictionSpan(ctx context.Context, dosha string, mealItems int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "prediction.predict",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("agni.span.kind", SpanKindPrediction),
			attribute.String("prediction.dosha", dosha),
			attribute.Int("prediction.meal_items", mealItems),
		),
	)
	return ctx, span
}

// RecordPredictionState adds a state transition event to a prediction span.
func RecordPredictionState(span trace.Span, state string) {
	span.AddEvent("state", trace.WithAttributes(attribute.String("prediction.state", state)))
}

// StartRetrievalSpan starts a span for one retrieval pass.
func StartRetrievalSpan(ctx context.Context, pass, query string, k int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, fmt.Sprintf("retrieval.%s", pass),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("agni.span.kind", SpanKindRetrieval),
			attribute.String("retrieval.pass", pass),
			attribute.String("retrieval.query", query),
			attribute.Int("retrieval.k", k),
		),
	)
	return ctx, span
}

// RecordRetrievalResult records how many passages a pass returned.
func RecordRetrievalResult(span trace.Span, hits int) {
	span.SetAttributes(attribute.Int("retrieval.hits", hits))
}

// StartLLMSpan starts a span for an LLM call.
func StartLLMSpan(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "llm.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("agni.span.kind", SpanKindLLM),
			attribute.String("llm.provider", provider),
			attribute.String("llm.model", model),
		),
	)
	return ctx, span
}

// RecordLLMMetrics records LLM call metrics on a span.
func RecordLLMMetrics(span trace.Span, inputTokens, outputTokens int, duration time.Duration) {
	span.SetAttributes(
		attribute.Int("llm.input_tokens", inputTokens),
		attribute.Int("llm.output_tokens", outputTokens),
		attribute.Int("llm.total_tokens", inputTokens+outputTokens),
		attribute.Int64("llm.duration_ms", duration.Milliseconds()),
	)
}

// StartCorpusLoadSpan starts a span for loading the knowledge corpus into an index.
func StartCorpusLoadSpan(ctx context.Context, backend string, documents int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "corpus.load",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("agni.span.kind", SpanKindCorpusLoad),
			attribute.String("corpus.backend", backend),
			attribute.Int("corpus.documents", documents),
		),
	)
	return ctx, span
}

// RecordCorpusLoadResult records the outcome of a corpus load.
func RecordCorpusLoadResult(span trace.Span, loaded, batches int, skipped bool) {
	span.SetAttributes(
		attribute.Int("corpus.loaded", loaded),
		attribute.Int("corpus.batches", batches),
		attribute.Bool("corpus.skipped", skipped),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
