package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordSpans installs an in-memory span recorder as the global provider for
// the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.ServiceName != "agni" {
		t.Fatalf("expected service name 'agni', got %s", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Fatalf("expected sample rate 1.0, got %f", cfg.SampleRate)
	}
}

func TestInitTracing_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracing(ctx, &TracingConfig{ServiceName: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp == nil || tp.Tracer() == nil {
		t.Fatal("expected non-nil tracer provider and tracer")
	}
	if err := tp.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestInitTracing_NilConfig(t *testing.T) {
	tp, err := InitTracing(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp == nil {
		t.Fatal("expected non-nil tracer provider")
	}
}

func TestTracerProvider_Shutdown_NilProvider(t *testing.T) {
	tp := &TracerProvider{}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected nil error for nil provider, got: %v", err)
	}
}

func TestPredictionSpan_RecordsStates(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartPredictionSpan(context.Background(), "pitta", 2)
	RecordPredictionState(span, "RECEIVED")
	RecordPredictionState(span, "RETURNED")
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	s := ended[0]
	if s.Name() != "prediction.predict" {
		t.Errorf("span name = %q", s.Name())
	}
	attrs := attrMap(s.Attributes())
	if attrs["prediction.dosha"].AsString() != "pitta" || attrs["prediction.meal_items"].AsInt64() != 2 {
		t.Errorf("unexpected attributes: %v", s.Attributes())
	}
	if len(s.Events()) != 2 {
		t.Fatalf("expected 2 state events, got %d", len(s.Events()))
	}
	last := attrMap(s.Events()[1].Attributes)
	if last["prediction.state"].AsString() != "RETURNED" {
		t.Errorf("last state = %v", last["prediction.state"])
	}
}

func TestNestedSpans(t *testing.T) {
	rec := recordSpans(t)

	ctx, root := StartPredictionSpan(context.Background(), "vata", 1)
	_, retrieval := StartRetrievalSpan(ctx, "dosha", "vata dietary guidelines foods to favor avoid", 3)
	RecordRetrievalResult(retrieval, 3)
	retrieval.End()

	_, llmSpan := StartLLMSpan(ctx, "groq", "mixtral")
	RecordLLMMetrics(llmSpan, 50, 100, 200*time.Millisecond)
	llmSpan.End()
	root.End()

	ended := rec.Ended()
	if len(ended) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(ended))
	}
	rootID := ended[2].SpanContext().SpanID()
	for _, s := range ended[:2] {
		if s.Parent().SpanID() != rootID {
			t.Errorf("span %q is not a child of the prediction span", s.Name())
		}
	}
	if ended[0].Name() != "retrieval.dosha" {
		t.Errorf("retrieval span name = %q", ended[0].Name())
	}
	llmAttrs := attrMap(ended[1].Attributes())
	if llmAttrs["llm.total_tokens"].AsInt64() != 150 {
		t.Errorf("llm.total_tokens = %v", llmAttrs["llm.total_tokens"])
	}
}

func TestCorpusLoadSpan(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartCorpusLoadSpan(context.Background(), "local", 36)
	RecordCorpusLoadResult(span, 36, 1, false)
	span.End()

	attrs := attrMap(rec.Ended()[0].Attributes())
	if attrs["corpus.backend"].AsString() != "local" || attrs["corpus.loaded"].AsInt64() != 36 {
		t.Errorf("unexpected attributes: %v", rec.Ended()[0].Attributes())
	}
}

func TestRecordError(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartLLMSpan(context.Background(), "openai", "gpt-4")
	RecordError(span, nil)
	span.End()
	if got := rec.Ended()[0].Status().Code; got != codes.Unset {
		t.Errorf("nil error should leave status unset, got %v", got)
	}

	_, span = StartLLMSpan(context.Background(), "openai", "gpt-4")
	RecordError(span, errors.New("upstream down"))
	span.End()
	st := rec.Ended()[1].Status()
	if st.Code != codes.Error || st.Description != "upstream down" {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestTracerName(t *testing.T) {
	if TracerName != "github.com/efebarandurmaz/agni" {
		t.Fatalf("unexpected tracer name: %s", TracerName)
	}
}
