package observe

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

func TestNewResource_MatchesSDKSchema(t *testing.T) {
	t.Parallel()

	res, err := newResource(ProviderConfig{ServiceName: "lingocoach", ServiceVersion: "dev"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	if got, want := res.SchemaURL(), resource.Default().SchemaURL(); got != want {
		t.Errorf("SchemaURL = %q, want the SDK default %q", got, want)
	}
	for _, want := range []struct {
		key   attribute.Key
		value string
	}{
		{semconv.ServiceNameKey, "lingocoach"},
		{semconv.ServiceVersionKey, "dev"},
	} {
		v, ok := res.Set().Value(want.key)
		if !ok || v.AsString() != want.value {
			t.Errorf("resource %s = %q, want %q", want.key, v.AsString(), want.value)
		}
	}
}

func TestInitProvider_ServesRegistry(t *testing.T) {
	origMP, origTP := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
		gatherer.Store(nil)
	})

	shutdown, err := InitProvider(context.Background(), ProviderConfig{ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	counter, err := otel.Meter("lingocoach-test").Int64Counter("lingocoach.test.hits")
	if err != nil {
		t.Fatal(err)
	}
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{"lingocoach_test_hits_total", "go_goroutines", `service_version="test"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("/metrics lacks %q", want)
		}
	}

	_, span := StartSpan(context.Background(), "startup")
	if !span.SpanContext().HasTraceID() {
		t.Error("global tracer provider not installed")
	}
	span.End()
}
