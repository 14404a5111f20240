package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/tbourn/go-bot-dashboard/internal/config"
)

func preserveOTelGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	prevExp, prevRes := newExporter, newResource
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
		newExporter, newResource = prevExp, prevRes
	})
}

func memoryExporter(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	newExporter = func(context.Context, config.OTELConfig) (sdktrace.SpanExporter, error) { return exp, nil }
	return exp
}

func enabledConfig() config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: "go-bot-dashboard",
		SampleRatio: 1,
		Environment: "production",
	}
}

func TestSetupOTel_DisabledIsNoOp(t *testing.T) {
	preserveOTelGlobals(t)
	prevTP := otel.GetTracerProvider()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Enabled: false}, "dev")
	if err != nil || shutdown == nil {
		t.Fatalf("SetupOTel: shutdown nil=%v, err=%v", shutdown == nil, err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown returned error: %v", err)
	}
	if otel.GetTracerProvider() != prevTP {
		t.Fatalf("disabled tracing must keep the global provider")
	}
}

func TestSetupOTel_ExportsSpansWithServiceResource(t *testing.T) {
	preserveOTelGlobals(t)
	exp := memoryExporter(t)

	shutdown, err := SetupOTel(context.Background(), enabledConfig(), "v1.2.3")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "fetch_statistics")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "fetch_statistics" {
		t.Fatalf("exported spans = %+v", spans)
	}
	attrs := spans[0].Resource.Set()
	for kv, want := range map[attribute.Key]string{
		semconv.ServiceNameKey:           "go-bot-dashboard",
		semconv.ServiceVersionKey:        "v1.2.3",
		semconv.DeploymentEnvironmentKey: "production",
	} {
		v, ok := attrs.Value(kv)
		if !ok || v.AsString() != want {
			t.Fatalf("resource %s = %q, want %q", kv, v.AsString(), want)
		}
	}
}

func TestSetupOTel_PropagatesTraceContext(t *testing.T) {
	preserveOTelGlobals(t)
	memoryExporter(t)

	shutdown, err := SetupOTel(context.Background(), enabledConfig(), "v1")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	ctx, span := otel.Tracer("test").Start(context.Background(), "root")
	defer span.End()
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if !strings.HasPrefix(carrier.Get("traceparent"), "00-"+span.SpanContext().TraceID().String()) {
		t.Fatalf("traceparent = %q", carrier.Get("traceparent"))
	}
}

func TestSetupOTel_RealExporterLazyConnect(t *testing.T) {
	preserveOTelGlobals(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, insecure := range []bool{true, false} {
		cfg := enabledConfig()
		cfg.Insecure = insecure
		shutdown, err := SetupOTel(ctx, cfg, "v1")
		if err != nil {
			t.Fatalf("insecure=%v: %v", insecure, err)
		}
		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("expected *sdktrace.TracerProvider")
		}
		_ = shutdown(context.Background())
	}
}

func TestSetupOTel_FailuresKeepGlobals(t *testing.T) {
	for name, breakIt := range map[string]func(){
		"exporter": func() {
			newExporter = func(context.Context, config.OTELConfig) (sdktrace.SpanExporter, error) {
				return nil, errors.New("boom-exporter")
			}
		},
		"resource": func() {
			memoryExporter(t)
			newResource = func(context.Context, config.OTELConfig, string) (*resource.Resource, error) {
				return nil, errors.New("boom-resource")
			}
		},
	} {
		t.Run(name, func(t *testing.T) {
			preserveOTelGlobals(t)
			breakIt()
			prevTP := otel.GetTracerProvider()
			prevProp := otel.GetTextMapPropagator()

			if _, err := SetupOTel(context.Background(), enabledConfig(), "v0"); err == nil || !strings.Contains(err.Error(), "boom-"+name) {
				t.Fatalf("expected %s error, got %v", name, err)
			}
			if otel.GetTracerProvider() != prevTP || otel.GetTextMapPropagator() != prevProp {
				t.Fatalf("globals changed on failure")
			}
		})
	}
}

func TestSampler(t *testing.T) {
	for _, tc := range []struct {
		ratio float64
		want  string
	}{
		{1, "AlwaysOnSampler"},
		{1.5, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	} {
		if got := sampler(tc.ratio).Description(); !strings.HasPrefix(got, "ParentBased{root:"+tc.want) {
			t.Fatalf("sampler(%v) = %s, want %s", tc.ratio, got, tc.want)
		}
	}
}

func TestErrorHandler_LogsWarning(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = orig }()

	otelErrorHandler{}.Handle(errors.New("export failed"))

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "export failed") {
		t.Fatalf("unexpected log output: %q", out)
	}
}
