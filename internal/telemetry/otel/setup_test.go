package otel

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCollectorTarget(t *testing.T) {
	tests := []struct {
		name         string
		endpoint     string
		force        bool
		wantTarget   string
		wantInsecure bool
		wantErr      bool
	}{
		{"empty disables export", "", false, "", false, false},
		{"whitespace disables export", "   ", false, "", false, false},
		{"scheme-less is plaintext", "localhost:4317", false, "localhost:4317", true, false},
		{"http is plaintext", "http://otel:4317", false, "otel:4317", true, false},
		{"https uses tls", "https://otel.example.com:4317", false, "otel.example.com:4317", false, false},
		{"https with override", "https://otel.example.com:4317", true, "otel.example.com:4317", true, false},
		{"path and query dropped", "http://otel:4317/v1/traces?x=1", false, "otel:4317", true, false},
		{"missing host", "http://", false, "", false, true},
		{"malformed", "http://[invalid", false, "", false, true},
		{"empty scheme", "://invalid", false, "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, insecure, err := collectorTarget(tt.endpoint, tt.force)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("collectorTarget(%q) = %q, want error", tt.endpoint, target)
				}
				return
			}
			if err != nil {
				t.Fatalf("collectorTarget(%q): %v", tt.endpoint, err)
			}
			if target != tt.wantTarget || insecure != tt.wantInsecure {
				t.Errorf("collectorTarget(%q) = (%q, %v), want (%q, %v)",
					tt.endpoint, target, insecure, tt.wantTarget, tt.wantInsecure)
			}
		})
	}
}

func TestNewResource_ServiceAttributes(t *testing.T) {
	res, err := newResource(Options{ServiceName: "coaching-mfa", Environment: "Production", Version: "1.4.2"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	set := res.Set()
	want := map[attribute.Key]string{
		semconv.ServiceNameKey:               "coaching-mfa",
		semconv.ServiceNamespaceKey:          ServiceNamespace,
		semconv.DeploymentEnvironmentNameKey: "production",
		semconv.ServiceVersionKey:            "1.4.2",
	}
	for k, v := range want {
		got, ok := set.Value(k)
		if !ok || got.AsString() != v {
			t.Errorf("%s = %q (present %v), want %q", k, got.AsString(), ok, v)
		}
	}
}

func TestNewResource_Defaults(t *testing.T) {
	res, err := newResource(Options{ServiceName: "coaching-mfa"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	if v, _ := res.Set().Value(semconv.DeploymentEnvironmentNameKey); v.AsString() != "development" {
		t.Errorf("environment = %q, want development", v.AsString())
	}
	if _, ok := res.Set().Value(semconv.ServiceVersionKey); ok {
		t.Error("service.version should be omitted when unset")
	}
}

func TestNewProviders_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	p, err := NewProviders(ctx, Options{ServiceName: "coaching-mfa"}, nil)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil {
		t.Fatalf("providers = %+v, want all set", p)
	}
	for i := 0; i < 2; i++ {
		if err := p.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown #%d: %v", i+1, err)
		}
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	if _, err := NewProviders(context.Background(), Options{Endpoint: "http://", ServiceName: "coaching-mfa"}, nil); err == nil {
		t.Fatal("expected error for endpoint without host")
	}
}

func TestShutdownAll_ReverseOrderAndJoinedErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	errMetric := errors.New("metric exporter stuck")
	errLog := errors.New("log exporter stuck")
	var order []string
	step := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return err
		}
	}

	err := shutdownAll(zap.New(core), []func(context.Context) error{
		step("trace", nil),
		step("metric", errMetric),
		step("log", errLog),
	})(context.Background())

	if !errors.Is(err, errMetric) || !errors.Is(err, errLog) {
		t.Errorf("err = %v, want both exporter errors", err)
	}
	if len(order) != 3 || order[0] != "log" || order[2] != "trace" {
		t.Errorf("shutdown order = %v, want log, metric, trace", order)
	}
	if logs.Len() != 2 {
		t.Errorf("warnings = %d, want 2", logs.Len())
	}
}

func TestSetGlobal(t *testing.T) {
	oldTP, oldMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(oldTP)
		otel.SetMeterProvider(oldMP)
	})

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	(&Providers{TracerProvider: tp}).SetGlobal()

	if otel.GetTracerProvider() != tp {
		t.Error("global TracerProvider not replaced")
	}
	if otel.GetMeterProvider() != oldMP {
		t.Error("nil MeterProvider must leave the global untouched")
	}
}
