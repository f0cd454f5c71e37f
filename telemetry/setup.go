package telemetry

import (
	"context"
	"os"

	"github.com/reusee/infsite/configs"
	"github.com/reusee/infsite/logs"
	"github.com/reusee/infsite/vars"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const ServiceName = "infsite"

// Endpoint is the OTLP/HTTP collector URL. Tracing is off when empty.
type Endpoint string

func (Module) Endpoint(
	loader configs.Loader,
) Endpoint {
	return vars.FirstNonZero(
		configs.First[Endpoint](loader, "otel_endpoint"),
		Endpoint(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")),
		Endpoint(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
	)
}

type Shutdown = func(context.Context) error

type Setup func(ctx context.Context) (Shutdown, error)

func (Module) Setup(
	endpoint Endpoint,
	logger logs.Logger,
) Setup {
	return func(ctx context.Context) (Shutdown, error) {
		noop := func(context.Context) error { return nil }
		if endpoint == "" {
			return noop, nil
		}

		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(string(endpoint)),
		)
		if err != nil {
			return noop, err
		}
		tp, err := NewTracerProvider(ctx, sdktrace.WithBatcher(exporter))
		if err != nil {
			return noop, err
		}
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.TraceContext{})

		logger.Info("tracing enabled", "endpoint", endpoint)
		return tp.Shutdown, nil
	}
}

// NewTracerProvider builds a provider tagged with the service name that
// samples every trace.
func NewTracerProvider(ctx context.Context, options ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}
	options = append(options,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	return sdktrace.NewTracerProvider(options...), nil
}
