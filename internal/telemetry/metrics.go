package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const meterName = "forms-api"

// Metrics holds all application metrics
type Metrics struct {
	RequestsTotal       metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	RateLimitRejections metric.Int64Counter
	PermissionDecisions metric.Int64Counter
	SubmissionsAccepted metric.Int64Counter
}

// InitMetrics initializes OpenTelemetry metrics with OTLP gRPC exporter
func InitMetrics(ctx context.Context, serviceName, endpoint string) (*sdkmetric.MeterProvider, *Metrics, error) {
	res, err := newResource(ctx, serviceName)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithDialOption(grpc.WithBlock()),
		otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(30*time.Second),
		)),
	)
	otel.SetMeterProvider(mp)

	metrics, err := NewMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, nil, err
	}
	return mp, metrics, nil
}

// NoopMetrics returns instruments that record nothing. Used when OTEL is off and in tests.
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(meterName))
	return m
}

// NewMetrics creates the instrument set on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	requestsTotal, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create requests counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	rateLimitRejections, err := meter.Int64Counter(
		"rate_limit_rejections_total",
		metric.WithDescription("Total number of rate limit rejections"),
		metric.WithUnit("{rejection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit counter: %w", err)
	}

	permissionDecisions, err := meter.Int64Counter(
		"permission_decisions_total",
		metric.WithDescription("Authorization decisions by action and outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create permission decision counter: %w", err)
	}

	submissionsAccepted, err := meter.Int64Counter(
		"submissions_accepted_total",
		metric.WithDescription("Public submissions stored"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create submissions counter: %w", err)
	}

	return &Metrics{
		RequestsTotal:       requestsTotal,
		RequestDuration:     requestDuration,
		RateLimitRejections: rateLimitRejections,
		PermissionDecisions: permissionDecisions,
		SubmissionsAccepted: submissionsAccepted,
	}, nil
}

func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}
