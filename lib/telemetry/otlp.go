package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// OtlpEndpoint configures one OTLP exporter, grpc wins when both endpoints are set.
type OtlpEndpoint struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

func (e OtlpEndpoint) useGrpc() bool {
	return e.GrpcEndpoint != ""
}

func (e OtlpEndpoint) log(signal string) {
	kind, endpoint := "http", e.HttpEndpoint
	if e.useGrpc() {
		kind, endpoint = "grpc", e.GrpcEndpoint
	}
	slog.Info(
		"otlp exporter initialized",
		"signal", signal,
		"type", kind,
		"endpoint", endpoint,
		"headers", len(e.Headers) > 0,
	)
}

type Config struct {
	Otlp struct {
		Traces  OtlpEndpoint `json:"traces"`
		Metrics OtlpEndpoint `json:"metrics"`
	} `json:"otlp"`
	// MetricIntervalSeconds is how often metrics are pushed, defaults to 5.
	MetricIntervalSeconds int `json:"metric_interval_seconds"`
}


func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

func newTraceProvider(ctx context.Context, r *resource.Resource, c Config) (*trace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*3)
	defer cancel()

	endpoint := c.Otlp.Traces
	endpoint.log("traces")

	var exporter trace.SpanExporter
	var err error
	if endpoint.useGrpc() {
		exporter, err = otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(endpoint.GrpcEndpoint),
			otlptracegrpc.WithHeaders(endpoint.Headers),
		)
	} else {
		exporter, err = otlptracehttp.New(
			ctx,
			otlptracehttp.WithEndpointURL(endpoint.HttpEndpoint),
			otlptracehttp.WithHeaders(endpoint.Headers),
		)
	}
	if err != nil {
		return nil, err
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(r),
	), nil
}

func newMetricProvider(ctx context.Context, r *resource.Resource, c Config) (*metric.MeterProvider, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*3)
	defer cancel()

	endpoint := c.Otlp.Metrics
	endpoint.log("metrics")

	var exporter metric.Exporter
	var err error
	if endpoint.useGrpc() {
		exporter, err = otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithEndpointURL(endpoint.GrpcEndpoint),
			otlpmetricgrpc.WithHeaders(endpoint.Headers),
		)
	} else {
		exporter, err = otlpmetrichttp.New(
			ctx,
			otlpmetrichttp.WithEndpointURL(endpoint.HttpEndpoint),
			otlpmetrichttp.WithHeaders(endpoint.Headers),
		)
	}
	if err != nil {
		return nil, err
	}

	interval := time.Duration(c.MetricIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second * 5
	}
	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(interval))),
		metric.WithResource(r),
	), nil
}
