package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const serviceName = "binaryd"

// InitOtelSDK installs global meter and logger providers pushing to the given
// OTLP/HTTP collector. With an empty endpoint the global no-op providers are
// left in place.
func InitOtelSDK(
	ctx context.Context, collectorEndpoint string, pushInterval time.Duration, version string,
) (func(context.Context) error, error) {
	if collectorEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)

	meterProvider, err := newMeterProvider(ctx, collectorEndpoint, pushInterval, res)
	if err != nil {
		return nil, err
	}
	loggerProvider, err := newLoggerProvider(ctx, collectorEndpoint, res)
	if err != nil {
		// nolint
		meterProvider.Shutdown(ctx)
		return nil, err
	}

	otel.SetMeterProvider(meterProvider)
	global.SetLoggerProvider(loggerProvider)

	return func(ctx context.Context) error {
		return errors.Join(meterProvider.Shutdown(ctx), loggerProvider.Shutdown(ctx))
	}, nil
}

func newMeterProvider(
	ctx context.Context, endpoint string, pushInterval time.Duration, res *resource.Resource,
) (*sdkmetric.MeterProvider, error) {
	opts := make([]otlpmetrichttp.Option, 0, 2)
	if strings.Contains(endpoint, "://") {
		opts = append(opts, otlpmetrichttp.WithEndpointURL(endpoint))
	} else {
		opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint), otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp metric exporter: %w", err)
	}

	readerOpts := make([]sdkmetric.PeriodicReaderOption, 0, 1)
	if pushInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(pushInterval))
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	), nil
}

func newLoggerProvider(
	ctx context.Context, endpoint string, res *resource.Resource,
) (*sdklog.LoggerProvider, error) {
	opts := make([]otlploghttp.Option, 0, 2)
	if strings.Contains(endpoint, "://") {
		opts = append(opts, otlploghttp.WithEndpointURL(endpoint))
	} else {
		opts = append(opts, otlploghttp.WithEndpoint(endpoint), otlploghttp.WithInsecure())
	}

	exporter, err := otlploghttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp log exporter: %w", err)
	}

	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	), nil
}
