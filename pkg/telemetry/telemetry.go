package telemetry

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlplog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/denysvitali/foldgen/pkg/config"
)

// ServiceName identifies foldgen in traces and logs.
const ServiceName = "foldgen"

// Version is reported as the service version.
var Version = "dev"

// Initialize sets up OpenTelemetry tracing and logging using autoexport
func Initialize(cfg config.TelemetryConfig, logger *logrus.Logger) (func(), error) {
	// autoexport only reads the environment
	if cfg.Endpoint != "" && os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		if err := os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Endpoint); err != nil {
			return nil, err
		}
	}

	// Create resource
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(ServiceName),
			semconv.ServiceVersionKey.String(Version),
		),
	)
	if err != nil {
		return nil, err
	}

	spanExporter, err := autoexport.NewSpanExporter(context.Background())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	// Set global trace provider
	otel.SetTracerProvider(tp)

	// Initialize log provider using autoexport
	logExporter, err := autoexport.NewLogExporter(context.Background())
	if err != nil {
		logger.Warnf("Failed to create log exporter: %v", err)
	}

	var logProvider *sdklog.LoggerProvider
	if logExporter != nil {
		logProvider = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)
		global.SetLoggerProvider(logProvider)
	}

	// Set global propagator
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Debug("OpenTelemetry initialized")

	// Flushes pending spans and records; the CLI exits right after.
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tp.Shutdown(ctx); err != nil {
			logger.Warnf("Failed to shut down tracer provider: %v", err)
		}

		if logProvider != nil {
			if err := logProvider.Shutdown(ctx); err != nil {
				logger.Warnf("Failed to shut down log provider: %v", err)
			}
		}
	}, nil
}

// Report records payload as JSON on a child span named operation and emits
// it as a debug log record through logrus and the otel log provider.
func Report(ctx context.Context, logger *logrus.Logger, operation string, payload any, attrs ...attribute.KeyValue) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("Failed to marshal %s payload: %v", operation, err)
		return
	}

	_, span := otel.Tracer(ServiceName).Start(ctx, operation)
	span.SetAttributes(append(attrs, attribute.String("payload", string(data)))...)
	span.End()

	logger.WithFields(logrus.Fields{
		"operation": operation,
		"payload":   string(data),
	}).Debug("Reported payload")

	var record otlplog.Record
	now := time.Now()
	record.SetTimestamp(now)
	record.SetObservedTimestamp(now)
	record.SetSeverity(otlplog.SeverityDebug)
	record.SetBody(otlplog.StringValue(string(data)))
	record.AddAttributes(otlplog.String("operation", operation))
	global.GetLoggerProvider().Logger(ServiceName).Emit(ctx, record)
}
