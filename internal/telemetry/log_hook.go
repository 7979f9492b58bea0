package telemetry

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	otellog "go.opentelemetry.io/otel/log"
)

type otelHook struct {
	logger otellog.Logger
}

// NewOTelHook returns a logrus hook forwarding every entry, fields included, to
// the given logger provider.
func NewOTelHook(provider otellog.LoggerProvider) log.Hook {
	return &otelHook{provider.Logger(serviceName)}
}

func (h *otelHook) Levels() []log.Level {
	return log.AllLevels
}

func (h *otelHook) Fire(entry *log.Entry) error {
	var record otellog.Record
	record.SetTimestamp(entry.Time)
	record.SetObservedTimestamp(time.Now())
	record.SetBody(otellog.StringValue(entry.Message))
	record.SetSeverity(severity(entry.Level))
	record.SetSeverityText(entry.Level.String())

	attrs := make([]otellog.KeyValue, 0, len(entry.Data))
	for key, value := range entry.Data {
		attrs = append(attrs, otellog.String(key, fmt.Sprint(value)))
	}
	record.AddAttributes(attrs...)

	ctx := entry.Context
	if ctx == nil {
		ctx = context.Background()
	}
	h.logger.Emit(ctx, record)
	return nil
}

func severity(level log.Level) otellog.Severity {
	switch level {
	case log.TraceLevel:
		return otellog.SeverityTrace
	case log.DebugLevel:
		return otellog.SeverityDebug
	case log.InfoLevel:
		return otellog.SeverityInfo
	case log.WarnLevel:
		return otellog.SeverityWarn
	case log.ErrorLevel:
		return otellog.SeverityError
	default:
		return otellog.SeverityFatal
	}
}
