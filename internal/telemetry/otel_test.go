package telemetry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/binaryplan/binaryd/internal/telemetry"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestInitOtelSDK(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		shutdown, err := telemetry.InitOtelSDK(t.Context(), "", time.Second, "test")
		require.NoError(t, err)
		require.NoError(t, shutdown(t.Context()))
	})

	t.Run("enabled", func(t *testing.T) {
		previousMeter := otel.GetMeterProvider()
		previousLogger := global.GetLoggerProvider()
		t.Cleanup(func() {
			otel.SetMeterProvider(previousMeter)
			global.SetLoggerProvider(previousLogger)
		})

		shutdown, err := telemetry.InitOtelSDK(
			t.Context(), "http://127.0.0.1:4318", time.Hour, "test",
		)
		require.NoError(t, err)
		require.IsType(t, &sdkmetric.MeterProvider{}, otel.GetMeterProvider())
		require.IsType(t, &sdklog.LoggerProvider{}, global.GetLoggerProvider())

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		// nothing listens on the collector port, only check it returns
		_ = shutdown(ctx)
	})
}

func TestInitPyroscope(t *testing.T) {
	shutdown, err := telemetry.InitPyroscope("")
	require.NoError(t, err)
	require.Nil(t, shutdown)
}

type recordingProvider struct {
	embedded.LoggerProvider

	logger *recordingLogger
}

func (p *recordingProvider) Logger(string, ...otellog.LoggerOption) otellog.Logger {
	return p.logger
}

type recordingLogger struct {
	embedded.Logger

	lock    sync.Mutex
	records []otellog.Record
}

func (l *recordingLogger) Emit(_ context.Context, record otellog.Record) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.records = append(l.records, record)
}

func (l *recordingLogger) Enabled(context.Context, otellog.EnabledParameters) bool {
	return true
}

func TestOTelHook(t *testing.T) {
	provider := &recordingProvider{logger: &recordingLogger{}}

	logger := log.New()
	logger.SetLevel(log.DebugLevel)
	logger.AddHook(telemetry.NewOTelHook(provider))

	logger.WithField("account", "0xabc").Warn("account skipped for this pass")
	logger.WithError(errors.New("boom")).Error("scheduled reconciliation failed")
	logger.Debug("stopped scheduler service")

	records := provider.logger.records
	require.Len(t, records, 3)

	require.Equal(t, "account skipped for this pass", records[0].Body().AsString())
	require.Equal(t, otellog.SeverityWarn, records[0].Severity())
	require.Equal(t, "warning", records[0].SeverityText())

	attrs := make(map[string]string)
	records[0].WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	require.Equal(t, map[string]string{"account": "0xabc"}, attrs)

	require.Equal(t, otellog.SeverityError, records[1].Severity())
	records[1].WalkAttributes(func(kv otellog.KeyValue) bool {
		require.Equal(t, log.ErrorKey, kv.Key)
		require.Equal(t, "boom", kv.Value.AsString())
		return true
	})

	require.Equal(t, otellog.SeverityDebug, records[2].Severity())
}
