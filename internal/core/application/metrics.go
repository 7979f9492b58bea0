package application

import (
	"context"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	sweepDuration     metric.Float64Histogram
	accountsProcessed metric.Int64Counter
	accountsSkipped   metric.Int64Counter
	placements        metric.Int64Counter
	claims            metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	meter := otel.Meter("github.com/binaryplan/binaryd/internal/core/application")

	sweepDuration, err := meter.Float64Histogram(
		"binaryd_sweep_duration_seconds",
		metric.WithDescription("Duration of a reconciliation pass"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	accountsProcessed, err := meter.Int64Counter(
		"binaryd_sweep_accounts_processed_total",
		metric.WithDescription("Accounts reconciled by sweeps"),
	)
	if err != nil {
		return nil, err
	}
	accountsSkipped, err := meter.Int64Counter(
		"binaryd_accounts_skipped_total",
		metric.WithDescription("Accounts skipped because of ledger or placement errors"),
	)
	if err != nil {
		return nil, err
	}
	placements, err := meter.Int64Counter(
		"binaryd_placements_total",
		metric.WithDescription("Placement results by outcome"),
	)
	if err != nil {
		return nil, err
	}
	claims, err := meter.Int64Counter(
		"binaryd_claims_total",
		metric.WithDescription("Claims by terminal state"),
	)
	if err != nil {
		return nil, err
	}

	return &metrics{
		sweepDuration:     sweepDuration,
		accountsProcessed: accountsProcessed,
		accountsSkipped:   accountsSkipped,
		placements:        placements,
		claims:            claims,
	}, nil
}

func (m *metrics) recordSweep(ctx context.Context, report *SweepReport) {
	m.sweepDuration.Record(ctx, report.Duration.Seconds())
	m.accountsProcessed.Add(ctx, int64(report.Processed))
}

func (m *metrics) recordSkipped(ctx context.Context, stage string) {
	m.accountsSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

func (m *metrics) recordPlacement(ctx context.Context, result PlacementResult) {
	m.placements.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result.String())))
}

func (m *metrics) recordClaim(ctx context.Context, state domain.ClaimState) {
	m.claims.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state.String())))
}
