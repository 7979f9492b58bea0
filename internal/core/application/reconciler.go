package application

import (
	"context"
	"fmt"
	"time"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// processAccount is the unit of work shared by the sweep and the on-demand
// refresh: ledger sync, placement and aggregation of one account, committed in
// a single write. Ledger reads happen before taking the writer lock.
func (s *service) processAccount(ctx context.Context, id domain.AccountID) (PlacementResult, error) {
	state, err := s.fetchLedgerState(ctx, id)
	if err != nil {
		s.metrics.recordSkipped(ctx, "ledger")
		return PlacementSkipped, err
	}

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	ws := newWorkingSet(ctx, s.repoManager.Accounts())
	account, err := ws.getOrCreate(id)
	if err != nil {
		return PlacementSkipped, err
	}
	if applyLedgerState(account, state, time.Now()) {
		ws.markDirty(account)
	}

	result, err := s.resolve(ws, id, state.upline)
	if err != nil {
		s.metrics.recordSkipped(ctx, "resolve")
		return PlacementSkipped, err
	}

	if err := s.aggregate(ws, id); err != nil {
		return PlacementSkipped, err
	}

	if err := ws.commit(); err != nil {
		return PlacementSkipped, fmt.Errorf("failed to save account %s: %w", id, err)
	}

	s.metrics.recordPlacement(ctx, result)
	return result, nil
}

func (s *service) RunSweep(ctx context.Context) (*SweepReport, errors.Error) {
	generation, ok, err := s.liveStore.Sweeps().Begin(ctx)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(fmt.Errorf("failed to begin sweep: %w", err))
	}
	if !ok {
		return nil, errors.SWEEP_IN_PROGRESS.New("a reconciliation pass is already running")
	}

	startedAt := time.Now()
	report := &SweepReport{Generation: generation}
	logger := log.WithField("generation", generation)

	abort := func(cause error) errors.Error {
		// the caller context may be the one that got canceled
		abortCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.liveStore.Sweeps().Abort(abortCtx, generation, cause.Error()); err != nil {
			logger.WithError(err).Warn("failed to mark sweep as aborted")
		}
		report.Duration = time.Since(startedAt)
		return errors.INTERNAL_ERROR.Wrap(fmt.Errorf("sweep aborted: %w", cause))
	}

	ids, err := s.repoManager.Accounts().ListIDsByBlockDesc(ctx)
	if err != nil {
		return nil, abort(fmt.Errorf("failed to list accounts: %w", err))
	}
	logger.Infof("reconciliation pass started over %d account(s)", len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			logger.Warnf(
				"reconciliation pass aborted after %d account(s)",
				report.Processed+report.Skipped,
			)
			return report, abort(err)
		}

		result, err := s.processAccount(ctx, id)
		if err != nil {
			report.Skipped++
			log.WithError(err).WithField("account", id).Warn("account skipped for this pass")
			continue
		}
		report.Processed++
		report.countPlacement(result)
	}

	orphans, err := s.repoManager.Accounts().ListOrphanCandidates(ctx)
	if err != nil {
		logger.WithError(err).Warn("failed to list orphan candidates")
	}
	report.OrphanCandidates = len(orphans)

	if err := s.liveStore.Sweeps().Complete(
		ctx, generation, report.Processed, report.Skipped,
	); err != nil {
		return report, abort(fmt.Errorf("failed to complete sweep: %w", err))
	}
	report.Duration = time.Since(startedAt)

	s.metrics.recordSweep(ctx, report)
	logger.Infof(
		"reconciliation pass completed in %s: processed %d, skipped %d, placed %d, "+
			"cycles broken %d, detached %d, orphan candidates %d",
		report.Duration, report.Processed, report.Skipped, report.Placed,
		report.CyclesBroken, report.Detached, report.OrphanCandidates,
	)

	go s.sendSweepAlerts(report, orphans)
	return report, nil
}

func (s *service) scheduledSweep() {
	if s.ctx.Err() != nil {
		return
	}
	if _, err := s.RunSweep(s.ctx); err != nil {
		if errors.SWEEP_IN_PROGRESS.Is(err) {
			log.Debug("skipping scheduled reconciliation, a pass is already running")
			return
		}
		log.WithError(err).Error("scheduled reconciliation failed")
	}
}
