package application

import (
	"context"
	"fmt"
	"time"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/internal/core/ports"
	"github.com/binaryplan/binaryd/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var hundred = decimal.NewFromInt(100)

func (s *service) ComputeClaimable(
	ctx context.Context, id domain.AccountID,
) (decimal.Decimal, errors.Error) {
	account, err := s.repoManager.Accounts().Get(ctx, id)
	if err != nil {
		return decimal.Zero, s.accountError(id, err)
	}
	return s.claimableAmount(account.MatchedPoints()), nil
}

// claimableAmount applies the matching rate to the matched points, floored to
// the ledger precision. Non positive amounts are reported as zero.
func (s *service) claimableAmount(matched decimal.Decimal) decimal.Decimal {
	if !matched.IsPositive() {
		return decimal.Zero
	}
	amount := matched.Mul(s.matchingRate).Div(hundred).RoundFloor(s.ledgerDecimals)
	if !amount.IsPositive() {
		return decimal.Zero
	}
	return amount
}

func (s *service) discountAmount(amount decimal.Decimal) decimal.Decimal {
	if !s.claimDiscountPercent.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(s.claimDiscountPercent).Div(hundred).RoundFloor(s.ledgerDecimals)
}

// Claim settles the matching bonus of the account. Both legs are debited by the
// matched points before the ledger call and the debit is reverted only if the
// ledger definitely rejected the settlement.
func (s *service) Claim(ctx context.Context, id domain.AccountID) (*ClaimResult, errors.Error) {
	lockToken, locked, err := s.liveStore.ClaimLocks().TryLock(ctx, id, s.claimLockTTL)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(fmt.Errorf("failed to lock claim: %w", err))
	}
	if !locked {
		return nil, errors.CLAIM_IN_PROGRESS.New("a claim for %s is already in progress", id).
			WithMetadata(errors.AccountMetadata{Account: id.String()})
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.liveStore.ClaimLocks().Unlock(unlockCtx, id, lockToken); err != nil {
			log.WithError(err).WithField("account", id).Warn("failed to release claim lock")
		}
	}()

	settlement, noop, cerr := s.prepareClaim(ctx, id)
	if cerr != nil {
		return nil, cerr
	}
	if noop {
		return &ClaimResult{
			State:         domain.ClaimStateComputed,
			Settled:       true,
			Amount:        decimal.Zero,
			MatchedPoints: decimal.Zero,
			Discount:      decimal.Zero,
		}, nil
	}

	res, err := s.ledger.Settle(
		ctx, id, settlement.Amount, settlement.ClaimedPointsSoFar, settlement.Discount,
	)

	// the ledger outcome must be recorded even if the caller went away meanwhile
	finalizeCtx := context.WithoutCancel(ctx)
	if err != nil {
		if rerr := s.rollbackClaim(finalizeCtx, settlement, err.Error()); rerr != nil {
			return nil, rerr
		}
		s.metrics.recordClaim(finalizeCtx, settlement.State)

		metadata := errors.SettlementMetadata{
			Account:      id.String(),
			SettlementID: settlement.ID,
			Amount:       settlement.Amount.String(),
		}
		if errors.SETTLEMENT_FAILURE.Is(err) {
			return nil, errors.SETTLEMENT_FAILURE.Wrap(err).WithMetadata(metadata)
		}
		return nil, toError(err)
	}

	if cerr := s.confirmClaim(finalizeCtx, settlement, res); cerr != nil {
		return nil, cerr
	}
	s.metrics.recordClaim(finalizeCtx, settlement.State)

	return &ClaimResult{
		SettlementID:  settlement.ID,
		State:         settlement.State,
		Settled:       true,
		Amount:        settlement.Amount,
		MatchedPoints: settlement.MatchedPoints,
		Discount:      settlement.Discount,
		TxRef:         settlement.TxRef,
	}, nil
}

// prepareClaim debits the account and persists the settlement in Submitting
// state. It returns noop=true when there is nothing to claim.
func (s *service) prepareClaim(
	ctx context.Context, id domain.AccountID,
) (*domain.Settlement, bool, errors.Error) {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	account, err := s.repoManager.Accounts().Get(ctx, id)
	if err != nil {
		return nil, false, s.accountError(id, err)
	}

	now := time.Now()
	if s.claimCooldown > 0 && !account.LastClaimAt.IsZero() {
		nextClaimAt := account.LastClaimAt.Add(s.claimCooldown)
		if now.Before(nextClaimAt) {
			return nil, false, errors.CLAIM_COOLDOWN.New(
				"next claim for %s allowed at %s", id, nextClaimAt.Format(time.RFC3339),
			).WithMetadata(errors.CooldownMetadata{
				Account:     id.String(),
				LastClaimAt: account.LastClaimAt.Unix(),
				NextClaimAt: nextClaimAt.Unix(),
			})
		}
	}

	matched := account.MatchedPoints()
	amount := s.claimableAmount(matched)
	if !amount.IsPositive() {
		return nil, true, nil
	}

	account.Debit(matched)
	settlement := domain.NewSettlement(
		id, amount, matched, account.Left.ClaimedPoints, s.discountAmount(amount),
	)
	if err := settlement.Transition(domain.ClaimStateSubmitting); err != nil {
		return nil, false, errors.INTERNAL_ERROR.Wrap(err)
	}

	if err := s.repoManager.Accounts().Save(ctx, account); err != nil {
		return nil, false, errors.INTERNAL_ERROR.Wrap(
			fmt.Errorf("failed to debit claimed points: %w", err),
		)
	}
	if err := s.repoManager.Settlements().Add(ctx, settlement); err != nil {
		account.Credit(matched)
		if rerr := s.repoManager.Accounts().Save(ctx, account); rerr != nil {
			log.WithError(rerr).WithField("account", id).Error(
				"failed to revert claimed points debit",
			)
		}
		return nil, false, errors.INTERNAL_ERROR.Wrap(
			fmt.Errorf("failed to persist settlement: %w", err),
		)
	}

	log.WithField("account", id).Debugf(
		"submitting settlement %s of %s for %s matched points",
		settlement.ID, amount, matched,
	)
	return settlement, false, nil
}

func (s *service) confirmClaim(
	ctx context.Context, settlement *domain.Settlement, res *ports.SettleResult,
) errors.Error {
	next := domain.ClaimStateSettled
	if res.Outcome == ports.SettleOutcomeAmbiguous {
		next = domain.ClaimStateAmbiguousAccepted
	}
	if err := settlement.Transition(next); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	settlement.TxRef = res.TxRef
	settlement.FailReason = res.Reason

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	// the ledger took the settlement: local failures below are logged, never
	// reverted
	account, err := s.repoManager.Accounts().Get(ctx, settlement.AccountID)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	account.RetirableAccumulated = account.RetirableAccumulated.Add(settlement.Amount)
	account.LastClaimAt = settlement.UpdatedAt
	if err := s.repoManager.Accounts().Save(ctx, account); err != nil {
		log.WithError(err).WithField("account", account.ID).Error(
			"failed to record settled amount",
		)
	}
	if err := s.repoManager.Settlements().Update(ctx, settlement); err != nil {
		log.WithError(err).WithField("settlement", settlement.ID).Error(
			"failed to update settlement state",
		)
	}

	if next == domain.ClaimStateAmbiguousAccepted {
		errors.AMBIGUOUS_SETTLEMENT.New("%s", res.Reason).WithMetadata(
			errors.SettlementMetadata{
				Account:      settlement.AccountID.String(),
				SettlementID: settlement.ID,
				Amount:       settlement.Amount.String(),
				TxRef:        settlement.TxRef,
			},
		).Log().Warn("ambiguous settlement accepted as success")
		go s.sendAmbiguousSettlementAlert(settlement)
		return nil
	}

	log.WithField("account", account.ID).Infof(
		"settled %s for %s matched points in tx %s",
		settlement.Amount, settlement.MatchedPoints, settlement.TxRef,
	)
	return nil
}

func (s *service) rollbackClaim(
	ctx context.Context, settlement *domain.Settlement, reason string,
) errors.Error {
	if err := settlement.Fail(reason); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	account, err := s.repoManager.Accounts().Get(ctx, settlement.AccountID)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	account.Credit(settlement.MatchedPoints)
	if err := s.repoManager.Accounts().Save(ctx, account); err != nil {
		return errors.INTERNAL_ERROR.Wrap(
			fmt.Errorf("failed to revert claimed points debit: %w", err),
		)
	}
	if err := s.repoManager.Settlements().Update(ctx, settlement); err != nil {
		log.WithError(err).WithField("settlement", settlement.ID).Error(
			"failed to update settlement state",
		)
	}

	log.WithField("account", account.ID).Warnf("settlement rejected, debit reverted: %s", reason)
	return nil
}
