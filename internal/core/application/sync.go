package application

import (
	"context"
	"time"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/internal/core/ports"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ledgerState is everything read from the ledger for one account before the
// store is touched.
type ledgerState struct {
	account      *ports.LedgerAccount
	deposits     []ports.LedgerDeposit
	upline       *ports.Upline
	planDuration time.Duration
}

func (s *service) fetchLedgerState(ctx context.Context, id domain.AccountID) (*ledgerState, error) {
	account, err := s.ledger.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	deposits, err := s.ledger.GetDeposits(ctx, id)
	if err != nil {
		return nil, err
	}
	upline, err := s.ledger.GetUpline(ctx, id)
	if err != nil {
		return nil, err
	}

	var planDuration time.Duration
	if len(deposits) > 0 {
		if planDuration, err = s.getPlanDuration(ctx); err != nil {
			return nil, err
		}
	}

	return &ledgerState{account, deposits, upline, planDuration}, nil
}

func (s *service) getPlanDuration(ctx context.Context) (time.Duration, error) {
	s.planDurationLock.Lock()
	defer s.planDurationLock.Unlock()

	if s.planDuration != nil {
		return *s.planDuration, nil
	}

	seconds, err := s.ledger.GetPlanDurationSeconds(ctx)
	if err != nil {
		return 0, err
	}
	duration := time.Duration(seconds) * time.Second
	s.planDuration = &duration
	return duration, nil
}

// applyLedgerState mirrors the ledger record into the account and reports
// whether anything changed. The block id is assigned once and investments only
// ever grow. The sync time is bumped only along with an actual change.
func applyLedgerState(account *domain.Account, state *ledgerState, now time.Time) bool {
	logger := log.WithField("account", account.ID)
	changed := false

	if account.Registered != state.account.Registered {
		account.Registered = state.account.Registered
		changed = true
	}
	if account.BlockID == 0 && state.account.BlockID > 0 {
		account.BlockID = state.account.BlockID
		changed = true
	} else if state.account.BlockID > 0 && account.BlockID != state.account.BlockID {
		logger.Warnf(
			"ledger reports block id %d, keeping %d", state.account.BlockID, account.BlockID,
		)
	}

	invested := state.account.InvestedAmount
	leaderInvested := state.account.LeaderInvestedAmount
	if len(state.deposits) > 0 {
		deposits := make([]domain.Deposit, 0, len(state.deposits))
		invested, leaderInvested = decimal.Zero, decimal.Zero
		for _, d := range state.deposits {
			deposit := domain.Deposit{
				StartedAt:    d.StartedAt,
				Value:        d.Value,
				PayoutFactor: d.PayoutFactor,
				Withdrawn:    d.Withdrawn,
				Leader:       d.Leader,
			}
			if state.planDuration > 0 {
				deposit.ExpiresAt = d.StartedAt.Add(state.planDuration)
			}
			deposits = append(deposits, deposit)

			if d.Leader {
				leaderInvested = leaderInvested.Add(d.Value)
			} else {
				invested = invested.Add(d.Value)
			}
		}
		if !sameDeposits(account.Deposits, deposits) {
			account.Deposits = deposits
			changed = true
		}

		if !invested.Equal(state.account.InvestedAmount) ||
			!leaderInvested.Equal(state.account.LeaderInvestedAmount) {
			logger.Warnf(
				"deposits sum up to %s (leader %s) but ledger account reports %s (leader %s)",
				invested, leaderInvested,
				state.account.InvestedAmount, state.account.LeaderInvestedAmount,
			)
		}
	}

	invested = mergeInvestment(logger, account.InvestedAmount, invested)
	if !invested.Equal(account.InvestedAmount) {
		account.InvestedAmount = invested
		changed = true
	}
	leaderInvested = mergeInvestment(logger, account.LeaderInvestedAmount, leaderInvested)
	if !leaderInvested.Equal(account.LeaderInvestedAmount) {
		account.LeaderInvestedAmount = leaderInvested
		changed = true
	}

	if changed || account.LedgerSyncedAt.IsZero() {
		account.LedgerSyncedAt = now
		changed = true
	}
	return changed
}

func sameDeposits(a, b []domain.Deposit) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func mergeInvestment(logger *log.Entry, current, next decimal.Decimal) decimal.Decimal {
	if next.LessThan(current) {
		logger.Warnf("ignoring stale ledger investment %s lower than %s", next, current)
		return current
	}
	return next
}
