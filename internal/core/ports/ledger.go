package ports

import (
	"context"
	"time"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/shopspring/decimal"
)

// LedgerAccount is the authoritative ledger view of a participant.
type LedgerAccount struct {
	Registered           bool
	InvestedAmount       decimal.Decimal
	LeaderInvestedAmount decimal.Decimal
	BlockID              uint64
}

type Upline struct {
	Referrer domain.AccountID
	Side     domain.Side
}

type LedgerDeposit struct {
	StartedAt    time.Time
	Value        decimal.Decimal
	PayoutFactor decimal.Decimal
	Withdrawn    decimal.Decimal
	Leader       bool
}

type SettleOutcome uint8

const (
	SettleOutcomeAccepted SettleOutcome = iota
	// SettleOutcomeAmbiguous means the submission errored in a way that implies
	// an equivalent submission was already accepted.
	SettleOutcomeAmbiguous
)

type SettleResult struct {
	Outcome SettleOutcome
	TxRef   string
	Reason  string
}

// LedgerClient is the read/settle surface of the authoritative ledger.
// Reads are retried internally; an error returned by a read means retries were
// exhausted and the caller should skip the account.
// Settle is never retried blindly: it returns an error only when the ledger
// definitely rejected the settlement.
type LedgerClient interface {
	GetAccount(ctx context.Context, id domain.AccountID) (*LedgerAccount, error)
	GetUpline(ctx context.Context, id domain.AccountID) (*Upline, error)
	GetDeposits(ctx context.Context, id domain.AccountID) ([]LedgerDeposit, error)
	GetPlanDurationSeconds(ctx context.Context) (int64, error)
	Settle(
		ctx context.Context, id domain.AccountID,
		amount, claimedPointsSoFar, discount decimal.Decimal,
	) (*SettleResult, error)
	GetWithdrawableBalance(ctx context.Context, id domain.AccountID) (decimal.Decimal, error)
	CurrentBlock(ctx context.Context) (uint64, error)
	Close()
}
