package application

import (
	"context"
	"time"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/internal/core/ports"
	"github.com/binaryplan/binaryd/pkg/errors"
	"github.com/shopspring/decimal"
)

type Service interface {
	Start() errors.Error
	Stop()
	GetNode(ctx context.Context, id domain.AccountID) (*AccountView, errors.Error)
	Refresh(ctx context.Context, id domain.AccountID) (*AccountView, errors.Error)
	ComputeClaimable(ctx context.Context, id domain.AccountID) (decimal.Decimal, errors.Error)
	Claim(ctx context.Context, id domain.AccountID) (*ClaimResult, errors.Error)
	GetStaleness(ctx context.Context) (bool, errors.Error)
	SweepStatus(ctx context.Context) (*ports.SweepStatus, errors.Error)
	RunSweep(ctx context.Context) (*SweepReport, errors.Error)
	Track(ctx context.Context, ids ...domain.AccountID) (int, errors.Error)
	CreditExtraPoints(
		ctx context.Context, id domain.AccountID, side domain.Side, amount decimal.Decimal,
	) (*AccountView, errors.Error)
	ListOrphanCandidates(ctx context.Context) ([]*domain.Account, errors.Error)
	GetWithdrawable(ctx context.Context, id domain.AccountID) (*WithdrawableBalance, errors.Error)
	ListSettlements(ctx context.Context, id domain.AccountID) ([]*domain.Settlement, errors.Error)
}

type Config struct {
	// PointsFactor is the percentage of an investment converted into points.
	PointsFactor decimal.Decimal
	// MatchingRate is the percentage of matched points paid out on claim.
	MatchingRate         decimal.Decimal
	ClaimDiscountPercent decimal.Decimal
	LedgerDecimals       int32
	MaxWalkDepth         int
	ClaimCooldown        time.Duration
	ClaimLockTTL         time.Duration
	// SweepInterval is expressed in the scheduler's unit (seconds or blocks).
	SweepInterval int64
	SweepOnStart  bool
}

type PlacementResult int

const (
	PlacementSkipped PlacementResult = iota
	PlacementPlaced
	PlacementAlreadyCorrect
	PlacementCycleBroken
	PlacementNoReferrer
	// PlacementDetached means the account lost a slot conflict and waits for
	// a later pass to be placed again.
	PlacementDetached
)

func (r PlacementResult) String() string {
	switch r {
	case PlacementPlaced:
		return "placed"
	case PlacementAlreadyCorrect:
		return "already_correct"
	case PlacementCycleBroken:
		return "cycle_broken"
	case PlacementNoReferrer:
		return "no_referrer"
	case PlacementDetached:
		return "detached"
	default:
		return "skipped"
	}
}

type AccountView struct {
	domain.Account
	Claimable decimal.Decimal
	Placement PlacementResult
	Stale     bool
}

type ClaimResult struct {
	SettlementID  string
	State         domain.ClaimState
	Settled       bool
	Amount        decimal.Decimal
	MatchedPoints decimal.Decimal
	Discount      decimal.Decimal
	TxRef         string
}

type SweepReport struct {
	Generation       uint64
	Processed        int
	Skipped          int
	Placed           int
	AlreadyCorrect   int
	CyclesBroken     int
	NoReferrer       int
	Detached         int
	OrphanCandidates int
	Duration         time.Duration
}

func (r *SweepReport) countPlacement(result PlacementResult) {
	switch result {
	case PlacementPlaced:
		r.Placed++
	case PlacementAlreadyCorrect:
		r.AlreadyCorrect++
	case PlacementCycleBroken:
		r.CyclesBroken++
	case PlacementNoReferrer:
		r.NoReferrer++
	case PlacementDetached:
		r.Detached++
	}
}

type WithdrawableBalance struct {
	Ledger decimal.Decimal
	// Local is the amount settled by this engine and not yet withdrawn.
	Local decimal.Decimal
}
