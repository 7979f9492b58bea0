package dbutil

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/shopspring/decimal"
)

// AccountRow has the same fields as the sqlc account model of every sql
// backend, which can therefore be converted to it directly.
type AccountRow struct {
	ID                   string
	Registered           bool
	InvestedAmount       string
	LeaderInvestedAmount string
	BlockID              int64
	Referrer             string
	Side                 int64
	Parent               string
	ParentSide           int64
	LeftChild            string
	RightChild           string
	LeftTotal            string
	LeftClaimed          string
	LeftExtra            string
	LeftPersons          int64
	RightTotal           string
	RightClaimed         string
	RightExtra           string
	RightPersons         int64
	ActivePoints         string
	RetirableAccumulated string
	LastClaimAt          int64
	Deposits             string
	OrphanCandidate      bool
	LedgerSyncedAt       int64
	UpdatedAt            int64
}

// SettlementRow has the same fields as the sqlc settlement model of every sql
// backend.
type SettlementRow struct {
	ID                 string
	AccountID          string
	Amount             string
	MatchedPoints      string
	ClaimedPointsSoFar string
	Discount           string
	State              int64
	TxRef              string
	FailReason         string
	CreatedAt          int64
	UpdatedAt          int64
}

type depositJSON struct {
	StartedAt    int64           `json:"started_at"`
	Value        decimal.Decimal `json:"value"`
	PayoutFactor decimal.Decimal `json:"payout_factor"`
	Withdrawn    decimal.Decimal `json:"withdrawn"`
	Leader       bool            `json:"leader"`
	ExpiresAt    int64           `json:"expires_at"`
}

func ToAccountRow(a *domain.Account) (AccountRow, error) {
	deposits := make([]depositJSON, 0, len(a.Deposits))
	for _, d := range a.Deposits {
		deposits = append(deposits, depositJSON{
			StartedAt:    UnixMilli(d.StartedAt),
			Value:        d.Value,
			PayoutFactor: d.PayoutFactor,
			Withdrawn:    d.Withdrawn,
			Leader:       d.Leader,
			ExpiresAt:    UnixMilli(d.ExpiresAt),
		})
	}
	buf, err := json.Marshal(deposits)
	if err != nil {
		return AccountRow{}, fmt.Errorf("failed to encode deposits of %s: %w", a.ID, err)
	}

	return AccountRow{
		ID:                   a.ID.String(),
		Registered:           a.Registered,
		InvestedAmount:       a.InvestedAmount.String(),
		LeaderInvestedAmount: a.LeaderInvestedAmount.String(),
		BlockID:              int64(a.BlockID),
		Referrer:             a.Referrer.String(),
		Side:                 int64(a.Side),
		Parent:               a.Parent.String(),
		ParentSide:           int64(a.ParentSide),
		LeftChild:            a.LeftChild.String(),
		RightChild:           a.RightChild.String(),
		LeftTotal:            a.Left.TotalPoints.Value().String(),
		LeftClaimed:          a.Left.ClaimedPoints.String(),
		LeftExtra:            a.Left.ExtraPoints.String(),
		LeftPersons:          int64(a.Left.PersonCount.Value()),
		RightTotal:           a.Right.TotalPoints.Value().String(),
		RightClaimed:         a.Right.ClaimedPoints.String(),
		RightExtra:           a.Right.ExtraPoints.String(),
		RightPersons:         int64(a.Right.PersonCount.Value()),
		ActivePoints:         a.ActivePoints.String(),
		RetirableAccumulated: a.RetirableAccumulated.String(),
		LastClaimAt:          UnixMilli(a.LastClaimAt),
		Deposits:             string(buf),
		OrphanCandidate:      a.OrphanCandidate,
		LedgerSyncedAt:       UnixMilli(a.LedgerSyncedAt),
		UpdatedAt:            UnixMilli(a.UpdatedAt),
	}, nil
}

func (r AccountRow) ToDomain() (*domain.Account, error) {
	amounts, err := parseDecimals(
		r.InvestedAmount, r.LeaderInvestedAmount,
		r.LeftTotal, r.LeftClaimed, r.LeftExtra,
		r.RightTotal, r.RightClaimed, r.RightExtra,
		r.ActivePoints, r.RetirableAccumulated,
	)
	if err != nil {
		return nil, fmt.Errorf("invalid amount for account %s: %w", r.ID, err)
	}

	var depositsJSON []depositJSON
	if strings.TrimSpace(r.Deposits) != "" {
		if err := json.Unmarshal([]byte(r.Deposits), &depositsJSON); err != nil {
			return nil, fmt.Errorf("failed to decode deposits of %s: %w", r.ID, err)
		}
	}
	var deposits []domain.Deposit
	if len(depositsJSON) > 0 {
		deposits = make([]domain.Deposit, 0, len(depositsJSON))
		for _, d := range depositsJSON {
			deposits = append(deposits, domain.Deposit{
				StartedAt:    FromUnixMilli(d.StartedAt),
				Value:        d.Value,
				PayoutFactor: d.PayoutFactor,
				Withdrawn:    d.Withdrawn,
				Leader:       d.Leader,
				ExpiresAt:    FromUnixMilli(d.ExpiresAt),
			})
		}
	}

	return &domain.Account{
		ID:                   domain.AccountID(r.ID),
		Registered:           r.Registered,
		InvestedAmount:       amounts[0],
		LeaderInvestedAmount: amounts[1],
		BlockID:              uint64(r.BlockID),
		Referrer:             domain.AccountID(r.Referrer),
		Side:                 domain.Side(r.Side),
		Parent:               domain.AccountID(r.Parent),
		ParentSide:           domain.Side(r.ParentSide),
		LeftChild:            domain.AccountID(r.LeftChild),
		RightChild:           domain.AccountID(r.RightChild),
		Left: domain.Leg{
			TotalPoints:   domain.RestoreWatermark(amounts[2]),
			ClaimedPoints: amounts[3],
			ExtraPoints:   amounts[4],
			PersonCount:   domain.RestoreCountWatermark(uint64(r.LeftPersons)),
		},
		Right: domain.Leg{
			TotalPoints:   domain.RestoreWatermark(amounts[5]),
			ClaimedPoints: amounts[6],
			ExtraPoints:   amounts[7],
			PersonCount:   domain.RestoreCountWatermark(uint64(r.RightPersons)),
		},
		ActivePoints:         amounts[8],
		RetirableAccumulated: amounts[9],
		LastClaimAt:          FromUnixMilli(r.LastClaimAt),
		Deposits:             deposits,
		OrphanCandidate:      r.OrphanCandidate,
		LedgerSyncedAt:       FromUnixMilli(r.LedgerSyncedAt),
		UpdatedAt:            FromUnixMilli(r.UpdatedAt),
	}, nil
}

func ToSettlementRow(s *domain.Settlement) SettlementRow {
	return SettlementRow{
		ID:                 s.ID,
		AccountID:          s.AccountID.String(),
		Amount:             s.Amount.String(),
		MatchedPoints:      s.MatchedPoints.String(),
		ClaimedPointsSoFar: s.ClaimedPointsSoFar.String(),
		Discount:           s.Discount.String(),
		State:              int64(s.State),
		TxRef:              s.TxRef,
		FailReason:         s.FailReason,
		CreatedAt:          UnixMilli(s.CreatedAt),
		UpdatedAt:          UnixMilli(s.UpdatedAt),
	}
}

func (r SettlementRow) ToDomain() (*domain.Settlement, error) {
	amounts, err := parseDecimals(r.Amount, r.MatchedPoints, r.ClaimedPointsSoFar, r.Discount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount for settlement %s: %w", r.ID, err)
	}
	return &domain.Settlement{
		ID:                 r.ID,
		AccountID:          domain.AccountID(r.AccountID),
		Amount:             amounts[0],
		MatchedPoints:      amounts[1],
		ClaimedPointsSoFar: amounts[2],
		Discount:           amounts[3],
		State:              domain.ClaimState(r.State),
		TxRef:              r.TxRef,
		FailReason:         r.FailReason,
		CreatedAt:          FromUnixMilli(r.CreatedAt),
		UpdatedAt:          FromUnixMilli(r.UpdatedAt),
	}, nil
}

func parseDecimals(values ...string) ([]decimal.Decimal, error) {
	amounts := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		amount, err := decimal.NewFromString(v)
		if err != nil {
			return nil, err
		}
		amounts = append(amounts, amount)
	}
	return amounts, nil
}
