package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ClaimState uint8

const (
	ClaimStateComputed ClaimState = iota
	ClaimStateSubmitting
	ClaimStateSettled
	ClaimStateAmbiguousAccepted
	ClaimStateFailed
)

func (s ClaimState) String() string {
	return []string{
		"Computed",
		"Submitting",
		"Settled",
		"AmbiguousAccepted",
		"Failed",
	}[s]
}

func (s ClaimState) IsFinal() bool {
	return s == ClaimStateSettled || s == ClaimStateAmbiguousAccepted || s == ClaimStateFailed
}

// IsAccepted reports whether the ledger took the settlement, in which case the
// claimed points debit is permanent.
func (s ClaimState) IsAccepted() bool {
	return s == ClaimStateSettled || s == ClaimStateAmbiguousAccepted
}

var claimTransitions = map[ClaimState][]ClaimState{
	ClaimStateComputed:   {ClaimStateSubmitting, ClaimStateFailed},
	ClaimStateSubmitting: {ClaimStateSettled, ClaimStateAmbiguousAccepted, ClaimStateFailed},
}

// Settlement tracks one claim from computation to its terminal ledger outcome.
type Settlement struct {
	ID                 string
	AccountID          AccountID
	Amount             decimal.Decimal
	MatchedPoints      decimal.Decimal
	ClaimedPointsSoFar decimal.Decimal
	Discount           decimal.Decimal
	State              ClaimState
	TxRef              string
	FailReason         string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func NewSettlement(
	accountID AccountID, amount, matched, claimedSoFar, discount decimal.Decimal,
) *Settlement {
	now := time.Now()
	return &Settlement{
		ID:                 uuid.New().String(),
		AccountID:          accountID,
		Amount:             amount,
		MatchedPoints:      matched,
		ClaimedPointsSoFar: claimedSoFar,
		Discount:           discount,
		State:              ClaimStateComputed,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (s *Settlement) Transition(to ClaimState) error {
	for _, allowed := range claimTransitions[s.State] {
		if allowed == to {
			s.State = to
			s.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("invalid claim state transition %s -> %s", s.State, to)
}

func (s *Settlement) Fail(reason string) error {
	if err := s.Transition(ClaimStateFailed); err != nil {
		return err
	}
	s.FailReason = reason
	return nil
}
