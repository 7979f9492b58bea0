package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountID is the lower-cased hex wallet address of a participant.
type AccountID string

const NoAccount AccountID = ""

const zeroAddress = "0x0000000000000000000000000000000000000000"

func NewAccountID(address string) AccountID {
	id := strings.ToLower(strings.TrimSpace(address))
	if id == zeroAddress {
		return NoAccount
	}
	return AccountID(id)
}

func (id AccountID) IsZero() bool {
	return id == NoAccount
}

func (id AccountID) String() string {
	return string(id)
}

type Side uint8

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}

func (s Side) Other() Side {
	if s == SideRight {
		return SideLeft
	}
	return SideRight
}

func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l", "0":
		return SideLeft, nil
	case "right", "r", "1":
		return SideRight, nil
	default:
		return SideLeft, fmt.Errorf("invalid side %q", s)
	}
}

// Leg holds the point counters of one side of an account's subtree.
type Leg struct {
	TotalPoints   Watermark
	ClaimedPoints decimal.Decimal
	ExtraPoints   decimal.Decimal
	PersonCount   CountWatermark
}

// Effective returns the points available for matching on this leg.
func (l Leg) Effective() decimal.Decimal {
	return l.TotalPoints.Value().Add(l.ExtraPoints).Sub(l.ClaimedPoints)
}

type Deposit struct {
	StartedAt    time.Time
	Value        decimal.Decimal
	PayoutFactor decimal.Decimal
	Withdrawn    decimal.Decimal
	Leader       bool
	ExpiresAt    time.Time
}

func (d Deposit) Equal(other Deposit) bool {
	return d.StartedAt.Equal(other.StartedAt) && d.Value.Equal(other.Value) &&
		d.PayoutFactor.Equal(other.PayoutFactor) && d.Withdrawn.Equal(other.Withdrawn) &&
		d.Leader == other.Leader && d.ExpiresAt.Equal(other.ExpiresAt)
}

func (d Deposit) IsActive(now time.Time) bool {
	return d.ExpiresAt.IsZero() || now.Before(d.ExpiresAt)
}

type Account struct {
	ID                   AccountID
	Registered           bool
	InvestedAmount       decimal.Decimal
	LeaderInvestedAmount decimal.Decimal
	BlockID              uint64
	Referrer             AccountID
	Side                 Side
	Parent               AccountID
	ParentSide           Side
	LeftChild            AccountID
	RightChild           AccountID
	Left                 Leg
	Right                Leg
	ActivePoints         decimal.Decimal
	RetirableAccumulated decimal.Decimal
	LastClaimAt          time.Time
	Deposits             []Deposit
	OrphanCandidate      bool
	LedgerSyncedAt       time.Time
	UpdatedAt            time.Time
}

func NewAccount(id AccountID) *Account {
	return &Account{
		ID:                   id,
		InvestedAmount:       decimal.Zero,
		LeaderInvestedAmount: decimal.Zero,
		Left:                 Leg{ClaimedPoints: decimal.Zero, ExtraPoints: decimal.Zero},
		Right:                Leg{ClaimedPoints: decimal.Zero, ExtraPoints: decimal.Zero},
		ActivePoints:         decimal.Zero,
		RetirableAccumulated: decimal.Zero,
	}
}

func (a *Account) Child(side Side) AccountID {
	if side == SideRight {
		return a.RightChild
	}
	return a.LeftChild
}

func (a *Account) SetChild(side Side, id AccountID) {
	if side == SideRight {
		a.RightChild = id
		return
	}
	a.LeftChild = id
}

func (a *Account) Leg(side Side) *Leg {
	if side == SideRight {
		return &a.Right
	}
	return &a.Left
}

func (a *Account) HasParent() bool {
	return !a.Parent.IsZero()
}

// Detach clears the account's parent pointer. The caller is in charge of the
// parent's child slot.
func (a *Account) Detach() {
	a.Parent = NoAccount
	a.ParentSide = SideLeft
}

// MatchedPoints is the amount of points that can be matched across both legs.
func (a *Account) MatchedPoints() decimal.Decimal {
	return decimal.Min(a.Left.Effective(), a.Right.Effective())
}

// RefreshActivePoints recomputes the cached active points from both legs.
func (a *Account) RefreshActivePoints() {
	a.ActivePoints = a.MatchedPoints()
}

// Contribution is the amount of points this account pushes up to its parent.
func (a *Account) Contribution(pointsFactor decimal.Decimal) decimal.Decimal {
	own := a.InvestedAmount.Mul(pointsFactor).Div(hundred)
	return own.Add(a.Left.TotalPoints.Value()).Add(a.Right.TotalPoints.Value())
}

// Persons is the number of participants in the subtree rooted at the account.
func (a *Account) Persons() uint64 {
	return 1 + a.Left.PersonCount.Value() + a.Right.PersonCount.Value()
}

func (a *Account) IsOrphan() bool {
	return !a.Registered && a.Left.ClaimedPoints.IsZero() && a.Right.ClaimedPoints.IsZero()
}

// Debit moves matched points into the claimed counters of both legs.
func (a *Account) Debit(points decimal.Decimal) {
	a.Left.ClaimedPoints = a.Left.ClaimedPoints.Add(points)
	a.Right.ClaimedPoints = a.Right.ClaimedPoints.Add(points)
	a.RefreshActivePoints()
}

// Credit reverts a previous Debit.
func (a *Account) Credit(points decimal.Decimal) {
	a.Left.ClaimedPoints = a.Left.ClaimedPoints.Sub(points)
	a.Right.ClaimedPoints = a.Right.ClaimedPoints.Sub(points)
	a.RefreshActivePoints()
}

func (a *Account) TotalClaimedPoints() decimal.Decimal {
	return a.Left.ClaimedPoints.Add(a.Right.ClaimedPoints)
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.Deposits != nil {
		c.Deposits = append([]Deposit(nil), a.Deposits...)
	}
	return &c
}

var hundred = decimal.NewFromInt(100)
