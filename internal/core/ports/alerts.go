package ports

import "context"

const (
	SweepCompleted      Topic = "Sweep Completed"
	OrphanCandidates    Topic = "Orphan Candidates"
	AmbiguousSettlement Topic = "Ambiguous Settlement"
)

type Topic string

type Alerts interface {
	Publish(ctx context.Context, topic Topic, message interface{}) error
}

type SweepCompletedAlert struct {
	Generation       uint64
	Duration         string
	Processed        int
	Skipped          int
	Placed           int
	CyclesBroken     int
	Detached         int
	OrphanCandidates int
}

type OrphanCandidatesAlert struct {
	Generation uint64
	Accounts   []string
}

type AmbiguousSettlementAlert struct {
	Account       string
	SettlementID  string
	Amount        string
	MatchedPoints string
	TxRef         string
	Reason        string
}
