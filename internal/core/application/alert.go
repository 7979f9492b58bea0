package application

import (
	"context"
	"time"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

func (s *service) sendSweepAlerts(report *SweepReport, orphans []*domain.Account) {
	s.publishAlert(ports.SweepCompleted, ports.SweepCompletedAlert{
		Generation:       report.Generation,
		Duration:         report.Duration.Round(time.Millisecond).String(),
		Processed:        report.Processed,
		Skipped:          report.Skipped,
		Placed:           report.Placed,
		CyclesBroken:     report.CyclesBroken,
		Detached:         report.Detached,
		OrphanCandidates: report.OrphanCandidates,
	})

	if len(orphans) <= 0 {
		return
	}
	accounts := make([]string, 0, len(orphans))
	for _, orphan := range orphans {
		accounts = append(accounts, orphan.ID.String())
	}
	s.publishAlert(ports.OrphanCandidates, ports.OrphanCandidatesAlert{
		Generation: report.Generation,
		Accounts:   accounts,
	})
}

func (s *service) sendAmbiguousSettlementAlert(settlement *domain.Settlement) {
	s.publishAlert(ports.AmbiguousSettlement, ports.AmbiguousSettlementAlert{
		Account:       settlement.AccountID.String(),
		SettlementID:  settlement.ID,
		Amount:        settlement.Amount.String(),
		MatchedPoints: settlement.MatchedPoints.String(),
		TxRef:         settlement.TxRef,
		Reason:        settlement.FailReason,
	})
}

func (s *service) publishAlert(topic ports.Topic, message interface{}) {
	if s.alerts == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.alerts.Publish(ctx, topic, message); err != nil {
		log.WithError(err).WithField("topic", topic).Warn("failed to publish alert")
	}
}
