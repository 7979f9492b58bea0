package application

import (
	"github.com/binaryplan/binaryd/internal/core/domain"
	log "github.com/sirupsen/logrus"
)

var sides = []domain.Side{domain.SideLeft, domain.SideRight}

// aggregate merges the children's contributions into the account's legs. Leg
// totals and person counts are watermarks, so a leg that lost its child keeps
// its last known value. A child slot whose occupant does not point back is
// cleared.
func (s *service) aggregate(ws *workingSet, id domain.AccountID) error {
	account, err := ws.get(id)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	changed := false
	for _, side := range sides {
		childID := account.Child(side)
		if childID.IsZero() {
			continue
		}
		child, err := ws.get(childID)
		if err != nil {
			return err
		}
		if child == nil || child.Parent != account.ID || child.ParentSide != side {
			log.WithField("account", account.ID).Warnf(
				"clearing stale %s child pointer to %s", side, childID,
			)
			account.SetChild(side, domain.NoAccount)
			changed = true
			continue
		}

		leg := account.Leg(side)
		if leg.TotalPoints.Merge(child.Contribution(s.pointsFactor)) {
			changed = true
		}
		if leg.PersonCount.Merge(child.Persons()) {
			changed = true
		}
	}

	activePoints := account.ActivePoints
	account.RefreshActivePoints()
	if !account.ActivePoints.Equal(activePoints) {
		changed = true
	}

	if orphan := account.IsOrphan(); orphan != account.OrphanCandidate {
		account.OrphanCandidate = orphan
		changed = true
	}

	if changed {
		ws.markDirty(account)
	}
	return nil
}
