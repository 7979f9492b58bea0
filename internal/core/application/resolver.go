package application

import (
	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/internal/core/ports"
	"github.com/binaryplan/binaryd/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// resolve places the account in the tree according to the upline reported by
// the ledger, repairing its current slot first. Every record it modifies is
// marked dirty in the working set, nothing is persisted here.
func (s *service) resolve(
	ws *workingSet, id domain.AccountID, upline *ports.Upline,
) (PlacementResult, error) {
	account, err := ws.getOrCreate(id)
	if err != nil {
		return PlacementSkipped, err
	}
	if account.Referrer != upline.Referrer || account.Side != upline.Side {
		account.Referrer = upline.Referrer
		account.Side = upline.Side
		ws.markDirty(account)
	}

	if upline.Referrer.IsZero() || upline.Referrer == id {
		if account.HasParent() {
			if err := s.releaseSlot(ws, account); err != nil {
				return PlacementSkipped, err
			}
		}
		return PlacementNoReferrer, nil
	}

	if account.HasParent() {
		lost, err := s.checkOwnSlot(ws, account)
		if err != nil {
			return PlacementSkipped, err
		}
		if lost {
			return PlacementDetached, nil
		}
	}

	if _, err := ws.getOrCreate(upline.Referrer); err != nil {
		return PlacementSkipped, err
	}

	return s.walk(ws, account, upline.Referrer, upline.Side)
}

// walk follows the same-side child chain starting at the referrer until it
// finds the account or a free slot.
func (s *service) walk(
	ws *workingSet, account *domain.Account, from domain.AccountID, side domain.Side,
) (PlacementResult, error) {
	visited := make(map[domain.AccountID]struct{})
	current := from

	for depth := 0; ; depth++ {
		if depth > s.maxWalkDepth {
			return PlacementSkipped, errors.WALK_TOO_DEEP.New(
				"walk from %s exceeded max depth %d", from, s.maxWalkDepth,
			).WithMetadata(errors.AccountMetadata{Account: account.ID.String()})
		}

		node, err := ws.get(current)
		if err != nil {
			return PlacementSkipped, err
		}
		if node == nil {
			return PlacementSkipped, errors.INTERNAL_ERROR.New(
				"account %s referenced by the tree is missing", current,
			)
		}

		if _, ok := visited[current]; ok {
			if err := s.breakCycle(ws, node, side); err != nil {
				return PlacementSkipped, err
			}
			return PlacementCycleBroken, nil
		}
		visited[current] = struct{}{}

		child := node.Child(side)
		if child == account.ID {
			if account.Parent != node.ID || account.ParentSide != side {
				if err := s.releaseSlot(ws, account); err != nil {
					return PlacementSkipped, err
				}
				account.Parent = node.ID
				account.ParentSide = side
				ws.markDirty(account)
			}
			return PlacementAlreadyCorrect, nil
		}

		if !child.IsZero() {
			childAccount, err := ws.get(child)
			if err != nil {
				return PlacementSkipped, err
			}
			if childAccount == nil || childAccount.Parent != node.ID ||
				childAccount.ParentSide != side {
				log.WithField("account", node.ID).Warnf(
					"clearing stale %s child pointer to %s", side, child,
				)
				node.SetChild(side, domain.NoAccount)
				ws.markDirty(node)
				child = domain.NoAccount
			}
		}

		if child.IsZero() {
			isAncestor, err := s.isAncestor(ws, account.ID, node.ID)
			if err != nil {
				return PlacementSkipped, err
			}
			if isAncestor {
				log.WithField("account", account.ID).Warnf(
					"refusing to place under %s, account is its ancestor", node.ID,
				)
				return PlacementCycleBroken, nil
			}

			if err := s.releaseSlot(ws, account); err != nil {
				return PlacementSkipped, err
			}
			node.SetChild(side, account.ID)
			account.Parent = node.ID
			account.ParentSide = side
			ws.markDirty(node, account)

			log.WithField("account", account.ID).Debugf(
				"placed under %s on %s leg", node.ID, side,
			)
			return PlacementPlaced, nil
		}

		current = child
	}
}

// checkOwnSlot makes the parent's child slot agree with the account's parent
// pointer. It returns true if the account lost the slot to an earlier
// registration.
func (s *service) checkOwnSlot(ws *workingSet, account *domain.Account) (bool, error) {
	parent, err := ws.get(account.Parent)
	if err != nil {
		return false, err
	}
	if parent == nil {
		account.Detach()
		ws.markDirty(account)
		return false, nil
	}

	side := account.ParentSide
	occupant := parent.Child(side)
	switch {
	case occupant == account.ID:
		return false, nil
	case occupant.IsZero():
		parent.SetChild(side, account.ID)
		ws.markDirty(parent)
		return false, nil
	}

	other, err := ws.get(occupant)
	if err != nil {
		return false, err
	}
	if other == nil || other.Parent != parent.ID || other.ParentSide != side {
		parent.SetChild(side, account.ID)
		ws.markDirty(parent)
		return false, nil
	}

	winner, loser := other, account
	if wins(account, other) {
		winner, loser = account, other
	}

	conflict := errors.PLACEMENT_CONFLICT.New(
		"%s and %s both claim the %s slot of %s", account.ID, other.ID, side, parent.ID,
	).WithMetadata(errors.PlacementConflictMetadata{
		Parent:      parent.ID.String(),
		Side:        side.String(),
		Winner:      winner.ID.String(),
		Loser:       loser.ID.String(),
		WinnerBlock: winner.BlockID,
		LoserBlock:  loser.BlockID,
	})
	conflict.Log().Infof("placement conflict resolved, %s detached", loser.ID)

	parent.SetChild(side, winner.ID)
	loser.Detach()
	ws.markDirty(parent, loser)
	return loser == account, nil
}

// wins reports whether a takes precedence over b for the same slot: earlier
// registration first, then the lower id.
func wins(a, b *domain.Account) bool {
	if a.BlockID != b.BlockID {
		return a.BlockID < b.BlockID
	}
	return a.ID < b.ID
}

// breakCycle detaches the same-side child of a node reached twice.
func (s *service) breakCycle(ws *workingSet, node *domain.Account, side domain.Side) error {
	childID := node.Child(side)
	node.SetChild(side, domain.NoAccount)
	ws.markDirty(node)

	child, err := ws.get(childID)
	if err != nil {
		return err
	}
	if child != nil && child.Parent == node.ID && child.ParentSide == side {
		child.Detach()
		ws.markDirty(child)
	}

	log.WithField("account", node.ID).Warnf("cycle broken, %s child %s detached", side, childID)
	return nil
}

// releaseSlot clears the account's parent pointer along with the matching
// child slot of the parent.
func (s *service) releaseSlot(ws *workingSet, account *domain.Account) error {
	if !account.HasParent() {
		return nil
	}

	parent, err := ws.get(account.Parent)
	if err != nil {
		return err
	}
	if parent != nil && parent.Child(account.ParentSide) == account.ID {
		parent.SetChild(account.ParentSide, domain.NoAccount)
		ws.markDirty(parent)
	}
	account.Detach()
	ws.markDirty(account)
	return nil
}

// isAncestor walks up the parent pointers of node looking for id.
func (s *service) isAncestor(ws *workingSet, id, node domain.AccountID) (bool, error) {
	visited := make(map[domain.AccountID]struct{})
	current := node
	for depth := 0; depth <= s.maxWalkDepth; depth++ {
		if current == id {
			return true, nil
		}
		if _, ok := visited[current]; ok {
			return false, nil
		}
		visited[current] = struct{}{}

		account, err := ws.get(current)
		if err != nil {
			return false, err
		}
		if account == nil || !account.HasParent() {
			return false, nil
		}
		current = account.Parent
	}
	return false, errors.WALK_TOO_DEEP.New(
		"ancestor walk from %s exceeded max depth %d", node, s.maxWalkDepth,
	).WithMetadata(errors.AccountMetadata{Account: id.String()})
}
