package inmemorylivestore

import "github.com/binaryplan/binaryd/internal/core/ports"

type liveStore struct {
	claimLocks ports.ClaimLockStore
	sweeps     ports.SweepStore
}

func NewLiveStore() ports.LiveStore {
	return &liveStore{
		claimLocks: NewClaimLockStore(),
		sweeps:     NewSweepStore(),
	}
}

func (s *liveStore) ClaimLocks() ports.ClaimLockStore {
	return s.claimLocks
}

func (s *liveStore) Sweeps() ports.SweepStore {
	return s.sweeps
}

func (s *liveStore) Close() {}
