package inmemorylivestore

import (
	"context"
	"time"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/internal/core/ports"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

type claimLock struct {
	token     string
	expiresAt time.Time
}

type claimLockStore struct {
	locks *xsync.Map[domain.AccountID, claimLock]
}

func NewClaimLockStore() ports.ClaimLockStore {
	return &claimLockStore{
		locks: xsync.NewMap[domain.AccountID, claimLock](),
	}
}

func (s *claimLockStore) TryLock(
	_ context.Context, id domain.AccountID, ttl time.Duration,
) (string, bool, error) {
	var token string
	now := time.Now()
	s.locks.Compute(id, func(lock claimLock, loaded bool) (claimLock, xsync.ComputeOp) {
		// Expired locks are taken over.
		if loaded && now.Before(lock.expiresAt) {
			return lock, xsync.CancelOp
		}
		token = uuid.NewString()
		return claimLock{token, now.Add(ttl)}, xsync.UpdateOp
	})
	return token, token != "", nil
}

func (s *claimLockStore) Unlock(_ context.Context, id domain.AccountID, token string) error {
	s.locks.Compute(id, func(lock claimLock, loaded bool) (claimLock, xsync.ComputeOp) {
		if !loaded || lock.token != token {
			return lock, xsync.CancelOp
		}
		return lock, xsync.DeleteOp
	})
	return nil
}
