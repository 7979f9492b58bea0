package redislivestore

import (
	"github.com/binaryplan/binaryd/internal/core/ports"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type liveStore struct {
	rdb        *redis.Client
	claimLocks ports.ClaimLockStore
	sweeps     ports.SweepStore
}

func NewLiveStore(rdb *redis.Client, numOfRetries int) ports.LiveStore {
	return &liveStore{
		rdb:        rdb,
		claimLocks: NewClaimLockStore(rdb, numOfRetries),
		sweeps:     NewSweepStore(rdb, numOfRetries),
	}
}

func (s *liveStore) ClaimLocks() ports.ClaimLockStore {
	return s.claimLocks
}

func (s *liveStore) Sweeps() ports.SweepStore {
	return s.sweeps
}

func (s *liveStore) Close() {
	if err := s.rdb.Close(); err != nil {
		log.WithError(err).Warn("failed to close redis client")
	}
}
