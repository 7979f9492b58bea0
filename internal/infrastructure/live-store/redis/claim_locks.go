package redislivestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/internal/core/ports"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const claimLockKeyPrefix = "claimLockStore:"

type claimLockStore struct {
	rdb          *redis.Client
	numOfRetries int
}

func NewClaimLockStore(rdb *redis.Client, numOfRetries int) ports.ClaimLockStore {
	if numOfRetries <= 0 {
		numOfRetries = 1
	}
	return &claimLockStore{rdb, numOfRetries}
}

func (s *claimLockStore) TryLock(
	ctx context.Context, id domain.AccountID, ttl time.Duration,
) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, claimLockKey(id), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire claim lock for %s: %w", id, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (s *claimLockStore) Unlock(ctx context.Context, id domain.AccountID, token string) error {
	key := claimLockKey(id)

	var err error
	for attempt := 0; attempt < s.numOfRetries; attempt++ {
		if err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			holder, err := tx.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}
			// expired and taken over by someone else
			if holder != token {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key); err == nil {
			return nil
		}
	}
	return fmt.Errorf("failed to release claim lock for %s: %w", id, err)
}

func claimLockKey(id domain.AccountID) string {
	return claimLockKeyPrefix + id.String()
}
