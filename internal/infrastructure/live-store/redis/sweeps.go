package redislivestore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/binaryplan/binaryd/internal/core/ports"
	"github.com/redis/go-redis/v9"
)

const (
	sweepStatusKey = "sweepStore:status"

	fieldGeneration    = "generation"
	fieldRunning       = "running"
	fieldStartedAt     = "startedAt"
	fieldLastCompleted = "lastCompleted"
	fieldLastProcessed = "lastProcessed"
	fieldLastSkipped   = "lastSkipped"
	fieldLastAborted   = "lastAborted"
)

type sweepStore struct {
	rdb          *redis.Client
	numOfRetries int
}

func NewSweepStore(rdb *redis.Client, numOfRetries int) ports.SweepStore {
	if numOfRetries <= 0 {
		numOfRetries = 1
	}
	return &sweepStore{rdb, numOfRetries}
}

func (s *sweepStore) Begin(ctx context.Context) (generation uint64, ok bool, err error) {
	for attempt := 0; attempt < s.numOfRetries; attempt++ {
		if err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			status, err := readStatus(ctx, tx)
			if err != nil {
				return err
			}
			if status.Running {
				generation, ok = status.Generation, false
				return nil
			}

			generation, ok = status.Generation+1, true
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, sweepStatusKey,
					fieldGeneration, generation,
					fieldRunning, 1,
					fieldStartedAt, time.Now().UnixMilli(),
				)
				return nil
			})
			return err
		}, sweepStatusKey); err == nil {
			return generation, ok, nil
		}
	}
	return 0, false, err
}

func (s *sweepStore) Complete(
	ctx context.Context, generation uint64, processed, skipped int,
) error {
	return s.finish(ctx, generation, map[string]interface{}{
		fieldRunning:       0,
		fieldLastCompleted: time.Now().UnixMilli(),
		fieldLastProcessed: processed,
		fieldLastSkipped:   skipped,
		fieldLastAborted:   "",
	})
}

func (s *sweepStore) Abort(ctx context.Context, generation uint64, reason string) error {
	return s.finish(ctx, generation, map[string]interface{}{
		fieldRunning:     0,
		fieldLastAborted: reason,
	})
}

func (s *sweepStore) Status(ctx context.Context) (*ports.SweepStatus, error) {
	return readStatus(ctx, s.rdb)
}

func (s *sweepStore) finish(
	ctx context.Context, generation uint64, values map[string]interface{},
) (err error) {
	for attempt := 0; attempt < s.numOfRetries; attempt++ {
		if err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			status, err := readStatus(ctx, tx)
			if err != nil {
				return err
			}
			if !status.Running || status.Generation != generation {
				return fmt.Errorf(
					"sweep generation %d is not running (current %d)",
					generation, status.Generation,
				)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, sweepStatusKey, values)
				return nil
			})
			return err
		}, sweepStatusKey); err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func readStatus(ctx context.Context, c hashReader) (*ports.SweepStatus, error) {
	values, err := c.HGetAll(ctx, sweepStatusKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	status := &ports.SweepStatus{
		Running:        values[fieldRunning] == "1",
		LastAbortedErr: values[fieldLastAborted],
	}
	status.Generation, _ = strconv.ParseUint(values[fieldGeneration], 10, 64)
	status.StartedAt = parseMillis(values[fieldStartedAt])
	status.LastCompleted = parseMillis(values[fieldLastCompleted])
	status.LastProcessed, _ = strconv.Atoi(values[fieldLastProcessed])
	status.LastSkipped, _ = strconv.Atoi(values[fieldLastSkipped])
	return status, nil
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
