package ports

import (
	"context"
	"time"

	"github.com/binaryplan/binaryd/internal/core/domain"
)

type LiveStore interface {
	ClaimLocks() ClaimLockStore
	Sweeps() SweepStore
	Close()
}

// ClaimLockStore serializes claim settlement per account across processes.
type ClaimLockStore interface {
	// TryLock returns ok=false without blocking if the account is already
	// locked. The returned token identifies this holder of the lock.
	TryLock(
		ctx context.Context, id domain.AccountID, ttl time.Duration,
	) (token string, ok bool, err error)
	// Unlock releases the lock only if it is still held with the given token,
	// a lock that expired and was taken over is left untouched.
	Unlock(ctx context.Context, id domain.AccountID, token string) error
}

type SweepStatus struct {
	Generation     uint64
	Running        bool
	StartedAt      time.Time
	LastCompleted  time.Time
	LastProcessed  int
	LastSkipped    int
	LastAbortedErr string
}

// SweepStore keeps the reconciliation generation marker.
type SweepStore interface {
	// Begin starts a new generation, failing with ok=false if one is running.
	Begin(ctx context.Context) (generation uint64, ok bool, err error)
	Complete(ctx context.Context, generation uint64, processed, skipped int) error
	Abort(ctx context.Context, generation uint64, reason string) error
	Status(ctx context.Context) (*SweepStatus, error)
}
