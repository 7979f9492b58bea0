package domain

import (
	"context"
	"errors"
)

var ErrAccountNotFound = errors.New("account not found")

type AccountRepository interface {
	Get(ctx context.Context, id AccountID) (*Account, error)
	GetMany(ctx context.Context, ids []AccountID) ([]*Account, error)
	// Save upserts all the given accounts atomically.
	Save(ctx context.Context, accounts ...*Account) error
	// ListIDsByBlockDesc returns all account ids, newest registration first.
	ListIDsByBlockDesc(ctx context.Context) ([]AccountID, error)
	ListOrphanCandidates(ctx context.Context) ([]*Account, error)
	Close()
}

type SettlementRepository interface {
	Add(ctx context.Context, settlement *Settlement) error
	Update(ctx context.Context, settlement *Settlement) error
	Get(ctx context.Context, id string) (*Settlement, error)
	GetByAccount(ctx context.Context, accountID AccountID) ([]*Settlement, error)
	Close()
}
