package application

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/binaryplan/binaryd/internal/core/domain"
)

// workingSet caches the accounts read during one unit of work and saves the
// modified ones in a single repository write.
type workingSet struct {
	ctx      context.Context
	repo     domain.AccountRepository
	accounts map[domain.AccountID]*domain.Account
	dirty    map[domain.AccountID]struct{}
	newCount int
}

func newWorkingSet(ctx context.Context, repo domain.AccountRepository) *workingSet {
	return &workingSet{
		ctx:      ctx,
		repo:     repo,
		accounts: make(map[domain.AccountID]*domain.Account),
		dirty:    make(map[domain.AccountID]struct{}),
	}
}

// get returns nil without error if the account is unknown.
func (w *workingSet) get(id domain.AccountID) (*domain.Account, error) {
	if id.IsZero() {
		return nil, nil
	}
	if account, ok := w.accounts[id]; ok {
		return account, nil
	}

	account, err := w.repo.Get(w.ctx, id)
	if err != nil {
		if stderrors.Is(err, domain.ErrAccountNotFound) {
			return nil, nil
		}
		return nil, err
	}
	w.accounts[id] = account
	return account, nil
}

func (w *workingSet) getOrCreate(id domain.AccountID) (*domain.Account, error) {
	account, err := w.get(id)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	account = domain.NewAccount(id)
	w.accounts[id] = account
	w.newCount++
	w.markDirty(account)
	return account, nil
}

func (w *workingSet) markDirty(accounts ...*domain.Account) {
	for _, account := range accounts {
		if account != nil {
			w.dirty[account.ID] = struct{}{}
		}
	}
}

func (w *workingSet) created() int {
	return w.newCount
}

func (w *workingSet) commit() error {
	if len(w.dirty) <= 0 {
		return nil
	}

	now := time.Now()
	accounts := make([]*domain.Account, 0, len(w.dirty))
	for id := range w.dirty {
		account := w.accounts[id]
		account.UpdatedAt = now
		accounts = append(accounts, account)
	}
	if err := w.repo.Save(w.ctx, accounts...); err != nil {
		return err
	}
	w.dirty = make(map[domain.AccountID]struct{})
	return nil
}
