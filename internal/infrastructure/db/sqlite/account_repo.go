package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/internal/infrastructure/db/dbutil"
	"github.com/binaryplan/binaryd/internal/infrastructure/db/sqlite/sqlc/queries"
)

type accountRepository struct {
	db      *sql.DB
	querier *queries.Queries
}

func NewAccountRepository(config ...interface{}) (domain.AccountRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open account repository: invalid config, expected db at 0")
	}

	return &accountRepository{
		db:      db,
		querier: queries.New(db),
	}, nil
}

func (r *accountRepository) Get(ctx context.Context, id domain.AccountID) (*domain.Account, error) {
	row, err := r.querier.SelectAccount(ctx, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return dbutil.AccountRow(row).ToDomain()
}

func (r *accountRepository) GetMany(
	ctx context.Context, ids []domain.AccountID,
) ([]*domain.Account, error) {
	accounts := make([]*domain.Account, 0, len(ids))
	for _, id := range ids {
		account, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				continue
			}
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (r *accountRepository) Save(ctx context.Context, accounts ...*domain.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	now := time.Now()
	params := make([]queries.UpsertAccountParams, 0, len(accounts))
	for _, account := range accounts {
		account.UpdatedAt = now
		row, err := dbutil.ToAccountRow(account)
		if err != nil {
			return err
		}
		params = append(params, queries.UpsertAccountParams(row))
	}

	return dbutil.ExecTx(ctx, r.db, func(tx *sql.Tx) error {
		querierWithTx := r.querier.WithTx(tx)
		for _, p := range params {
			if err := querierWithTx.UpsertAccount(ctx, p); err != nil {
				return fmt.Errorf("failed to upsert account %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

func (r *accountRepository) ListIDsByBlockDesc(ctx context.Context) ([]domain.AccountID, error) {
	rows, err := r.querier.SelectAccountIDsByBlockDesc(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	ids := make([]domain.AccountID, 0, len(rows))
	for _, id := range rows {
		ids = append(ids, domain.AccountID(id))
	}
	return ids, nil
}

func (r *accountRepository) ListOrphanCandidates(ctx context.Context) ([]*domain.Account, error) {
	rows, err := r.querier.SelectOrphanCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphan candidates: %w", err)
	}

	accounts := make([]*domain.Account, 0, len(rows))
	for _, row := range rows {
		account, err := dbutil.AccountRow(row).ToDomain()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (r *accountRepository) Close() {
	// nolint:all
	r.db.Close()
}
