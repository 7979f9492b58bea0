package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/internal/infrastructure/db/dbutil"
	"github.com/binaryplan/binaryd/internal/infrastructure/db/postgres/sqlc/queries"
)

type settlementRepository struct {
	db      *sql.DB
	querier *queries.Queries
}

func NewSettlementRepository(config ...interface{}) (domain.SettlementRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf(
			"cannot open settlement repository: invalid config, expected db at 0",
		)
	}

	return &settlementRepository{
		db:      db,
		querier: queries.New(db),
	}, nil
}

func (r *settlementRepository) Add(ctx context.Context, settlement *domain.Settlement) error {
	row := dbutil.ToSettlementRow(settlement)
	return dbutil.ExecTx(ctx, r.db, func(tx *sql.Tx) error {
		return r.querier.WithTx(tx).InsertSettlement(ctx, queries.InsertSettlementParams(row))
	})
}

func (r *settlementRepository) Update(ctx context.Context, settlement *domain.Settlement) error {
	return dbutil.ExecTx(ctx, r.db, func(tx *sql.Tx) error {
		updated, err := r.querier.WithTx(tx).UpdateSettlement(
			ctx, queries.UpdateSettlementParams{
				State:      int64(settlement.State),
				TxRef:      settlement.TxRef,
				FailReason: settlement.FailReason,
				UpdatedAt:  dbutil.UnixMilli(settlement.UpdatedAt),
				ID:         settlement.ID,
			},
		)
		if err != nil {
			return err
		}
		if updated == 0 {
			return fmt.Errorf("settlement %s not found", settlement.ID)
		}
		return nil
	})
}

func (r *settlementRepository) Get(ctx context.Context, id string) (*domain.Settlement, error) {
	row, err := r.querier.SelectSettlement(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("settlement %s not found", id)
		}
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return dbutil.SettlementRow(row).ToDomain()
}

func (r *settlementRepository) GetByAccount(
	ctx context.Context, accountID domain.AccountID,
) ([]*domain.Settlement, error) {
	rows, err := r.querier.SelectSettlementsByAccount(ctx, accountID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}

	settlements := make([]*domain.Settlement, 0, len(rows))
	for _, row := range rows {
		settlement, err := dbutil.SettlementRow(row).ToDomain()
		if err != nil {
			return nil, err
		}
		settlements = append(settlements, settlement)
	}
	return settlements, nil
}

func (r *settlementRepository) Close() {
	// nolint:all
	r.db.Close()
}
