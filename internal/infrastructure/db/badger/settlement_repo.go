package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const settlementStoreDir = "settlements"

type settlementDTO struct {
	ID                 string `badgerhold:"key"`
	AccountID          string `badgerholdIndex:"AccountID"`
	Amount             string
	MatchedPoints      string
	ClaimedPointsSoFar string
	Discount           string
	State              uint8
	TxRef              string
	FailReason         string
	CreatedAt          int64
	UpdatedAt          int64
}

type settlementRepository struct {
	store *badgerhold.Store
}

func NewSettlementRepository(config ...interface{}) (domain.SettlementRepository, error) {
	baseDir, logger, err := parseConfig(config...)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, settlementStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open settlement store: %s", err)
	}

	return &settlementRepository{store}, nil
}

func (r *settlementRepository) Add(ctx context.Context, settlement *domain.Settlement) error {
	dto := toSettlementDTO(settlement)
	return r.withRetry(func() error {
		return r.store.Insert(dto.ID, dto)
	})
}

func (r *settlementRepository) Update(ctx context.Context, settlement *domain.Settlement) error {
	dto := toSettlementDTO(settlement)
	return r.withRetry(func() error {
		return r.store.Update(dto.ID, dto)
	})
}

func (r *settlementRepository) Get(ctx context.Context, id string) (*domain.Settlement, error) {
	var dto settlementDTO
	if err := r.store.Get(id, &dto); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("settlement %s not found", id)
		}
		return nil, err
	}
	return dto.toDomain(), nil
}

func (r *settlementRepository) GetByAccount(
	ctx context.Context, accountID domain.AccountID,
) ([]*domain.Settlement, error) {
	var dtos []settlementDTO
	query := badgerhold.Where("AccountID").Eq(accountID.String()).
		Index("AccountID").SortBy("CreatedAt")
	if err := r.store.Find(&dtos, query); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return nil, err
	}

	settlements := make([]*domain.Settlement, 0, len(dtos))
	for _, dto := range dtos {
		settlements = append(settlements, dto.toDomain())
	}
	return settlements, nil
}

func (r *settlementRepository) Close() {
	// nolint:all
	r.store.Close()
}

func (r *settlementRepository) withRetry(fn func() error) error {
	err := fn()
	attempts := 1
	for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
		time.Sleep(100 * time.Millisecond)
		err = fn()
		attempts++
	}
	return err
}

func toSettlementDTO(s *domain.Settlement) settlementDTO {
	return settlementDTO{
		ID:                 s.ID,
		AccountID:          s.AccountID.String(),
		Amount:             s.Amount.String(),
		MatchedPoints:      s.MatchedPoints.String(),
		ClaimedPointsSoFar: s.ClaimedPointsSoFar.String(),
		Discount:           s.Discount.String(),
		State:              uint8(s.State),
		TxRef:              s.TxRef,
		FailReason:         s.FailReason,
		CreatedAt:          unixOrZero(s.CreatedAt),
		UpdatedAt:          unixOrZero(s.UpdatedAt),
	}
}

func (dto settlementDTO) toDomain() *domain.Settlement {
	return &domain.Settlement{
		ID:                 dto.ID,
		AccountID:          domain.AccountID(dto.AccountID),
		Amount:             parseDecimal(dto.Amount),
		MatchedPoints:      parseDecimal(dto.MatchedPoints),
		ClaimedPointsSoFar: parseDecimal(dto.ClaimedPointsSoFar),
		Discount:           parseDecimal(dto.Discount),
		State:              domain.ClaimState(dto.State),
		TxRef:              dto.TxRef,
		FailReason:         dto.FailReason,
		CreatedAt:          timeOrZero(dto.CreatedAt),
		UpdatedAt:          timeOrZero(dto.UpdatedAt),
	}
}
