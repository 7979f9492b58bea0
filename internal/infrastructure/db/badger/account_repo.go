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

const accountStoreDir = "accounts"

type legDTO struct {
	TotalPoints   string
	ClaimedPoints string
	ExtraPoints   string
	PersonCount   uint64
}

type depositDTO struct {
	StartedAt    int64
	Value        string
	PayoutFactor string
	Withdrawn    string
	Leader       bool
	ExpiresAt    int64
}

type accountDTO struct {
	ID                   string `badgerhold:"key"`
	Registered           bool
	InvestedAmount       string
	LeaderInvestedAmount string
	BlockID              uint64
	Referrer             string
	Side                 uint8
	Parent               string
	ParentSide           uint8
	LeftChild            string
	RightChild           string
	Left                 legDTO
	Right                legDTO
	ActivePoints         string
	RetirableAccumulated string
	LastClaimAt          int64
	Deposits             []depositDTO
	OrphanCandidate      bool `badgerholdIndex:"OrphanCandidate"`
	LedgerSyncedAt       int64
	UpdatedAt            int64
}

type accountRepository struct {
	store *badgerhold.Store
}

func NewAccountRepository(config ...interface{}) (domain.AccountRepository, error) {
	baseDir, logger, err := parseConfig(config...)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, accountStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open account store: %s", err)
	}

	return &accountRepository{store}, nil
}

func (r *accountRepository) Get(ctx context.Context, id domain.AccountID) (*domain.Account, error) {
	var dto accountDTO
	if err := r.store.Get(id.String(), &dto); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return dto.toDomain(), nil
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

	var err error
	for range maxRetries {
		err = func() error {
			tx := r.store.Badger().NewTransaction(true)
			defer tx.Discard()

			now := time.Now()
			for _, account := range accounts {
				account.UpdatedAt = now
				dto := toAccountDTO(account)
				if err := r.store.TxUpsert(tx, dto.ID, dto); err != nil {
					return err
				}
			}
			return tx.Commit()
		}()
		if err == nil {
			return nil
		}
		if errors.Is(err, badger.ErrConflict) {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		return err
	}
	return err
}

func (r *accountRepository) ListIDsByBlockDesc(ctx context.Context) ([]domain.AccountID, error) {
	var dtos []accountDTO
	query := (&badgerhold.Query{}).SortBy("BlockID", "ID").Reverse()
	if err := r.store.Find(&dtos, query); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return nil, err
	}

	ids := make([]domain.AccountID, 0, len(dtos))
	for _, dto := range dtos {
		ids = append(ids, domain.AccountID(dto.ID))
	}
	return ids, nil
}

func (r *accountRepository) ListOrphanCandidates(ctx context.Context) ([]*domain.Account, error) {
	var dtos []accountDTO
	query := badgerhold.Where("OrphanCandidate").Eq(true).Index("OrphanCandidate")
	if err := r.store.Find(&dtos, query); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return nil, err
	}

	accounts := make([]*domain.Account, 0, len(dtos))
	for _, dto := range dtos {
		accounts = append(accounts, dto.toDomain())
	}
	return accounts, nil
}

func (r *accountRepository) Close() {
	// nolint:all
	r.store.Close()
}

func toAccountDTO(a *domain.Account) accountDTO {
	deposits := make([]depositDTO, 0, len(a.Deposits))
	for _, d := range a.Deposits {
		deposits = append(deposits, depositDTO{
			StartedAt:    unixOrZero(d.StartedAt),
			Value:        d.Value.String(),
			PayoutFactor: d.PayoutFactor.String(),
			Withdrawn:    d.Withdrawn.String(),
			Leader:       d.Leader,
			ExpiresAt:    unixOrZero(d.ExpiresAt),
		})
	}
	return accountDTO{
		ID:                   a.ID.String(),
		Registered:           a.Registered,
		InvestedAmount:       a.InvestedAmount.String(),
		LeaderInvestedAmount: a.LeaderInvestedAmount.String(),
		BlockID:              a.BlockID,
		Referrer:             a.Referrer.String(),
		Side:                 uint8(a.Side),
		Parent:               a.Parent.String(),
		ParentSide:           uint8(a.ParentSide),
		LeftChild:            a.LeftChild.String(),
		RightChild:           a.RightChild.String(),
		Left:                 toLegDTO(a.Left),
		Right:                toLegDTO(a.Right),
		ActivePoints:         a.ActivePoints.String(),
		RetirableAccumulated: a.RetirableAccumulated.String(),
		LastClaimAt:          unixOrZero(a.LastClaimAt),
		Deposits:             deposits,
		OrphanCandidate:      a.OrphanCandidate,
		LedgerSyncedAt:       unixOrZero(a.LedgerSyncedAt),
		UpdatedAt:            unixOrZero(a.UpdatedAt),
	}
}

func toLegDTO(l domain.Leg) legDTO {
	return legDTO{
		TotalPoints:   l.TotalPoints.Value().String(),
		ClaimedPoints: l.ClaimedPoints.String(),
		ExtraPoints:   l.ExtraPoints.String(),
		PersonCount:   l.PersonCount.Value(),
	}
}

func (l legDTO) toDomain() domain.Leg {
	return domain.Leg{
		TotalPoints:   domain.RestoreWatermark(parseDecimal(l.TotalPoints)),
		ClaimedPoints: parseDecimal(l.ClaimedPoints),
		ExtraPoints:   parseDecimal(l.ExtraPoints),
		PersonCount:   domain.RestoreCountWatermark(l.PersonCount),
	}
}

func (dto accountDTO) toDomain() *domain.Account {
	var deposits []domain.Deposit
	if len(dto.Deposits) > 0 {
		deposits = make([]domain.Deposit, 0, len(dto.Deposits))
		for _, d := range dto.Deposits {
			deposits = append(deposits, domain.Deposit{
				StartedAt:    timeOrZero(d.StartedAt),
				Value:        parseDecimal(d.Value),
				PayoutFactor: parseDecimal(d.PayoutFactor),
				Withdrawn:    parseDecimal(d.Withdrawn),
				Leader:       d.Leader,
				ExpiresAt:    timeOrZero(d.ExpiresAt),
			})
		}
	}
	return &domain.Account{
		ID:                   domain.AccountID(dto.ID),
		Registered:           dto.Registered,
		InvestedAmount:       parseDecimal(dto.InvestedAmount),
		LeaderInvestedAmount: parseDecimal(dto.LeaderInvestedAmount),
		BlockID:              dto.BlockID,
		Referrer:             domain.AccountID(dto.Referrer),
		Side:                 domain.Side(dto.Side),
		Parent:               domain.AccountID(dto.Parent),
		ParentSide:           domain.Side(dto.ParentSide),
		LeftChild:            domain.AccountID(dto.LeftChild),
		RightChild:           domain.AccountID(dto.RightChild),
		Left:                 dto.Left.toDomain(),
		Right:                dto.Right.toDomain(),
		ActivePoints:         parseDecimal(dto.ActivePoints),
		RetirableAccumulated: parseDecimal(dto.RetirableAccumulated),
		LastClaimAt:          timeOrZero(dto.LastClaimAt),
		Deposits:             deposits,
		OrphanCandidate:      dto.OrphanCandidate,
		LedgerSyncedAt:       timeOrZero(dto.LedgerSyncedAt),
		UpdatedAt:            timeOrZero(dto.UpdatedAt),
	}
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func timeOrZero(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
