package db_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/internal/core/ports"
	"github.com/binaryplan/binaryd/internal/infrastructure/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	alice = domain.AccountID("0x5b38da6a701c568545dcfcb03fcb875f56beddc4")
	bob   = domain.AccountID("0xab8483f64d9c6d1ecf9b849ae677dd3315835cb2")
	carol = domain.AccountID("0x4b20993bc481177ec7e8f571cecae8a9e22c02db")
	dave  = domain.AccountID("0x78731d3ca6b7e34ac0f824c42a7cc18a495cabab")
)

func TestService(t *testing.T) {
	tests := []struct {
		name   string
		config db.ServiceConfig
	}{
		{
			name: "repo_manager_with_badger_stores",
			config: db.ServiceConfig{
				DataStoreType:   "badger",
				DataStoreConfig: []interface{}{"", nil},
			},
		},
		{
			name: "repo_manager_with_sqlite_stores",
			config: db.ServiceConfig{
				DataStoreType:   "sqlite",
				DataStoreConfig: []interface{}{t.TempDir()},
			},
		},
	}

	if pgDsn := os.Getenv("BINARYD_TEST_POSTGRES_DSN"); pgDsn != "" {
		tests = append(tests, struct {
			name   string
			config db.ServiceConfig
		}{
			name: "repo_manager_with_postgres_stores",
			config: db.ServiceConfig{
				DataStoreType:   "postgres",
				DataStoreConfig: []interface{}{pgDsn, true},
			},
		})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := db.NewService(tt.config)
			require.NoError(t, err)
			require.NotNil(t, svc)

			testAccountRepository(t, svc)
			testSettlementRepository(t, svc)

			svc.Close()
		})
	}
}

func TestNewServiceInvalidType(t *testing.T) {
	_, err := db.NewService(db.ServiceConfig{DataStoreType: "mongo"})
	require.Error(t, err)
}

func testAccountRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("test_account_repository", func(t *testing.T) {
		ctx := context.Background()
		repo := svc.Accounts()

		_, err := repo.Get(ctx, alice)
		require.ErrorIs(t, err, domain.ErrAccountNotFound)

		ids, err := repo.ListIDsByBlockDesc(ctx)
		require.NoError(t, err)
		require.Empty(t, ids)

		root := domain.NewAccount(alice)
		root.Registered = true
		root.BlockID = 1
		root.InvestedAmount = decimal.RequireFromString("1000.5")
		root.LeftChild = bob
		root.RightChild = carol
		root.Left.TotalPoints.Merge(decimal.NewFromInt(800))
		root.Right.TotalPoints.Merge(decimal.NewFromInt(500))
		root.Left.ClaimedPoints = decimal.NewFromInt(100)
		root.Right.ExtraPoints = decimal.NewFromInt(7)
		root.Left.PersonCount.Merge(3)
		root.Right.PersonCount.Merge(1)
		root.RefreshActivePoints()
		root.LastClaimAt = time.UnixMilli(1749818677000)
		root.Deposits = []domain.Deposit{
			{
				StartedAt:    time.UnixMilli(1749818000000),
				Value:        decimal.RequireFromString("1000.5"),
				PayoutFactor: decimal.NewFromInt(2),
				Withdrawn:    decimal.Zero,
				ExpiresAt:    time.UnixMilli(1781354000000),
			},
		}

		left := domain.NewAccount(bob)
		left.Registered = true
		left.BlockID = 5
		left.Referrer = alice
		left.Parent = alice
		left.ParentSide = domain.SideLeft

		right := domain.NewAccount(carol)
		right.Registered = true
		right.BlockID = 9
		right.Referrer = alice
		right.Side = domain.SideRight
		right.Parent = alice
		right.ParentSide = domain.SideRight

		orphan := domain.NewAccount(dave)
		orphan.OrphanCandidate = true

		err = repo.Save(ctx, root, left, right, orphan)
		require.NoError(t, err)

		got, err := repo.Get(ctx, alice)
		require.NoError(t, err)
		require.Equal(t, alice, got.ID)
		require.True(t, got.Registered)
		require.Equal(t, uint64(1), got.BlockID)
		require.True(t, got.InvestedAmount.Equal(root.InvestedAmount))
		require.Equal(t, bob, got.LeftChild)
		require.Equal(t, carol, got.RightChild)
		require.True(t, got.Left.TotalPoints.Value().Equal(decimal.NewFromInt(800)))
		require.True(t, got.Right.TotalPoints.Value().Equal(decimal.NewFromInt(500)))
		require.True(t, got.Left.ClaimedPoints.Equal(decimal.NewFromInt(100)))
		require.True(t, got.Right.ExtraPoints.Equal(decimal.NewFromInt(7)))
		require.Equal(t, uint64(3), got.Left.PersonCount.Value())
		require.True(t, got.ActivePoints.Equal(decimal.NewFromInt(507)))
		require.Equal(t, root.LastClaimAt.UnixMilli(), got.LastClaimAt.UnixMilli())
		require.Len(t, got.Deposits, 1)
		require.True(t, got.Deposits[0].Value.Equal(root.Deposits[0].Value))
		require.Equal(t, root.Deposits[0].ExpiresAt.UnixMilli(), got.Deposits[0].ExpiresAt.UnixMilli())
		require.False(t, got.UpdatedAt.IsZero())

		got, err = repo.Get(ctx, carol)
		require.NoError(t, err)
		require.Equal(t, domain.SideRight, got.ParentSide)
		require.Equal(t, domain.SideRight, got.Side)
		require.Equal(t, alice, got.Parent)

		accounts, err := repo.GetMany(ctx, []domain.AccountID{alice, "0xunknown", bob})
		require.NoError(t, err)
		require.Len(t, accounts, 2)

		ids, err = repo.ListIDsByBlockDesc(ctx)
		require.NoError(t, err)
		require.Equal(t, []domain.AccountID{carol, bob, alice, dave}, ids)

		orphans, err := repo.ListOrphanCandidates(ctx)
		require.NoError(t, err)
		require.Len(t, orphans, 1)
		require.Equal(t, dave, orphans[0].ID)

		left.Parent = domain.NoAccount
		root.LeftChild = domain.NoAccount
		err = repo.Save(ctx, root, left)
		require.NoError(t, err)

		got, err = repo.Get(ctx, bob)
		require.NoError(t, err)
		require.False(t, got.HasParent())
		got, err = repo.Get(ctx, alice)
		require.NoError(t, err)
		require.True(t, got.LeftChild.IsZero())
	})
}

func testSettlementRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("test_settlement_repository", func(t *testing.T) {
		ctx := context.Background()
		repo := svc.Settlements()

		settlements, err := repo.GetByAccount(ctx, alice)
		require.NoError(t, err)
		require.Empty(t, settlements)

		first := domain.NewSettlement(
			alice, decimal.NewFromInt(50), decimal.NewFromInt(500),
			decimal.NewFromInt(1000), decimal.Zero,
		)
		require.NoError(t, first.Transition(domain.ClaimStateSubmitting))
		err = repo.Add(ctx, first)
		require.NoError(t, err)

		first.TxRef = "0x9b7bb827c2e5e3c1a0a44dc53e573aa0b3af3bd1f9f5ed03071b100bb039eaff"
		require.NoError(t, first.Transition(domain.ClaimStateSettled))
		err = repo.Update(ctx, first)
		require.NoError(t, err)

		second := domain.NewSettlement(
			alice, decimal.NewFromInt(10), decimal.NewFromInt(100),
			decimal.NewFromInt(1200), decimal.NewFromInt(1),
		)
		second.CreatedAt = first.CreatedAt.Add(time.Second)
		require.NoError(t, second.Transition(domain.ClaimStateSubmitting))
		require.NoError(t, second.Fail("execution reverted"))
		err = repo.Add(ctx, second)
		require.NoError(t, err)

		got, err := repo.Get(ctx, first.ID)
		require.NoError(t, err)
		require.Equal(t, domain.ClaimStateSettled, got.State)
		require.Equal(t, first.TxRef, got.TxRef)
		require.True(t, got.Amount.Equal(decimal.NewFromInt(50)))
		require.True(t, got.MatchedPoints.Equal(decimal.NewFromInt(500)))

		settlements, err = repo.GetByAccount(ctx, alice)
		require.NoError(t, err)
		require.Len(t, settlements, 2)
		require.Equal(t, first.ID, settlements[0].ID)
		require.Equal(t, domain.ClaimStateFailed, settlements[1].State)
		require.Equal(t, "execution reverted", settlements[1].FailReason)

		_, err = repo.Get(ctx, "missing")
		require.Error(t, err)
	})
}
