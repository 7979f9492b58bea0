package dbutil_test

import (
	"testing"
	"time"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/internal/infrastructure/db/dbutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAccountRow(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		account := domain.NewAccount("0x5b38da6a701c568545dcfcb03fcb875f56beddc4")
		account.BlockID = 7
		account.Left.TotalPoints = domain.RestoreWatermark(decimal.RequireFromString("800.5"))
		account.Left.PersonCount = domain.RestoreCountWatermark(3)
		account.Deposits = []domain.Deposit{{
			StartedAt:    time.UnixMilli(1749818000000),
			Value:        decimal.NewFromInt(100),
			PayoutFactor: decimal.NewFromInt(2),
			Withdrawn:    decimal.Zero,
			ExpiresAt:    time.UnixMilli(1775738000000),
		}}

		row, err := dbutil.ToAccountRow(account)
		require.NoError(t, err)
		require.Equal(t, "800.5", row.LeftTotal)
		require.Equal(t, int64(3), row.LeftPersons)
		require.Zero(t, row.LastClaimAt)

		got, err := row.ToDomain()
		require.NoError(t, err)
		require.Equal(t, account.ID, got.ID)
		require.Equal(t, uint64(7), got.BlockID)
		require.True(t, got.Left.TotalPoints.Value().Equal(decimal.RequireFromString("800.5")))
		require.Len(t, got.Deposits, 1)
		require.True(t, got.Deposits[0].Equal(account.Deposits[0]))
		require.True(t, got.LastClaimAt.IsZero())
	})

	t.Run("invalid", func(t *testing.T) {
		fixtures := []dbutil.AccountRow{
			{ID: "0x01", InvestedAmount: "not a number"},
			{
				ID: "0x02", InvestedAmount: "0", LeaderInvestedAmount: "0",
				LeftTotal: "0", LeftClaimed: "0", LeftExtra: "0",
				RightTotal: "0", RightClaimed: "0", RightExtra: "0",
				ActivePoints: "0", RetirableAccumulated: "0",
				Deposits: "{",
			},
		}
		for _, row := range fixtures {
			_, err := row.ToDomain()
			require.Error(t, err, row.ID)
		}
	})
}

func TestSettlementRow(t *testing.T) {
	_, err := dbutil.SettlementRow{ID: "s1", Amount: "", MatchedPoints: "1"}.ToDomain()
	require.Error(t, err)
}
