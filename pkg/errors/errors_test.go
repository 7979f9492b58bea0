package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// generateErrorFixtures creates test fixtures with sample metadata for each error type
func generateErrorFixtures() []Error {
	return []Error{
		INTERNAL_ERROR.New("internal error occurred").
			WithMetadata(map[string]any{
				"component": "database",
				"operation": "save",
			}),

		TRANSIENT_LEDGER.New("ledger unreachable").
			WithMetadata(LedgerCallMetadata{
				Account:   "0x5b38da6a701c568545dcfcb03fcb875f56beddc4",
				Method:    "getUpline",
				Endpoint:  "http://localhost:8545",
				Attempts:  5,
				LastError: "connection refused",
			}),

		PLACEMENT_CONFLICT.New("slot already taken").
			WithMetadata(PlacementConflictMetadata{
				Parent:      "0xab8483f64d9c6d1ecf9b849ae677dd3315835cb2",
				Side:        "left",
				Winner:      "0x4b20993bc481177ec7e8f571cecae8a9e22c02db",
				Loser:       "0x78731d3ca6b7e34ac0f824c42a7cc18a495cabab",
				WinnerBlock: 5,
				LoserBlock:  9,
			}),

		AMBIGUOUS_SETTLEMENT.New("nonce too low").
			WithMetadata(SettlementMetadata{
				Account:      "0x5b38da6a701c568545dcfcb03fcb875f56beddc4",
				SettlementID: "0222bfa8-c753-4b41-a5f9-d4e12d726413",
				Amount:       "50",
			}),

		SETTLEMENT_FAILURE.New("execution reverted").
			WithMetadata(SettlementMetadata{
				Account:      "0x5b38da6a701c568545dcfcb03fcb875f56beddc4",
				SettlementID: "2a4d69f3-ce1b-40b3-a48d-fb61ec21b15f",
				Amount:       "50",
				TxRef:        "0x9b7bb827c2e5e3c1a0a44dc53e573aa0b3af3bd1f9f5ed03071b100bb039eaff",
			}),

		FATAL_CONFIG.New("invalid contract address").
			WithMetadata(ConfigMetadata{Field: "contract-address"}),

		ACCOUNT_NOT_FOUND.New("account not found").
			WithMetadata(AccountMetadata{Account: "0x5b38da6a701c568545dcfcb03fcb875f56beddc4"}),

		CLAIM_IN_PROGRESS.New("claim already in progress").
			WithMetadata(AccountMetadata{Account: "0x5b38da6a701c568545dcfcb03fcb875f56beddc4"}),

		CLAIM_COOLDOWN.New("claim cooldown not elapsed").
			WithMetadata(CooldownMetadata{
				Account:     "0x5b38da6a701c568545dcfcb03fcb875f56beddc4",
				LastClaimAt: 1640995200,
				NextClaimAt: 1641081600,
			}),

		SWEEP_IN_PROGRESS.New("sweep already running").WithMetadata(any("generation 12")),

		INVALID_ARGUMENT.New("invalid side").
			WithMetadata(map[string]any{"side": "middle"}),

		WALK_TOO_DEEP.New("max walk depth exceeded").
			WithMetadata(AccountMetadata{Account: "0x5b38da6a701c568545dcfcb03fcb875f56beddc4"}),
	}
}

func TestErrorFixtures(t *testing.T) {
	fixtures := generateErrorFixtures()

	codes := make(map[uint16]struct{})
	for _, err := range fixtures {
		require.NotNil(t, err)
		require.NotEmpty(t, err.Error())
		require.NotEmpty(t, err.CodeName())
		require.NotNil(t, err.Log())

		_, dup := codes[err.Code()]
		require.False(t, dup, "duplicated code %d", err.Code())
		codes[err.Code()] = struct{}{}
	}
}

func TestErrorMetadata(t *testing.T) {
	err := TRANSIENT_LEDGER.New("ledger unreachable").
		WithMetadata(LedgerCallMetadata{Method: "getAccount", Attempts: 3})

	metadata := err.Metadata()
	require.Equal(t, "getAccount", metadata["method"])
	require.Equal(t, "3", metadata["attempts"])
	_, ok := metadata["account"]
	require.False(t, ok)
	require.True(t, err.IsTransient())
	require.False(t, FATAL_CONFIG.New("bad").IsTransient())
}

func TestCodeIs(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("failed to sync account: %w", TRANSIENT_LEDGER.Wrap(cause))

	require.True(t, TRANSIENT_LEDGER.Is(err))
	require.False(t, SETTLEMENT_FAILURE.Is(err))
	require.ErrorIs(t, err, cause)
	require.False(t, TRANSIENT_LEDGER.Is(cause))
	require.Contains(t, err.Error(), "TRANSIENT_LEDGER (1)")
}
