package main

import (
	"testing"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestParseAccount(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		id, err := parseAccount("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4")
		require.NoError(t, err)
		require.Equal(t, domain.AccountID("0x5b38da6a701c568545dcfcb03fcb875f56beddc4"), id)
	})

	t.Run("invalid", func(t *testing.T) {
		fixtures := []string{
			"",
			"0x123",
			"5b38da6a701c568545dcfcb03fcb875f56beddc4zz",
			"0x0000000000000000000000000000000000000000",
		}
		for _, address := range fixtures {
			_, err := parseAccount(address)
			require.Error(t, err, address)
		}
	})
}
