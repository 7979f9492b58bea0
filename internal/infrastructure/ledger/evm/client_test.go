package evmledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/internal/core/ports"
	"github.com/binaryplan/binaryd/pkg/errors"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	contractAddress = "0xd9145CCE52D386f254917e481eB44e9943F39138"
	alice           = domain.AccountID("0x5b38da6a701c568545dcfcb03fcb875f56beddc4")
)

func TestGetAccount(t *testing.T) {
	backend := newFakeBackend(t)
	backend.results[methodGetAccount] = []interface{}{
		true,
		new(big.Int).Mul(big.NewInt(15), big.NewInt(1e17)),
		big.NewInt(0),
		big.NewInt(42),
	}
	client := newTestClient(t, map[string]*fakeBackend{"node-a": backend})

	account, err := client.GetAccount(t.Context(), alice)
	require.NoError(t, err)
	require.True(t, account.Registered)
	require.True(t, account.InvestedAmount.Equal(decimal.RequireFromString("1.5")))
	require.True(t, account.LeaderInvestedAmount.IsZero())
	require.Equal(t, uint64(42), account.BlockID)
}

func TestGetUpline(t *testing.T) {
	t.Run("no referrer", func(t *testing.T) {
		backend := newFakeBackend(t)
		backend.results[methodGetUpline] = []interface{}{common.Address{}, uint8(0)}
		client := newTestClient(t, map[string]*fakeBackend{"node-a": backend})

		upline, err := client.GetUpline(t.Context(), alice)
		require.NoError(t, err)
		require.True(t, upline.Referrer.IsZero())
		require.Equal(t, domain.SideLeft, upline.Side)
	})

	t.Run("right side", func(t *testing.T) {
		referrer := common.HexToAddress("0xAb8483F64d9C6d1EcF9b849Ae677dD3315835cb2")
		backend := newFakeBackend(t)
		backend.results[methodGetUpline] = []interface{}{referrer, uint8(1)}
		client := newTestClient(t, map[string]*fakeBackend{"node-a": backend})

		upline, err := client.GetUpline(t.Context(), alice)
		require.NoError(t, err)
		require.Equal(
			t, domain.AccountID("0xab8483f64d9c6d1ecf9b849ae677dd3315835cb2"), upline.Referrer,
		)
		require.Equal(t, domain.SideRight, upline.Side)
	})
}

func TestGetDeposits(t *testing.T) {
	backend := newFakeBackend(t)
	backend.results[methodGetDeposits] = []interface{}{
		[]depositTuple{
			{
				StartedAt:    big.NewInt(1749818000),
				Value:        big.NewInt(2e18),
				PayoutFactor: big.NewInt(3),
				Withdrawn:    big.NewInt(5e17),
				Leader:       true,
			},
		},
	}
	client := newTestClient(t, map[string]*fakeBackend{"node-a": backend})

	deposits, err := client.GetDeposits(t.Context(), alice)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	require.Equal(t, int64(1749818000), deposits[0].StartedAt.Unix())
	require.True(t, deposits[0].Value.Equal(decimal.NewFromInt(2)))
	require.True(t, deposits[0].PayoutFactor.Equal(decimal.NewFromInt(3)))
	require.True(t, deposits[0].Withdrawn.Equal(decimal.RequireFromString("0.5")))
	require.True(t, deposits[0].Leader)
}

func TestPlanDurationAndWithdrawable(t *testing.T) {
	backend := newFakeBackend(t)
	backend.results[methodPlanDuration] = []interface{}{big.NewInt(86400 * 300)}
	backend.results[methodWithdrawable] = []interface{}{big.NewInt(25e16)}
	backend.height = 1234
	client := newTestClient(t, map[string]*fakeBackend{"node-a": backend})

	duration, err := client.GetPlanDurationSeconds(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(86400*300), duration)

	balance, err := client.GetWithdrawableBalance(t.Context(), alice)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.RequireFromString("0.25")))

	height, err := client.CurrentBlock(t.Context())
	require.NoError(t, err)
	require.Equal(t, uint64(1234), height)
}

func TestReadRetries(t *testing.T) {
	t.Run("rotates endpoint on failure", func(t *testing.T) {
		failing := newFakeBackend(t)
		failing.callErr = fmt.Errorf("connection refused")
		healthy := newFakeBackend(t)
		healthy.results[methodWithdrawable] = []interface{}{big.NewInt(1e18)}
		client := newTestClient(t, map[string]*fakeBackend{
			"node-a": failing, "node-b": healthy,
		})

		balance, err := client.GetWithdrawableBalance(t.Context(), alice)
		require.NoError(t, err)
		require.True(t, balance.Equal(decimal.NewFromInt(1)))
		require.Equal(t, int32(1), failing.calls.Load())
		require.Equal(t, int32(1), healthy.calls.Load())

		_, err = client.GetWithdrawableBalance(t.Context(), alice)
		require.NoError(t, err)
		require.Equal(t, int32(1), failing.calls.Load())
		require.Equal(t, int32(2), healthy.calls.Load())
	})

	t.Run("rotates endpoint on dial failure", func(t *testing.T) {
		healthy := newFakeBackend(t)
		healthy.results[methodWithdrawable] = []interface{}{big.NewInt(0)}
		client := newTestClient(t, map[string]*fakeBackend{
			"node-a": nil, "node-b": healthy,
		})

		_, err := client.GetWithdrawableBalance(t.Context(), alice)
		require.NoError(t, err)
		require.Equal(t, int32(1), healthy.calls.Load())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		failing := newFakeBackend(t)
		failing.callErr = fmt.Errorf("i/o timeout")
		client := newTestClient(t, map[string]*fakeBackend{"node-a": failing})

		_, err := client.GetAccount(t.Context(), alice)
		require.Error(t, err)
		require.True(t, errors.TRANSIENT_LEDGER.Is(err))
		require.Equal(t, int32(testMaxRetries+1), failing.calls.Load())
	})

	t.Run("does not retry reverts", func(t *testing.T) {
		failing := newFakeBackend(t)
		failing.callErr = fmt.Errorf("execution reverted: unknown user")
		client := newTestClient(t, map[string]*fakeBackend{"node-a": failing})

		_, err := client.GetAccount(t.Context(), alice)
		require.Error(t, err)
		require.True(t, errors.TRANSIENT_LEDGER.Is(err))
		require.Equal(t, int32(1), failing.calls.Load())
	})
}

func TestSettle(t *testing.T) {
	amount := decimal.NewFromInt(50)
	claimed := decimal.NewFromInt(500)
	discount := decimal.Zero

	t.Run("accepted", func(t *testing.T) {
		backend := newFakeBackend(t)
		client := newTestClient(t, map[string]*fakeBackend{"node-a": backend})

		res, err := client.Settle(t.Context(), alice, amount, claimed, discount)
		require.NoError(t, err)
		require.Equal(t, ports.SettleOutcomeAccepted, res.Outcome)
		require.NotEmpty(t, res.TxRef)
		require.Equal(t, int32(1), backend.sent.Load())
	})

	t.Run("ambiguous duplicate submission", func(t *testing.T) {
		backend := newFakeBackend(t)
		backend.sendErr = fmt.Errorf("already known")
		client := newTestClient(t, map[string]*fakeBackend{"node-a": backend})

		res, err := client.Settle(t.Context(), alice, amount, claimed, discount)
		require.NoError(t, err)
		require.Equal(t, ports.SettleOutcomeAmbiguous, res.Outcome)
		require.Contains(t, res.Reason, "already known")
		require.Equal(t, int32(1), backend.sent.Load())
	})

	t.Run("rejected", func(t *testing.T) {
		backend := newFakeBackend(t)
		backend.sendErr = fmt.Errorf("insufficient funds for gas * price + value")
		client := newTestClient(t, map[string]*fakeBackend{"node-a": backend})

		res, err := client.Settle(t.Context(), alice, amount, claimed, discount)
		require.Error(t, err)
		require.Nil(t, res)
		require.True(t, errors.SETTLEMENT_FAILURE.Is(err))
	})

	t.Run("failure before broadcast is not ambiguous", func(t *testing.T) {
		backend := newFakeBackend(t)
		backend.nonceErr = context.DeadlineExceeded
		client := newTestClient(t, map[string]*fakeBackend{"node-a": backend})

		_, err := client.Settle(t.Context(), alice, amount, claimed, discount)
		require.Error(t, err)
		require.True(t, errors.SETTLEMENT_FAILURE.Is(err))
		require.Zero(t, backend.sent.Load())
	})

	t.Run("reverted", func(t *testing.T) {
		backend := newFakeBackend(t)
		backend.receiptStatus = types.ReceiptStatusFailed
		client := newTestClient(t, map[string]*fakeBackend{"node-a": backend})

		_, err := client.Settle(t.Context(), alice, amount, claimed, discount)
		require.Error(t, err)
		require.True(t, errors.SETTLEMENT_FAILURE.Is(err))
	})

	t.Run("read-only client", func(t *testing.T) {
		client, err := NewLedgerClient(Config{
			RpcURLs:         []string{"node-a"},
			ContractAddress: contractAddress,
		})
		require.NoError(t, err)

		_, err = client.Settle(t.Context(), alice, amount, claimed, discount)
		require.Error(t, err)
		require.True(t, errors.FATAL_CONFIG.Is(err))
	})
}

func TestNewLedgerClientInvalidConfig(t *testing.T) {
	fixtures := []struct {
		name string
		cfg  Config
	}{
		{
			name: "no rpc url",
			cfg:  Config{ContractAddress: contractAddress},
		},
		{
			name: "invalid contract address",
			cfg:  Config{RpcURLs: []string{"node-a"}, ContractAddress: "0xinvalid"},
		},
		{
			name: "invalid signer key",
			cfg: Config{
				RpcURLs:         []string{"node-a"},
				ContractAddress: contractAddress,
				PrivateKey:      "deadbeef",
			},
		},
	}

	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			_, err := NewLedgerClient(f.cfg)
			require.Error(t, err)
			require.True(t, errors.FATAL_CONFIG.Is(err))
		})
	}
}

func TestBaseUnitsConversion(t *testing.T) {
	c := &ledgerClient{cfg: Config{Decimals: 18}}

	units, err := c.toBaseUnits(decimal.RequireFromString("50.5"))
	require.NoError(t, err)
	require.Equal(t, "50500000000000000000", units.String())
	require.True(t, c.toDecimal(units).Equal(decimal.RequireFromString("50.5")))

	_, err = c.toBaseUnits(decimal.NewFromInt(-1))
	require.Error(t, err)

	require.True(t, c.toDecimal(nil).IsZero())
}

func TestIsAmbiguous(t *testing.T) {
	fixtures := []struct {
		err       error
		ambiguous bool
	}{
		{fmt.Errorf("already known"), true},
		{fmt.Errorf("Known transaction: 0xabc"), true},
		{fmt.Errorf("nonce too low: next nonce 4, tx nonce 3"), true},
		{fmt.Errorf("replacement transaction underpriced"), true},
		{fmt.Errorf("post: %w", context.DeadlineExceeded), true},
		{&net.OpError{Op: "dial", Err: fmt.Errorf("refused")}, true},
		{fmt.Errorf("insufficient funds for gas * price + value"), false},
		{fmt.Errorf("execution reverted"), false},
		{nil, false},
	}

	for _, f := range fixtures {
		require.Equal(t, f.ambiguous, isAmbiguous(f.err), "%v", f.err)
	}
}

const testMaxRetries = 2

func newTestClient(t *testing.T, backends map[string]*fakeBackend) ports.LedgerClient {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	urls := make([]string, 0, len(backends))
	for url := range backends {
		urls = append(urls, url)
	}
	// map iteration order is random
	if len(urls) > 1 && strings.Compare(urls[0], urls[1]) > 0 {
		urls[0], urls[1] = urls[1], urls[0]
	}

	dialer := func(_ context.Context, url string) (Backend, error) {
		backend := backends[url]
		if backend == nil {
			return nil, fmt.Errorf("dial tcp %s: connection refused", url)
		}
		return backend, nil
	}

	client, err := NewLedgerClient(
		Config{
			RpcURLs:         urls,
			ContractAddress: contractAddress,
			PrivateKey:      hex.EncodeToString(crypto.FromECDSA(key)),
			ChainID:         1337,
			MaxRetries:      testMaxRetries,
			SettleTimeout:   5 * time.Second,
		},
		WithDialer(dialer),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

type fakeBackend struct {
	// methods not overridden panic if called
	Backend

	abi           abi.ABI
	results       map[string][]interface{}
	callErr       error
	nonceErr      error
	sendErr       error
	receiptStatus uint64
	height        uint64

	calls atomic.Int32
	sent  atomic.Int32
}

func newFakeBackend(t *testing.T) *fakeBackend {
	parsed, err := abi.JSON(strings.NewReader(planABI))
	require.NoError(t, err)
	return &fakeBackend{
		abi:           parsed,
		results:       make(map[string][]interface{}),
		receiptStatus: types.ReceiptStatusSuccessful,
	}
}

func (f *fakeBackend) CallContract(
	_ context.Context, call ethereum.CallMsg, _ *big.Int,
) ([]byte, error) {
	f.calls.Add(1)
	if f.callErr != nil {
		return nil, f.callErr
	}
	method, err := f.abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(f.results[method.Name]...)
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{
		Number:  new(big.Int).SetUint64(f.height),
		BaseFee: big.NewInt(1),
	}, nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 0, f.nonceErr
}

func (f *fakeBackend) SendTransaction(context.Context, *types.Transaction) error {
	f.sent.Add(1)
	return f.sendErr
}

func (f *fakeBackend) TransactionReceipt(
	_ context.Context, hash common.Hash,
) (*types.Receipt, error) {
	return &types.Receipt{Status: f.receiptStatus, TxHash: hash}, nil
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	return f.height, nil
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(1337), nil
}

func (f *fakeBackend) Close() {}
