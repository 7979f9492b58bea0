package evmledger

import (
	"context"
	"crypto/ecdsa"
	stderrors "errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/internal/core/ports"
	"github.com/binaryplan/binaryd/pkg/errors"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	defaultDecimals      = 18
	defaultMaxRetries    = 5
	defaultCallTimeout   = 10 * time.Second
	defaultSettleTimeout = 2 * time.Minute
	defaultGasLimit      = 300_000
)

// Backend is the node surface used by the client. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

type Dialer func(ctx context.Context, url string) (Backend, error)

type Config struct {
	RpcURLs         []string
	ContractAddress string
	// PrivateKey is the hex-encoded key of the settlement signer. Leave empty
	// for a read-only client.
	PrivateKey string
	// ChainID is fetched from the node when zero.
	ChainID       int64
	Decimals      int32
	MaxRetries    uint64
	CallTimeout   time.Duration
	SettleTimeout time.Duration
	GasLimit      uint64
}

type Option func(*ledgerClient)

func WithDialer(dial Dialer) Option {
	return func(c *ledgerClient) {
		c.dial = dial
	}
}

func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *ledgerClient) {
		c.newBackOff = newBackOff
	}
}

type endpoint struct {
	url      string
	backend  Backend
	contract *bind.BoundContract
}

type ledgerClient struct {
	cfg        Config
	abi        abi.ABI
	address    common.Address
	key        *ecdsa.PrivateKey
	dial       Dialer
	newBackOff func() backoff.BackOff

	lock      sync.Mutex
	endpoints []*endpoint
	current   int
	chainID   *big.Int

	// serializes nonce usage of the signer
	settleLock sync.Mutex
}

func NewLedgerClient(cfg Config, opts ...Option) (ports.LedgerClient, error) {
	if len(cfg.RpcURLs) <= 0 {
		return nil, errors.FATAL_CONFIG.New("missing ledger rpc url").
			WithMetadata(errors.ConfigMetadata{Field: "ledger-rpc-url"})
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, errors.FATAL_CONFIG.New(
			"invalid ledger contract address %q", cfg.ContractAddress,
		).WithMetadata(errors.ConfigMetadata{Field: "ledger-contract-address"})
	}

	var key *ecdsa.PrivateKey
	if cfg.PrivateKey != "" {
		var err error
		key, err = crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, errors.FATAL_CONFIG.Wrap(
				fmt.Errorf("invalid ledger signer key: %w", err),
			).WithMetadata(errors.ConfigMetadata{Field: "ledger-private-key"})
		}
	}

	parsed, err := abi.JSON(strings.NewReader(planABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan abi: %s", err)
	}

	if cfg.Decimals <= 0 {
		cfg.Decimals = defaultDecimals
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = defaultSettleTimeout
	}
	if cfg.GasLimit <= 0 {
		cfg.GasLimit = defaultGasLimit
	}

	endpoints := make([]*endpoint, 0, len(cfg.RpcURLs))
	for _, url := range cfg.RpcURLs {
		endpoints = append(endpoints, &endpoint{url: url})
	}

	svc := &ledgerClient{
		cfg:        cfg,
		abi:        parsed,
		address:    common.HexToAddress(cfg.ContractAddress),
		key:        key,
		dial:       dialEthClient,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		endpoints:  endpoints,
	}
	if cfg.ChainID > 0 {
		svc.chainID = big.NewInt(cfg.ChainID)
	}
	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

func (c *ledgerClient) GetAccount(
	ctx context.Context, id domain.AccountID,
) (*ports.LedgerAccount, error) {
	var account *ports.LedgerAccount
	err := c.read(ctx, methodGetAccount, id, func(ctx context.Context, ep *endpoint) error {
		var out []interface{}
		if err := ep.contract.Call(
			&bind.CallOpts{Context: ctx}, &out, methodGetAccount, toAddress(id),
		); err != nil {
			return err
		}

		registered := *abi.ConvertType(out[0], new(bool)).(*bool)
		invested := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)
		leaderInvested := *abi.ConvertType(out[2], new(*big.Int)).(**big.Int)
		blockID := *abi.ConvertType(out[3], new(*big.Int)).(**big.Int)
		if !blockID.IsUint64() {
			return backoff.Permanent(fmt.Errorf("block id %s overflows", blockID))
		}

		account = &ports.LedgerAccount{
			Registered:           registered,
			InvestedAmount:       c.toDecimal(invested),
			LeaderInvestedAmount: c.toDecimal(leaderInvested),
			BlockID:              blockID.Uint64(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (c *ledgerClient) GetUpline(ctx context.Context, id domain.AccountID) (*ports.Upline, error) {
	var upline *ports.Upline
	err := c.read(ctx, methodGetUpline, id, func(ctx context.Context, ep *endpoint) error {
		var out []interface{}
		if err := ep.contract.Call(
			&bind.CallOpts{Context: ctx}, &out, methodGetUpline, toAddress(id),
		); err != nil {
			return err
		}

		referrer := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
		rawSide := *abi.ConvertType(out[1], new(uint8)).(*uint8)
		side := domain.SideLeft
		if rawSide > 0 {
			side = domain.SideRight
		}

		upline = &ports.Upline{
			Referrer: domain.NewAccountID(referrer.Hex()),
			Side:     side,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return upline, nil
}

type depositTuple struct {
	StartedAt    *big.Int
	Value        *big.Int
	PayoutFactor *big.Int
	Withdrawn    *big.Int
	Leader       bool
}

func (c *ledgerClient) GetDeposits(
	ctx context.Context, id domain.AccountID,
) ([]ports.LedgerDeposit, error) {
	var deposits []ports.LedgerDeposit
	err := c.read(ctx, methodGetDeposits, id, func(ctx context.Context, ep *endpoint) error {
		var out []interface{}
		if err := ep.contract.Call(
			&bind.CallOpts{Context: ctx}, &out, methodGetDeposits, toAddress(id),
		); err != nil {
			return err
		}

		raw := *abi.ConvertType(out[0], new([]depositTuple)).(*[]depositTuple)
		deposits = make([]ports.LedgerDeposit, 0, len(raw))
		// payout factor is a plain multiplier, not a token amount
		for _, d := range raw {
			deposits = append(deposits, ports.LedgerDeposit{
				StartedAt:    time.Unix(d.StartedAt.Int64(), 0),
				Value:        c.toDecimal(d.Value),
				PayoutFactor: decimal.NewFromBigInt(d.PayoutFactor, 0),
				Withdrawn:    c.toDecimal(d.Withdrawn),
				Leader:       d.Leader,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deposits, nil
}

func (c *ledgerClient) GetPlanDurationSeconds(ctx context.Context) (int64, error) {
	var duration int64
	err := c.read(ctx, methodPlanDuration, "", func(ctx context.Context, ep *endpoint) error {
		var out []interface{}
		if err := ep.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodPlanDuration); err != nil {
			return err
		}
		value := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
		if !value.IsInt64() {
			return backoff.Permanent(fmt.Errorf("plan duration %s overflows", value))
		}
		duration = value.Int64()
		return nil
	})
	return duration, err
}

func (c *ledgerClient) GetWithdrawableBalance(
	ctx context.Context, id domain.AccountID,
) (decimal.Decimal, error) {
	balance := decimal.Zero
	err := c.read(ctx, methodWithdrawable, id, func(ctx context.Context, ep *endpoint) error {
		var out []interface{}
		if err := ep.contract.Call(
			&bind.CallOpts{Context: ctx}, &out, methodWithdrawable, toAddress(id),
		); err != nil {
			return err
		}
		balance = c.toDecimal(*abi.ConvertType(out[0], new(*big.Int)).(**big.Int))
		return nil
	})
	return balance, err
}

func (c *ledgerClient) CurrentBlock(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.read(ctx, "blockNumber", "", func(ctx context.Context, ep *endpoint) error {
		h, err := ep.backend.BlockNumber(ctx)
		if err != nil {
			return err
		}
		height = h
		return nil
	})
	return height, err
}

func (c *ledgerClient) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()

	for _, ep := range c.endpoints {
		if ep.backend != nil {
			ep.backend.Close()
			ep.backend = nil
			ep.contract = nil
		}
	}
}

// read runs fn against the current endpoint, rotating to the next one and
// backing off on every failure until retries are exhausted.
func (c *ledgerClient) read(
	ctx context.Context, method string, account domain.AccountID,
	fn func(context.Context, *endpoint) error,
) error {
	attempts := 0
	lastURL := ""
	op := func() error {
		attempts++
		ep, err := c.currentEndpoint(ctx)
		if err != nil {
			return err
		}
		lastURL = ep.url

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()

		if err := fn(callCtx, ep); err != nil {
			var permanent *backoff.PermanentError
			if stderrors.As(err, &permanent) {
				return err
			}
			if isRevert(err) {
				return backoff.Permanent(err)
			}
			log.WithError(err).Debugf(
				"ledger call %s failed on %s (attempt %d)", method, ep.url, attempts,
			)
			c.rotate(ep)
			return err
		}
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(c.newBackOff(), c.cfg.MaxRetries), ctx,
	)
	if err := backoff.Retry(op, b); err != nil {
		return errors.TRANSIENT_LEDGER.Wrap(err).WithMetadata(errors.LedgerCallMetadata{
			Account:   account.String(),
			Method:    method,
			Endpoint:  lastURL,
			Attempts:  attempts,
			LastError: err.Error(),
		})
	}
	return nil
}

func (c *ledgerClient) currentEndpoint(ctx context.Context) (*endpoint, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	ep := c.endpoints[c.current]
	if ep.backend != nil {
		return ep, nil
	}

	backend, err := c.dial(ctx, ep.url)
	if err != nil {
		c.current = (c.current + 1) % len(c.endpoints)
		return nil, fmt.Errorf("failed to dial %s: %w", ep.url, err)
	}
	ep.backend = backend
	ep.contract = bind.NewBoundContract(c.address, c.abi, backend, backend, backend)
	return ep, nil
}

func (c *ledgerClient) rotate(failed *endpoint) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if len(c.endpoints) <= 1 || c.endpoints[c.current] != failed {
		return
	}
	c.current = (c.current + 1) % len(c.endpoints)
	log.Debugf("ledger client switched to endpoint %s", c.endpoints[c.current].url)
}

func (c *ledgerClient) getChainID(ctx context.Context, backend Backend) (*big.Int, error) {
	c.lock.Lock()
	chainID := c.chainID
	c.lock.Unlock()
	if chainID != nil {
		return chainID, nil
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	c.lock.Lock()
	c.chainID = chainID
	c.lock.Unlock()
	return chainID, nil
}

func (c *ledgerClient) toDecimal(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -c.cfg.Decimals)
}

func (c *ledgerClient) toBaseUnits(v decimal.Decimal) (*big.Int, error) {
	if v.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", v)
	}
	return v.Shift(c.cfg.Decimals).BigInt(), nil
}

func toAddress(id domain.AccountID) common.Address {
	return common.HexToAddress(id.String())
}

func dialEthClient(ctx context.Context, url string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}
