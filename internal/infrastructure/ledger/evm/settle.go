package evmledger

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/internal/core/ports"
	"github.com/binaryplan/binaryd/pkg/errors"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Node errors meaning an equivalent transaction already reached the mempool.
var duplicateSubmissionErrors = []string{
	"already known",
	"known transaction",
	"nonce too low",
	"replacement transaction underpriced",
	"already imported",
}

// Settle submits a single settlement transaction and waits for its receipt.
// It is never retried: once the transaction may have left this process, any
// error is reported as an ambiguous outcome instead of a failure.
func (c *ledgerClient) Settle(
	ctx context.Context, id domain.AccountID,
	amount, claimedPointsSoFar, discount decimal.Decimal,
) (*ports.SettleResult, error) {
	metadata := errors.SettlementMetadata{
		Account: id.String(),
		Amount:  amount.String(),
	}

	if c.key == nil {
		return nil, errors.FATAL_CONFIG.New("ledger signer key not configured").
			WithMetadata(errors.ConfigMetadata{Field: "ledger-private-key"})
	}

	args := make([]interface{}, 0, 4)
	args = append(args, toAddress(id))
	for _, v := range []decimal.Decimal{amount, claimedPointsSoFar, discount} {
		units, err := c.toBaseUnits(v)
		if err != nil {
			return nil, errors.INVALID_ARGUMENT.Wrap(err)
		}
		args = append(args, units)
	}

	c.settleLock.Lock()
	defer c.settleLock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.SettleTimeout)
	defer cancel()

	ep, err := c.currentEndpoint(ctx)
	if err != nil {
		return nil, errors.SETTLEMENT_FAILURE.Wrap(err).WithMetadata(metadata)
	}

	chainID, err := c.getChainID(ctx, ep.backend)
	if err != nil {
		return nil, errors.SETTLEMENT_FAILURE.Wrap(
			fmt.Errorf("failed to get chain id: %w", err),
		).WithMetadata(metadata)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, chainID)
	if err != nil {
		return nil, errors.SETTLEMENT_FAILURE.Wrap(err).WithMetadata(metadata)
	}
	opts.Context = ctx
	opts.GasLimit = c.cfg.GasLimit

	tracker := &sendTracker{Backend: ep.backend}
	contract := bind.NewBoundContract(c.address, c.abi, tracker, tracker, tracker)

	tx, err := contract.Transact(opts, methodSettleBinary, args...)
	if err != nil {
		if tracker.sent.Load() && isAmbiguous(err) {
			log.WithError(err).Warnf("ambiguous settlement submission for %s", id)
			return &ports.SettleResult{
				Outcome: ports.SettleOutcomeAmbiguous,
				Reason:  err.Error(),
			}, nil
		}
		return nil, errors.SETTLEMENT_FAILURE.Wrap(err).WithMetadata(metadata)
	}

	txRef := tx.Hash().Hex()
	metadata.TxRef = txRef
	log.Debugf("settlement tx %s for %s broadcasted", txRef, id)

	receipt, err := bind.WaitMined(ctx, ep.backend, tx)
	if err != nil {
		log.WithError(err).Warnf("settlement tx %s for %s not confirmed", txRef, id)
		return &ports.SettleResult{
			Outcome: ports.SettleOutcomeAmbiguous,
			TxRef:   txRef,
			Reason:  err.Error(),
		}, nil
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, errors.SETTLEMENT_FAILURE.New("settlement tx %s reverted", txRef).
			WithMetadata(metadata)
	}

	return &ports.SettleResult{
		Outcome: ports.SettleOutcomeAccepted,
		TxRef:   txRef,
	}, nil
}

// sendTracker records whether a transaction was handed to the node so that
// failures before broadcast are never mistaken for ambiguous outcomes.
type sendTracker struct {
	Backend
	sent atomic.Bool
}

func (t *sendTracker) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	t.sent.Store(true)
	return t.Backend.SendTransaction(ctx, tx)
}

func isAmbiguous(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) ||
		stderrors.Is(err, io.EOF) ||
		stderrors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, known := range duplicateSubmissionErrors {
		if strings.Contains(msg, known) {
			return true
		}
	}
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe")
}

func isRevert(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}
