// Package verify establishes on-chain truth about client-claimed payment
// transactions. Both verifiers are read-only, stateless, and safe to run
// concurrently; a rejection for a given hash is terminal.
package verify

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	chainkit "github.com/wagerparty/chainkit"
	"github.com/wagerparty/chainkit/config"
	"github.com/wagerparty/chainkit/escrow"
	"github.com/wagerparty/chainkit/money"
)

// Verifier checks claimed transactions against one configured chain.
type Verifier struct {
	client      ChainReader
	chainID     *big.Int
	escrowAddr  common.Address
	stableToken common.Address
	log         *zap.Logger
}

// New creates a Verifier bound to the configured chain and contracts.
func New(cfg *config.Config, client ChainReader, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{
		client:      client,
		chainID:     cfg.ChainID,
		escrowAddr:  cfg.EscrowAddress,
		stableToken: cfg.StableTokenAddress,
		log:         log,
	}
}

// VerifyTransfer confirms that the transaction moved exactly the expected
// token amount to the expected recipient, and returns the authoritative
// payer: the from address of the matching Transfer log. The transaction
// sender is deliberately ignored, because under paymaster and
// account-abstraction flows it is not the economic payer.
func (v *Verifier) VerifyTransfer(
	ctx context.Context,
	txHash common.Hash,
	token common.Address,
	recipient common.Address,
	humanAmount string,
	currency money.Currency,
) (TransferResult, error) {
	expected, err := money.ToRawUnits(humanAmount, currency)
	if err != nil {
		return TransferResult{}, chainkit.NewVerificationError(
			chainkit.ErrCodeInvalidAmount,
			fmt.Sprintf("expected amount %q is not valid for %s", humanAmount, currency.Symbol),
			map[string]interface{}{"amount": humanAmount, "currency": currency.Symbol},
		)
	}

	diags := &TransferDiagnostics{
		ExpectedToken:     strings.ToLower(token.Hex()),
		ExpectedRecipient: strings.ToLower(recipient.Hex()),
		ExpectedValue:     expected.String(),
	}

	_, _, err = v.client.TransactionByHash(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return invalidTransfer(chainkit.ErrCodeNotFound, "transaction not found", diags), nil
		}
		return TransferResult{}, fmt.Errorf("failed to fetch transaction: %w", err)
	}

	receipt, err := v.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return invalidTransfer(chainkit.ErrCodeNotFound, "transaction receipt not found", diags), nil
		}
		return TransferResult{}, fmt.Errorf("failed to fetch receipt: %w", err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return invalidTransfer(chainkit.ErrCodeReceiptFailed, "transaction reverted on-chain", diags), nil
	}

	result := TransferResult{
		TokenContract: strings.ToLower(token.Hex()),
		BlockNumber:   receipt.BlockNumber.Uint64(),
		Diagnostics:   diags,
	}

	for _, lg := range receipt.Logs {
		from, to, value, ok := decodeTransferLog(lg)
		if !ok {
			continue
		}
		diags.TotalTransfers++
		if len(diags.Observed) < maxObservedTransfers {
			diags.Observed = append(diags.Observed, ObservedTransfer{
				From:       strings.ToLower(from.Hex()),
				To:         strings.ToLower(to.Hex()),
				Value:      value.String(),
				LogAddress: strings.ToLower(lg.Address.Hex()),
			})
		}

		// Token transfers are exact; any deviation is a different payment.
		if lg.Address != token || to != recipient || value.Cmp(expected) != 0 {
			continue
		}

		diags.MatchingTransfers++
		result.MatchCount++
		if result.Payer == "" {
			result.Payer = strings.ToLower(from.Hex())
			result.Recipient = strings.ToLower(to.Hex())
			result.Value = value
		}
	}

	if result.MatchCount == 0 {
		v.log.Info("no matching transfer",
			zap.String("txHash", txHash.Hex()),
			zap.String("expectedToken", diags.ExpectedToken),
			zap.String("expectedValue", diags.ExpectedValue),
			zap.Int("totalTransfers", diags.TotalTransfers))
		return invalidTransfer(chainkit.ErrCodeNoMatchingTransfer, "no transfer matched the expected token, recipient, and amount", diags), nil
	}

	result.IsValid = true
	return result, nil
}

// decodeTransferLog decodes an ERC-20 Transfer event. Both parties are
// indexed topics; the value is the single data word.
func decodeTransferLog(lg *types.Log) (from, to common.Address, value *big.Int, ok bool) {
	if lg == nil || len(lg.Topics) < 3 || lg.Topics[0] != escrow.TransferEventSig {
		return common.Address{}, common.Address{}, nil, false
	}
	from = common.BytesToAddress(lg.Topics[1].Bytes())
	to = common.BytesToAddress(lg.Topics[2].Bytes())
	value = new(big.Int).SetBytes(lg.Data)
	return from, to, value, true
}

func invalidTransfer(code, reason string, diags *TransferDiagnostics) TransferResult {
	return TransferResult{
		Code:          code,
		InvalidReason: reason,
		Diagnostics:   diags,
	}
}
