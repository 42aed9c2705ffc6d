package registrar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	chainkit "github.com/wagerparty/chainkit"
	"github.com/wagerparty/chainkit/escrow"
	"github.com/wagerparty/chainkit/money"
)

// RecoveryArgs is everything an operator needs to submit a createGame
// call manually through an external tool when the automated path is
// stuck. It is a pure projection of the write intent; nothing here is
// persisted.
type RecoveryArgs struct {
	ReferenceID string `json:"referenceId"`
	ResourceID  string `json:"resourceId"`
	To          string `json:"to"`
	Function    string `json:"function"`
	Currency    string `json:"currency"`
	EntryFee    string `json:"entryFee"`
	CallData    string `json:"callData"`
}

// BuildRecoveryArgs derives the exact raw call arguments for a manual
// createGame submission. Pure: no RPC, no state.
func (r *Registrar) BuildRecoveryArgs(resourceID, currencySymbol, humanAmount string) (RecoveryArgs, error) {
	currency, err := money.CurrencyFromSymbol(currencySymbol)
	if err != nil {
		return RecoveryArgs{}, err
	}
	entryFee, err := money.ToRawUnits(humanAmount, currency)
	if err != nil {
		return RecoveryArgs{}, err
	}

	token := r.tokenForCurrency(currency)
	data, err := escrow.PackCreateGame(resourceID, token, entryFee)
	if err != nil {
		return RecoveryArgs{}, fmt.Errorf("failed to encode createGame: %w", err)
	}

	return RecoveryArgs{
		ReferenceID: uuid.NewString(),
		ResourceID:  resourceID,
		To:          strings.ToLower(r.escrowAddr.Hex()),
		Function:    escrow.MethodCreateGame,
		Currency:    strings.ToLower(token.Hex()),
		EntryFee:    entryFee.String(),
		CallData:    hexutil.Encode(data),
	}, nil
}

// TxReader is the read-side dependency for recovery verification,
// satisfied by *ethclient.Client.
type TxReader interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// RecoveryCheck is the outcome of VerifyRecoveryTx.
type RecoveryCheck struct {
	OK            bool
	Code          string
	InvalidReason string
	TxHash        string
	BlockNumber   uint64
}

// VerifyRecoveryTx confirms that an operator-submitted transaction really
// performed the expected registration: right contract, right function,
// byte-identical arguments, successful receipt. Expected arguments are
// re-derived independently rather than trusted from the operator.
func (r *Registrar) VerifyRecoveryTx(ctx context.Context, reader TxReader, txHash common.Hash, resourceID, currencySymbol, humanAmount string) (RecoveryCheck, error) {
	currency, err := money.CurrencyFromSymbol(currencySymbol)
	if err != nil {
		return RecoveryCheck{}, err
	}
	entryFee, err := money.ToRawUnits(humanAmount, currency)
	if err != nil {
		return RecoveryCheck{}, err
	}
	expected, err := escrow.PackCreateGame(resourceID, r.tokenForCurrency(currency), entryFee)
	if err != nil {
		return RecoveryCheck{}, fmt.Errorf("failed to encode expected createGame: %w", err)
	}

	tx, _, err := reader.TransactionByHash(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return failedCheck(chainkit.ErrCodeNotFound, "transaction not found", txHash), nil
		}
		return RecoveryCheck{}, fmt.Errorf("failed to fetch transaction: %w", err)
	}

	if tx.To() == nil || *tx.To() != r.escrowAddr {
		return failedCheck(chainkit.ErrCodeWrongContract, "transaction was not sent to the escrow contract", txHash), nil
	}

	method, _, err := escrow.DecodeCall(tx.Data())
	if err != nil || method != escrow.MethodCreateGame {
		return failedCheck(chainkit.ErrCodeNotExpectedCall, "transaction is not a createGame call", txHash), nil
	}

	if !bytes.Equal(tx.Data(), expected) {
		return failedCheck(chainkit.ErrCodeNotExpectedCall, "createGame arguments differ from the expected registration", txHash), nil
	}

	receipt, err := reader.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return failedCheck(chainkit.ErrCodeNotFound, "transaction receipt not found", txHash), nil
		}
		return RecoveryCheck{}, fmt.Errorf("failed to fetch receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return failedCheck(chainkit.ErrCodeTransactionFailed, "recovery transaction reverted on-chain", txHash), nil
	}

	return RecoveryCheck{
		OK:          true,
		TxHash:      txHash.Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

func failedCheck(code, reason string, txHash common.Hash) RecoveryCheck {
	return RecoveryCheck{
		Code:          code,
		InvalidReason: reason,
		TxHash:        txHash.Hex(),
	}
}
