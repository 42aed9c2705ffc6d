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
	"github.com/wagerparty/chainkit/escrow"
	"github.com/wagerparty/chainkit/identity"
)

// nativeToleranceDivisor caps acceptable native-coin variance at 1%.
// Native quotes can be fee-inclusive; token amounts are always exact.
const nativeToleranceDivisor = 100

// VerifyJoin confirms that the transaction is a real, successful joinGame
// call bound to the expected resource id, sent by an allowed payer, for
// the expected amount. The decoded resource id is the anti-replay anchor:
// a payment for game A can never be presented as proof for game B.
//
// Checks short-circuit on the first hard failure. Amount deviations are
// reported as a flag rather than a rejection; the authoritative check is
// on-chain participation state, which callers read separately.
func (v *Verifier) VerifyJoin(
	ctx context.Context,
	txHash common.Hash,
	resourceID string,
	allowedPayers *identity.AllowedPayerSet,
	expectedAmount *big.Int,
) (BindingResult, error) {
	if expectedAmount == nil {
		// No expectation means any amount is a deviation to flag.
		expectedAmount = big.NewInt(0)
	}

	diags := &BindingDiagnostics{
		ExpectedContract:   strings.ToLower(v.escrowAddr.Hex()),
		ExpectedMethod:     escrow.MethodJoinGame,
		ExpectedResourceID: resourceID,
		ExpectedAmount:     expectedAmount.String(),
		AllowedPayerCount:  allowedPayers.Len(),
	}

	receipt, err := v.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return invalidBinding(chainkit.ErrCodeNotFound, "transaction receipt not found", diags), nil
		}
		return BindingResult{}, fmt.Errorf("failed to fetch receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return invalidBinding(chainkit.ErrCodeTransactionFailed, "transaction reverted on-chain", diags), nil
	}

	tx, _, err := v.client.TransactionByHash(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return invalidBinding(chainkit.ErrCodeNotFound, "transaction not found", diags), nil
		}
		return BindingResult{}, fmt.Errorf("failed to fetch transaction: %w", err)
	}

	if tx.To() == nil || *tx.To() != v.escrowAddr {
		if tx.To() != nil {
			diags.ActualContract = strings.ToLower(tx.To().Hex())
		}
		return invalidBinding(chainkit.ErrCodeWrongContract, "transaction was not sent to the escrow contract", diags), nil
	}

	if len(tx.Data()) == 0 {
		return invalidBinding(chainkit.ErrCodeMissingInput, "transaction carries no call data", diags), nil
	}

	method, args, err := escrow.DecodeCall(tx.Data())
	if err != nil {
		return invalidBinding(chainkit.ErrCodeNotExpectedCall, fmt.Sprintf("call data does not decode against the escrow interface: %v", err), diags), nil
	}
	diags.DecodedMethod = method
	if method != escrow.MethodJoinGame {
		return invalidBinding(chainkit.ErrCodeNotExpectedCall, fmt.Sprintf("decoded call is %s, expected %s", method, escrow.MethodJoinGame), diags), nil
	}

	decodedID, ok := args[0].(string)
	if !ok {
		return invalidBinding(chainkit.ErrCodeNotExpectedCall, "joinGame argument is not a string", diags), nil
	}
	diags.DecodedResourceID = decodedID
	if decodedID != resourceID {
		// Security-significant: a correctly decoded join for a different
		// game is the replay shape, not a lookup mistake.
		v.log.Warn("resource id mismatch on join verification",
			zap.String("txHash", txHash.Hex()),
			zap.String("expected", resourceID),
			zap.String("decoded", decodedID))
		return invalidBinding(chainkit.ErrCodeResourceIDMismatch, "transaction joins a different game", diags), nil
	}

	sender, err := types.Sender(types.LatestSignerForChainID(v.chainID), tx)
	if err != nil {
		return BindingResult{}, fmt.Errorf("failed to recover transaction sender: %w", err)
	}
	payer := strings.ToLower(sender.Hex())
	diags.Payer = payer
	if !allowedPayers.Contains(payer) {
		v.log.Warn("payer not in allowed set",
			zap.String("txHash", txHash.Hex()),
			zap.String("resourceId", resourceID),
			zap.String("payer", payer))
		return invalidBinding(chainkit.ErrCodePayerNotAllowed, "transaction sender is not an allowed payer for this identity", diags), nil
	}

	actual, mismatch := v.checkJoinAmount(tx, receipt, sender, expectedAmount)
	diags.ActualAmount = actual.String()

	v.crossCheckJoinedEvent(receipt, resourceID, txHash)

	result := BindingResult{
		IsValid:        true,
		ResourceID:     resourceID,
		Payer:          payer,
		ActualAmount:   actual,
		AmountMismatch: mismatch,
		BlockNumber:    receipt.BlockNumber.Uint64(),
		Diagnostics:    diags,
	}
	if mismatch {
		// Soft flag: the join itself is verified, the amount is not.
		result.Code = chainkit.ErrCodeAmountMismatch
	}
	return result, nil
}

// checkJoinAmount determines the payment rail and compares amounts.
// Native value gets a small tolerance; the token rail requires an exact
// Transfer from the sender to the escrow.
func (v *Verifier) checkJoinAmount(tx *types.Transaction, receipt *types.Receipt, sender common.Address, expected *big.Int) (*big.Int, bool) {
	if tx.Value().Sign() > 0 {
		actual := tx.Value()
		diff := new(big.Int).Sub(actual, expected)
		diff.Abs(diff)
		tolerance := new(big.Int).Div(expected, big.NewInt(nativeToleranceDivisor))
		return actual, diff.Cmp(tolerance) > 0
	}

	actual := big.NewInt(0)
	for _, lg := range receipt.Logs {
		from, to, value, ok := decodeTransferLog(lg)
		if !ok || lg.Address != v.stableToken || from != sender || to != v.escrowAddr {
			continue
		}
		if value.Cmp(expected) == 0 {
			return value, false
		}
		if actual.Sign() == 0 {
			actual = value
		}
	}
	return actual, true
}

// crossCheckJoinedEvent compares the contract's own PlayerJoined event
// against the decoded resource id. The call data is authoritative over
// what was invoked, so a mismatch here is logged as suspicious but never
// overrides the decode result.
func (v *Verifier) crossCheckJoinedEvent(receipt *types.Receipt, resourceID string, txHash common.Hash) {
	expectedTopic := escrow.ResourceIDTopic(resourceID)
	for _, lg := range receipt.Logs {
		if lg.Address != v.escrowAddr || len(lg.Topics) < 2 || lg.Topics[0] != escrow.PlayerJoinedSig() {
			continue
		}
		if lg.Topics[1] != expectedTopic {
			v.log.Warn("PlayerJoined event names a different game than the call data",
				zap.String("txHash", txHash.Hex()),
				zap.String("resourceId", resourceID),
				zap.String("eventTopic", lg.Topics[1].Hex()))
		}
		return
	}
}

func invalidBinding(code, reason string, diags *BindingDiagnostics) BindingResult {
	return BindingResult{
		Code:          code,
		InvalidReason: reason,
		Diagnostics:   diags,
	}
}
