// Package registrar performs the single authorized on-chain write: game
// registration. Registration is the one operation designed to be retried;
// a revert caused by a previous successful attempt is resolved against
// on-chain state instead of being reported as a failure.
//
// Concurrent attempts for the same resource id are coalesced: the first
// caller submits the transaction, later callers wait for its outcome.
package registrar

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	chainkit "github.com/wagerparty/chainkit"
	"github.com/wagerparty/chainkit/config"
	"github.com/wagerparty/chainkit/escrow"
	"github.com/wagerparty/chainkit/money"
	"github.com/wagerparty/chainkit/signer"
)

// Submitter is the write-side dependency, satisfied by *signer.Signer.
type Submitter interface {
	Address() common.Address
	SendCall(ctx context.Context, to common.Address, data []byte, value *big.Int) (*types.Transaction, error)
	WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// GameReader reads on-chain game state, satisfied by *escrow.Contract.
type GameReader interface {
	GetGame(ctx context.Context, resourceID string) (*escrow.GameState, error)
}

var _ Submitter = (*signer.Signer)(nil)
var _ GameReader = (*escrow.Contract)(nil)

// RegistrationResult is the outcome of RegisterGame. Exactly one of
// TxHash or Idempotent is meaningful: a fresh registration carries the
// transaction hash, a registration satisfied by a previous attempt
// carries Idempotent=true and no hash.
type RegistrationResult struct {
	ResourceID string
	TxHash     string
	Idempotent bool
}

// registrationTTL bounds how long a completed registration outcome is
// served from memory before falling back to on-chain state.
const registrationTTL = 10 * time.Minute

// Registrar drives game registration against the escrow contract.
type Registrar struct {
	submitter   Submitter
	games       GameReader
	escrowAddr  common.Address
	stableToken common.Address
	cache       *registrationCache
	log         *zap.Logger
}

// New creates a Registrar. It hard-fails if the signer's derived address
// is not the configured authorized address: a misconfigured key must not
// silently sign as the wrong principal.
func New(cfg *config.Config, submitter Submitter, games GameReader, log *zap.Logger) (*Registrar, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if submitter.Address() != cfg.SignerAddress {
		return nil, &chainkit.ConfigError{
			Field: "SignerKey",
			Message: fmt.Sprintf("signer key derives to %s, expected authorized address %s",
				submitter.Address().Hex(), cfg.SignerAddress.Hex()),
		}
	}
	return &Registrar{
		submitter:   submitter,
		games:       games,
		escrowAddr:  cfg.EscrowAddress,
		stableToken: cfg.StableTokenAddress,
		cache:       newRegistrationCache(registrationTTL),
		log:         log,
	}, nil
}

// tokenForCurrency maps a currency to its on-chain representation. The
// native coin maps to the zero-address sentinel the contract expects.
func (r *Registrar) tokenForCurrency(currency money.Currency) common.Address {
	if currency.Native {
		return common.Address{}
	}
	return r.stableToken
}

// RegisterGame creates the on-chain game record and blocks until the
// transaction is mined. If the write reverts because the game already
// exists, on-chain state decides: an active game makes the call an
// idempotent success; an inactive one is a hard inconsistency that is
// never silently swallowed.
func (r *Registrar) RegisterGame(ctx context.Context, resourceID, currencySymbol, humanAmount string) (RegistrationResult, error) {
	for {
		status, cached, done := r.cache.checkAndMark(resourceID)
		switch status {
		case registrationCached:
			r.log.Info("registration served from cache",
				zap.String("resourceId", resourceID))
			return *cached, nil
		case registrationInFlight:
			result, err := r.cache.waitForResult(ctx, resourceID, done)
			if err != nil {
				return RegistrationResult{}, err
			}
			if result != nil {
				return *result, nil
			}
			// The owning attempt failed; take the slot on the next pass.
			continue
		}

		result, err := r.register(ctx, resourceID, currencySymbol, humanAmount)
		if err != nil {
			r.cache.fail(resourceID, done)
			return RegistrationResult{}, err
		}
		r.cache.complete(resourceID, &result, done)
		return result, nil
	}
}

func (r *Registrar) register(ctx context.Context, resourceID, currencySymbol, humanAmount string) (RegistrationResult, error) {
	currency, err := money.CurrencyFromSymbol(currencySymbol)
	if err != nil {
		return RegistrationResult{}, err
	}
	entryFee, err := money.ToRawUnits(humanAmount, currency)
	if err != nil {
		return RegistrationResult{}, err
	}

	data, err := escrow.PackCreateGame(resourceID, r.tokenForCurrency(currency), entryFee)
	if err != nil {
		return RegistrationResult{}, fmt.Errorf("failed to encode createGame: %w", err)
	}

	tx, err := r.submitter.SendCall(ctx, r.escrowAddr, data, nil)
	if err != nil {
		if isAlreadyExists(err) {
			return r.resolveExisting(ctx, resourceID)
		}
		return RegistrationResult{}, fmt.Errorf("createGame submission failed: %w", err)
	}

	r.log.Info("createGame submitted",
		zap.String("resourceId", resourceID),
		zap.String("txHash", tx.Hash().Hex()))

	receipt, err := r.submitter.WaitMined(ctx, tx.Hash())
	if err != nil {
		return RegistrationResult{}, fmt.Errorf("waiting for createGame confirmation: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		// A mined revert carries no reason string; state decides whether
		// a concurrent attempt already registered the game.
		return r.resolveExisting(ctx, resourceID)
	}

	return RegistrationResult{
		ResourceID: resourceID,
		TxHash:     tx.Hash().Hex(),
	}, nil
}

// resolveExisting decides what an "already exists" style failure means.
func (r *Registrar) resolveExisting(ctx context.Context, resourceID string) (RegistrationResult, error) {
	state, err := r.games.GetGame(ctx, resourceID)
	if err != nil {
		return RegistrationResult{}, fmt.Errorf("createGame reverted and state read failed for %s: %w", resourceID, err)
	}

	if state.IsActive {
		r.log.Info("game already registered, treating as idempotent success",
			zap.String("resourceId", resourceID))
		return RegistrationResult{
			ResourceID: resourceID,
			Idempotent: true,
		}, nil
	}

	return RegistrationResult{}, chainkit.NewVerificationError(
		chainkit.ErrCodeIdempotencyConflict,
		fmt.Sprintf("createGame reverted for %s but on-chain state shows the game is not active; operator intervention required", resourceID),
		map[string]interface{}{
			"resourceId": resourceID,
			"isActive":   state.IsActive,
			"isSettled":  state.IsSettled,
		},
	)
}

// IsGameActive reports whether the game is registered and not settled.
// Callers use it to gate payments and to re-check flagged transactions.
func (r *Registrar) IsGameActive(ctx context.Context, resourceID string) (bool, error) {
	state, err := r.games.GetGame(ctx, resourceID)
	if err != nil {
		return false, err
	}
	return state.Registered(), nil
}

// isAlreadyExists classifies revert errors from the node. Gas estimation
// surfaces contract require() strings verbatim.
func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "game exists")
}
