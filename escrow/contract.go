// Package escrow is the typed surface of the on-chain escrow contract:
// its ABI, call encoders/decoders, and read helpers. Everything else in
// the module goes through this package rather than touching the ABI
// directly.
package escrow

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Caller is the read-only contract call dependency, satisfied by
// *ethclient.Client.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// GameState is the on-chain record returned by getGame. It is the
// authoritative source for the Unregistered → Registered → Settled
// state machine.
type GameState struct {
	ResourceID     string
	Currency       common.Address
	EntryFee       *big.Int
	TotalCollected *big.Int
	IsActive       bool
	IsSettled      bool
}

// Registered reports whether the game exists and is accepting payments.
func (g *GameState) Registered() bool {
	return g.IsActive && !g.IsSettled
}

// Contract reads from a deployed escrow contract.
type Contract struct {
	address common.Address
	caller  Caller
}

// NewContract creates a Contract bound to the given deployment address.
func NewContract(address common.Address, caller Caller) *Contract {
	return &Contract{
		address: address,
		caller:  caller,
	}
}

// Address returns the deployment address.
func (c *Contract) Address() common.Address {
	return c.address
}

// GetGame reads the on-chain state for a resource id.
func (c *Contract) GetGame(ctx context.Context, resourceID string) (*GameState, error) {
	data, err := escrowABI.Pack(MethodGetGame, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getGame call: %w", err)
	}

	result, err := c.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &c.address,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("getGame call failed: %w", err)
	}

	outputs, err := escrowABI.Unpack(MethodGetGame, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack getGame result: %w", err)
	}
	if len(outputs) != 6 {
		return nil, fmt.Errorf("getGame: unexpected result len %d", len(outputs))
	}

	state := &GameState{}
	var ok bool
	if state.ResourceID, ok = outputs[0].(string); !ok {
		return nil, fmt.Errorf("getGame: unexpected gameId type %T", outputs[0])
	}
	if state.Currency, ok = outputs[1].(common.Address); !ok {
		return nil, fmt.Errorf("getGame: unexpected currency type %T", outputs[1])
	}
	if state.EntryFee, ok = outputs[2].(*big.Int); !ok {
		return nil, fmt.Errorf("getGame: unexpected entryFee type %T", outputs[2])
	}
	if state.TotalCollected, ok = outputs[3].(*big.Int); !ok {
		return nil, fmt.Errorf("getGame: unexpected totalCollected type %T", outputs[3])
	}
	if state.IsActive, ok = outputs[4].(bool); !ok {
		return nil, fmt.Errorf("getGame: unexpected isActive type %T", outputs[4])
	}
	if state.IsSettled, ok = outputs[5].(bool); !ok {
		return nil, fmt.Errorf("getGame: unexpected isSettled type %T", outputs[5])
	}

	return state, nil
}

// PackCreateGame encodes a createGame call.
func PackCreateGame(resourceID string, currency common.Address, entryFee *big.Int) ([]byte, error) {
	return escrowABI.Pack(MethodCreateGame, resourceID, currency, entryFee)
}

// DecodeCall resolves calldata against the escrow ABI. It returns the
// method name and the decoded arguments, or an error if the selector is
// unknown or the arguments do not decode.
func DecodeCall(data []byte) (string, []interface{}, error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("calldata too short: %d bytes", len(data))
	}
	method, err := escrowABI.MethodById(data[:4])
	if err != nil {
		return "", nil, fmt.Errorf("unknown method selector %x: %w", data[:4], err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode %s arguments: %w", method.Name, err)
	}
	return method.Name, args, nil
}

// ResourceIDTopic is the topic value an indexed string resource id produces.
// Indexed strings are stored as their keccak256 hash, so event cross-checks
// compare hashes rather than the raw id.
func ResourceIDTopic(resourceID string) common.Hash {
	return crypto.Keccak256Hash([]byte(resourceID))
}
