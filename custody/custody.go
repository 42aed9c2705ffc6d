// Package custody confirms that prize assets are actually held by the
// payout wallet before they are promised to winners. Any lookup failure
// is treated as "not owned": the check fails closed.
package custody

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wagerparty/chainkit/config"
)

const erc721ABIJSON = `[
  {
    "inputs": [
      {"internalType": "uint256", "name": "tokenId", "type": "uint256"}
    ],
    "name": "ownerOf",
    "outputs": [
      {"internalType": "address", "name": "", "type": "address"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

var erc721ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc721ABIJSON))
	if err != nil {
		panic("failed to parse ERC-721 ABI: " + err.Error())
	}
	erc721ABI = parsed
}

// Caller is the read-only contract call dependency, satisfied by
// *ethclient.Client.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Verifier checks NFT ownership against the configured payout wallet.
type Verifier struct {
	caller       Caller
	payoutWallet common.Address
	log          *zap.Logger
}

// New creates a custody Verifier.
func New(cfg *config.Config, caller Caller, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{
		caller:       caller,
		payoutWallet: cfg.PayoutWallet,
		log:          log,
	}
}

// Owns reports whether the payout wallet holds the token. RPC and
// contract errors return false.
func (v *Verifier) Owns(ctx context.Context, nftContract common.Address, tokenID *big.Int) bool {
	owner, err := v.ownerOf(ctx, nftContract, tokenID)
	if err != nil {
		v.log.Warn("ownerOf lookup failed, treating as not owned",
			zap.String("contract", nftContract.Hex()),
			zap.String("tokenId", tokenID.String()),
			zap.Error(err))
		return false
	}
	return strings.EqualFold(owner.Hex(), v.payoutWallet.Hex())
}

// BatchResult reports ownership across a set of tokens.
type BatchResult struct {
	// AllOwned is true only when every token is held by the payout wallet.
	AllOwned bool

	// Failed lists token ids that are not held, or whose lookup failed.
	Failed []*big.Int
}

// OwnsAll checks a batch of tokens and returns the ids that failed
// verification alongside the overall result.
func (v *Verifier) OwnsAll(ctx context.Context, nftContract common.Address, tokenIDs []*big.Int) BatchResult {
	result := BatchResult{AllOwned: true}
	for _, id := range tokenIDs {
		if !v.Owns(ctx, nftContract, id) {
			result.AllOwned = false
			result.Failed = append(result.Failed, id)
		}
	}
	return result
}

func (v *Verifier) ownerOf(ctx context.Context, nftContract common.Address, tokenID *big.Int) (common.Address, error) {
	data, err := erc721ABI.Pack("ownerOf", tokenID)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to pack ownerOf: %w", err)
	}

	raw, err := v.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &nftContract,
		Data: data,
	}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("ownerOf call failed: %w", err)
	}

	outputs, err := erc721ABI.Unpack("ownerOf", raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unpack ownerOf result: %w", err)
	}
	if len(outputs) != 1 {
		return common.Address{}, fmt.Errorf("ownerOf: unexpected result len %d", len(outputs))
	}
	owner, ok := outputs[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("ownerOf: unexpected result type %T", outputs[0])
	}
	return owner, nil
}
