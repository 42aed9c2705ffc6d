package verify

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainReader is the read-only RPC dependency shared by both verifiers,
// satisfied by *ethclient.Client.
type ChainReader interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// ObservedTransfer is one ERC-20 Transfer seen while scanning a receipt.
// Diagnostics carry these so an operator can see what the transaction
// actually moved without issuing further RPC calls.
type ObservedTransfer struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Value      string `json:"value"`
	LogAddress string `json:"logAddress"`
}

// maxObservedTransfers caps the diagnostics list; busy DEX transactions
// can carry dozens of transfers.
const maxObservedTransfers = 10

// TransferDiagnostics explains a transfer-verification outcome.
type TransferDiagnostics struct {
	ExpectedToken     string             `json:"expectedToken"`
	ExpectedRecipient string             `json:"expectedRecipient"`
	ExpectedValue     string             `json:"expectedValue"`
	TotalTransfers    int                `json:"totalTransfers"`
	MatchingTransfers int                `json:"matchingTransfers"`
	Observed          []ObservedTransfer `json:"observed"`
}

// TransferResult is the outcome of VerifyTransfer. Expected failures set
// IsValid=false with a Code; only unexpected faults surface as Go errors.
type TransferResult struct {
	IsValid       bool
	Code          string
	InvalidReason string

	// Payer is the authoritative economic payer: the matched Transfer
	// log's from address, never the transaction sender.
	Payer         string
	Recipient     string
	Value         *big.Int
	TokenContract string
	BlockNumber   uint64

	// MatchCount exposes ambiguity when several transfers in one
	// transaction qualify. The first match wins; callers layer any
	// double-payment policy on top.
	MatchCount int

	Diagnostics *TransferDiagnostics
}

// BindingDiagnostics explains a contract-call binding outcome.
type BindingDiagnostics struct {
	ExpectedContract   string `json:"expectedContract"`
	ActualContract     string `json:"actualContract,omitempty"`
	ExpectedMethod     string `json:"expectedMethod"`
	DecodedMethod      string `json:"decodedMethod,omitempty"`
	ExpectedResourceID string `json:"expectedResourceId"`
	DecodedResourceID  string `json:"decodedResourceId,omitempty"`
	ExpectedAmount     string `json:"expectedAmount"`
	ActualAmount       string `json:"actualAmount,omitempty"`
	Payer              string `json:"payer,omitempty"`
	AllowedPayerCount  int    `json:"allowedPayerCount"`
}

// BindingResult is the outcome of VerifyJoin.
type BindingResult struct {
	IsValid       bool
	Code          string
	InvalidReason string

	ResourceID   string
	Payer        string
	ActualAmount *big.Int
	BlockNumber  uint64

	// AmountMismatch is a soft signal: the call was real and bound to
	// this game, but the amount seen differs from the expected entry
	// fee. Callers must check on-chain participation state before
	// acting on a flagged transaction.
	AmountMismatch bool

	Diagnostics *BindingDiagnostics
}
