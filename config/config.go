// Package config loads the immutable startup configuration. Components
// receive a validated Config by injection; nothing in the module reads
// the environment after startup.
package config

import (
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	chainkit "github.com/wagerparty/chainkit"
)

// Config holds every address and credential the chain core needs. All
// fields are required except SignerKey, which only the registrar and CLI
// write paths use.
type Config struct {
	// RPCURL is the HTTPS JSON-RPC endpoint for the configured chain.
	RPCURL string

	// ChainID of the target chain. Base mainnet (8453) in production.
	ChainID *big.Int

	// EscrowAddress is the deployed escrow contract.
	EscrowAddress common.Address

	// StableTokenAddress is the ERC-20 stable token the escrow accepts.
	StableTokenAddress common.Address

	// SignerKey is the hex-encoded private key authorized to register games.
	SignerKey string

	// SignerAddress is the address the key is expected to derive to. The
	// registrar refuses to start if the derived address differs.
	SignerAddress common.Address

	// PayoutWallet holds prize assets; custody checks compare against it.
	PayoutWallet common.Address
}

// Load builds a Config from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		RPCURL:    getEnv("CHAIN_RPC_URL", ""),
		SignerKey: getEnv("CHAIN_SIGNER_KEY", ""),
	}

	cfg.ChainID = new(big.Int).Set(chainkit.ChainIDBase)
	if raw := os.Getenv("CHAIN_ID"); raw != "" {
		// A set-but-unparseable chain id must never fall back to the
		// mainnet default; that would point the signer at the wrong chain.
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, &chainkit.ConfigError{Field: "CHAIN_ID", Message: "not a valid chain id: " + raw}
		}
		cfg.ChainID = big.NewInt(int64(n))
	}

	var err error
	if cfg.EscrowAddress, err = requireAddress("CHAIN_ESCROW_ADDRESS"); err != nil {
		return nil, err
	}
	if cfg.StableTokenAddress, err = requireAddress("CHAIN_STABLE_TOKEN_ADDRESS"); err != nil {
		return nil, err
	}
	if cfg.SignerAddress, err = requireAddress("CHAIN_SIGNER_ADDRESS"); err != nil {
		return nil, err
	}
	if cfg.PayoutWallet, err = requireAddress("CHAIN_PAYOUT_WALLET"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants that do not depend on the environment,
// so tests can construct configs directly.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return &chainkit.ConfigError{Field: "RPCURL", Message: "rpc url is required"}
	}
	if c.ChainID == nil || c.ChainID.Sign() <= 0 {
		return &chainkit.ConfigError{Field: "ChainID", Message: "chain id must be positive"}
	}
	if c.EscrowAddress == (common.Address{}) {
		return &chainkit.ConfigError{Field: "EscrowAddress", Message: "escrow contract address is required"}
	}
	if c.StableTokenAddress == (common.Address{}) {
		return &chainkit.ConfigError{Field: "StableTokenAddress", Message: "stable token address is required"}
	}
	if c.PayoutWallet == (common.Address{}) {
		return &chainkit.ConfigError{Field: "PayoutWallet", Message: "payout wallet address is required"}
	}
	return nil
}

func requireAddress(key string) (common.Address, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return common.Address{}, &chainkit.ConfigError{Field: key, Message: "required address is not set"}
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, &chainkit.ConfigError{Field: key, Message: "not a valid hex address: " + raw}
	}
	return common.HexToAddress(raw), nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
