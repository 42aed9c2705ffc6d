// Package chainkit is the on-chain verification and idempotent-write core
// for the wager platform. It establishes, without trusting the client, that
// a claimed payment transaction really happened, was addressed to the escrow
// contract, carried the right amount, and is bound to exactly one game.
//
// The package tree mirrors the flow: money converts human amounts to raw
// token units, identity resolves which addresses a player may pay from,
// verify inspects claimed transactions, registrar performs the one
// authorized on-chain write, and custody gates prize promises.
//
// All verification is read-only and side-effect free. Only registrar
// submits transactions, and it is explicitly safe to retry.
package chainkit

import "math/big"

// ChainIDBase is the chain this deployment targets (Base mainnet).
var ChainIDBase = big.NewInt(8453)

// ZeroAddress is the sentinel token address for native-coin games.
const ZeroAddress = "0x0000000000000000000000000000000000000000"
