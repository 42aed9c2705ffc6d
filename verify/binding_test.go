package verify

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	chainkit "github.com/wagerparty/chainkit"
	"github.com/wagerparty/chainkit/config"
	"github.com/wagerparty/chainkit/escrow"
	"github.com/wagerparty/chainkit/identity"
)

func joinData(t *testing.T, resourceID string) []byte {
	t.Helper()
	data, err := escrow.ABI().Pack(escrow.MethodJoinGame, resourceID)
	require.NoError(t, err)
	return data
}

func allowed(addrs ...common.Address) *identity.AllowedPayerSet {
	hex := make([]string, len(addrs))
	for i, a := range addrs {
		hex[i] = strings.ToLower(a.Hex())
	}
	return identity.NewAllowedPayerSet("user-1", hex...)
}

func TestVerifyJoinTokenRailSuccess(t *testing.T) {
	chain := newMockChain()
	key, payer := testKey(t)
	tx := signedTx(t, key, &testEscrow, big.NewInt(0), joinData(t, "game-A"))
	hash := chain.add(tx, successReceipt(
		transferLog(testToken, payer, testEscrow, big.NewInt(5000000)),
	))

	result, err := testVerifier(chain).VerifyJoin(
		context.Background(), hash, "game-A", allowed(payer), big.NewInt(5000000))
	require.NoError(t, err)

	require.True(t, result.IsValid)
	assert.Equal(t, "game-A", result.ResourceID)
	assert.Equal(t, strings.ToLower(payer.Hex()), result.Payer)
	assert.False(t, result.AmountMismatch)
	assert.Equal(t, "5000000", result.ActualAmount.String())
	assert.Equal(t, uint64(31337), result.BlockNumber)
}

func TestVerifyJoinResourceIDMismatch(t *testing.T) {
	// A real, correctly paid join for game-B must not verify for game-A.
	chain := newMockChain()
	key, payer := testKey(t)
	tx := signedTx(t, key, &testEscrow, big.NewInt(0), joinData(t, "game-B"))
	hash := chain.add(tx, successReceipt(
		transferLog(testToken, payer, testEscrow, big.NewInt(5000000)),
	))

	result, err := testVerifier(chain).VerifyJoin(
		context.Background(), hash, "game-A", allowed(payer), big.NewInt(5000000))
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Equal(t, chainkit.ErrCodeResourceIDMismatch, result.Code)
	require.NotNil(t, result.Diagnostics)
	assert.Equal(t, "game-B", result.Diagnostics.DecodedResourceID)
}

func TestVerifyJoinPayerNotAllowed(t *testing.T) {
	chain := newMockChain()
	key, payer := testKey(t)
	tx := signedTx(t, key, &testEscrow, big.NewInt(0), joinData(t, "game-A"))
	hash := chain.add(tx, successReceipt(
		transferLog(testToken, payer, testEscrow, big.NewInt(5000000)),
	))

	result, err := testVerifier(chain).VerifyJoin(
		context.Background(), hash, "game-A", allowed(someoneElse), big.NewInt(5000000))
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Equal(t, chainkit.ErrCodePayerNotAllowed, result.Code)
}

func TestVerifyJoinEmptyPayerSetFailsClosed(t *testing.T) {
	chain := newMockChain()
	key, payer := testKey(t)
	tx := signedTx(t, key, &testEscrow, big.NewInt(0), joinData(t, "game-A"))
	hash := chain.add(tx, successReceipt(
		transferLog(testToken, payer, testEscrow, big.NewInt(5000000)),
	))

	result, err := testVerifier(chain).VerifyJoin(
		context.Background(), hash, "game-A", nil, big.NewInt(5000000))
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Equal(t, chainkit.ErrCodePayerNotAllowed, result.Code)
}

func TestVerifyJoinWrongContract(t *testing.T) {
	chain := newMockChain()
	key, payer := testKey(t)
	tx := signedTx(t, key, &someoneElse, big.NewInt(0), joinData(t, "game-A"))
	hash := chain.add(tx, successReceipt())

	result, err := testVerifier(chain).VerifyJoin(
		context.Background(), hash, "game-A", allowed(payer), big.NewInt(5000000))
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Equal(t, chainkit.ErrCodeWrongContract, result.Code)
}

func TestVerifyJoinMissingInput(t *testing.T) {
	chain := newMockChain()
	key, payer := testKey(t)
	tx := signedTx(t, key, &testEscrow, big.NewInt(1), nil)
	hash := chain.add(tx, successReceipt())

	result, err := testVerifier(chain).VerifyJoin(
		context.Background(), hash, "game-A", allowed(payer), big.NewInt(5000000))
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Equal(t, chainkit.ErrCodeMissingInput, result.Code)
}

func TestVerifyJoinNotExpectedCall(t *testing.T) {
	chain := newMockChain()
	key, payer := testKey(t)

	createData, err := escrow.PackCreateGame("game-A", common.Address{}, big.NewInt(5000000))
	require.NoError(t, err)
	tx := signedTx(t, key, &testEscrow, big.NewInt(0), createData)
	hash := chain.add(tx, successReceipt())

	result, err := testVerifier(chain).VerifyJoin(
		context.Background(), hash, "game-A", allowed(payer), big.NewInt(5000000))
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Equal(t, chainkit.ErrCodeNotExpectedCall, result.Code)
	assert.Equal(t, escrow.MethodCreateGame, result.Diagnostics.DecodedMethod)
}

func TestVerifyJoinUndecodableCallData(t *testing.T) {
	chain := newMockChain()
	key, payer := testKey(t)
	tx := signedTx(t, key, &testEscrow, big.NewInt(0), []byte{0xde, 0xad, 0xbe, 0xef})
	hash := chain.add(tx, successReceipt())

	result, err := testVerifier(chain).VerifyJoin(
		context.Background(), hash, "game-A", allowed(payer), big.NewInt(5000000))
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Equal(t, chainkit.ErrCodeNotExpectedCall, result.Code)
}

func TestVerifyJoinRevertedTransaction(t *testing.T) {
	chain := newMockChain()
	key, payer := testKey(t)
	tx := signedTx(t, key, &testEscrow, big.NewInt(0), joinData(t, "game-A"))
	hash := chain.add(tx, &types.Receipt{
		Status:      types.ReceiptStatusFailed,
		BlockNumber: big.NewInt(31337),
	})

	result, err := testVerifier(chain).VerifyJoin(
		context.Background(), hash, "game-A", allowed(payer), big.NewInt(5000000))
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Equal(t, chainkit.ErrCodeTransactionFailed, result.Code)
}

func TestVerifyJoinNativeRailTolerance(t *testing.T) {
	expected := big.NewInt(1000000000000000000) // 1 ETH

	tests := []struct {
		name     string
		value    *big.Int
		mismatch bool
	}{
		{"exact", big.NewInt(1000000000000000000), false},
		{"within one percent under", big.NewInt(995000000000000000), false},
		{"within one percent over", big.NewInt(1005000000000000000), false},
		{"two percent under", big.NewInt(980000000000000000), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newMockChain()
			key, payer := testKey(t)
			tx := signedTx(t, key, &testEscrow, tt.value, joinData(t, "game-A"))
			hash := chain.add(tx, successReceipt())

			result, err := testVerifier(chain).VerifyJoin(
				context.Background(), hash, "game-A", allowed(payer), expected)
			require.NoError(t, err)

			require.True(t, result.IsValid)
			assert.Equal(t, tt.mismatch, result.AmountMismatch)
			assert.Equal(t, tt.value.String(), result.ActualAmount.String())
		})
	}
}

func TestVerifyJoinTokenRailRequiresExactTransfer(t *testing.T) {
	chain := newMockChain()
	key, payer := testKey(t)
	tx := signedTx(t, key, &testEscrow, big.NewInt(0), joinData(t, "game-A"))
	hash := chain.add(tx, successReceipt(
		transferLog(testToken, payer, testEscrow, big.NewInt(4990000)),
	))

	result, err := testVerifier(chain).VerifyJoin(
		context.Background(), hash, "game-A", allowed(payer), big.NewInt(5000000))
	require.NoError(t, err)

	// Still a verified join of the right game by the right payer; the
	// amount deviation is a flag, not a rejection.
	require.True(t, result.IsValid)
	assert.True(t, result.AmountMismatch)
	assert.Equal(t, chainkit.ErrCodeAmountMismatch, result.Code)
	assert.Equal(t, "4990000", result.ActualAmount.String())
}

func TestVerifyJoinTokenRailMissingTransferFlags(t *testing.T) {
	chain := newMockChain()
	key, payer := testKey(t)
	tx := signedTx(t, key, &testEscrow, big.NewInt(0), joinData(t, "game-A"))
	hash := chain.add(tx, successReceipt())

	result, err := testVerifier(chain).VerifyJoin(
		context.Background(), hash, "game-A", allowed(payer), big.NewInt(5000000))
	require.NoError(t, err)

	require.True(t, result.IsValid)
	assert.True(t, result.AmountMismatch)
	assert.Equal(t, "0", result.ActualAmount.String())
}

func TestVerifyJoinIgnoresTransfersFromOthers(t *testing.T) {
	// A third party's exact-amount transfer must not satisfy the
	// sender-bound token rail check.
	chain := newMockChain()
	key, payer := testKey(t)
	tx := signedTx(t, key, &testEscrow, big.NewInt(0), joinData(t, "game-A"))
	hash := chain.add(tx, successReceipt(
		transferLog(testToken, someoneElse, testEscrow, big.NewInt(5000000)),
	))

	result, err := testVerifier(chain).VerifyJoin(
		context.Background(), hash, "game-A", allowed(payer), big.NewInt(5000000))
	require.NoError(t, err)

	require.True(t, result.IsValid)
	assert.True(t, result.AmountMismatch)
}

func observedVerifier(chain ChainReader) (*Verifier, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	v := New(&config.Config{
		RPCURL:             "https://mainnet.base.org",
		ChainID:            testChainID,
		EscrowAddress:      testEscrow,
		StableTokenAddress: testToken,
		PayoutWallet:       testPayout,
	}, chain, zap.New(core))
	return v, logs
}

func playerJoinedLog(resourceID string, player common.Address) *types.Log {
	return &types.Log{
		Address: testEscrow,
		Topics: []common.Hash{
			escrow.PlayerJoinedSig(),
			escrow.ResourceIDTopic(resourceID),
			addressTopic(player),
		},
	}
}

func TestVerifyJoinEventMismatchWarnsButNeverVetoes(t *testing.T) {
	// The call data is authoritative. A PlayerJoined event naming a
	// different game is logged as suspicious and nothing more.
	value := big.NewInt(1000000000000000000)
	chain := newMockChain()
	key, payer := testKey(t)
	tx := signedTx(t, key, &testEscrow, value, joinData(t, "game-A"))
	hash := chain.add(tx, successReceipt(playerJoinedLog("game-B", payer)))

	v, logs := observedVerifier(chain)
	result, err := v.VerifyJoin(context.Background(), hash, "game-A", allowed(payer), value)
	require.NoError(t, err)

	require.True(t, result.IsValid)
	assert.False(t, result.AmountMismatch)
	assert.Empty(t, result.Code)
	assert.Equal(t, 1, logs.FilterMessage("PlayerJoined event names a different game than the call data").Len())
}

func TestVerifyJoinEventMatchIsSilent(t *testing.T) {
	value := big.NewInt(1000000000000000000)
	chain := newMockChain()
	key, payer := testKey(t)
	tx := signedTx(t, key, &testEscrow, value, joinData(t, "game-A"))
	hash := chain.add(tx, successReceipt(playerJoinedLog("game-A", payer)))

	v, logs := observedVerifier(chain)
	result, err := v.VerifyJoin(context.Background(), hash, "game-A", allowed(payer), value)
	require.NoError(t, err)

	require.True(t, result.IsValid)
	assert.Zero(t, logs.Len())
}

func TestVerifyJoinNilExpectedAmount(t *testing.T) {
	chain := newMockChain()
	key, payer := testKey(t)
	tx := signedTx(t, key, &testEscrow, big.NewInt(10000000000000000), joinData(t, "game-A"))
	hash := chain.add(tx, successReceipt())

	result, err := testVerifier(chain).VerifyJoin(
		context.Background(), hash, "game-A", allowed(payer), nil)
	require.NoError(t, err)

	require.True(t, result.IsValid)
	assert.True(t, result.AmountMismatch)
	assert.Equal(t, "10000000000000000", result.ActualAmount.String())
}

func TestVerifyJoinNotFound(t *testing.T) {
	chain := newMockChain()

	result, err := testVerifier(chain).VerifyJoin(
		context.Background(), common.HexToHash("0xdead"), "game-A", allowed(someoneElse), big.NewInt(1))
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Equal(t, chainkit.ErrCodeNotFound, result.Code)
}
