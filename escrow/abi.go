package escrow

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Function and event names on the escrow contract.
const (
	MethodCreateGame  = "createGame"
	MethodJoinGame    = "joinGame"
	MethodGetGame     = "getGame"
	EventPlayerJoined = "PlayerJoined"
)

// TransferEventSig is the canonical ERC-20 Transfer(address,address,uint256)
// topic hash.
var TransferEventSig = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

const escrowABIJSON = `[
  {
    "inputs": [
      {"internalType": "string", "name": "gameId", "type": "string"},
      {"internalType": "address", "name": "currency", "type": "address"},
      {"internalType": "uint256", "name": "entryFee", "type": "uint256"}
    ],
    "name": "createGame",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "string", "name": "gameId", "type": "string"}
    ],
    "name": "joinGame",
    "outputs": [],
    "stateMutability": "payable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "string", "name": "gameId", "type": "string"}
    ],
    "name": "getGame",
    "outputs": [
      {"internalType": "string", "name": "gameId", "type": "string"},
      {"internalType": "address", "name": "currency", "type": "address"},
      {"internalType": "uint256", "name": "entryFee", "type": "uint256"},
      {"internalType": "uint256", "name": "totalCollected", "type": "uint256"},
      {"internalType": "bool", "name": "isActive", "type": "bool"},
      {"internalType": "bool", "name": "isSettled", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "string", "name": "gameId", "type": "string"},
      {"indexed": true, "internalType": "address", "name": "player", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "bool", "name": "isNative", "type": "bool"}
    ],
    "name": "PlayerJoined",
    "type": "event"
  }
]`

var (
	escrowABI       abi.ABI
	playerJoinedSig common.Hash
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(escrowABIJSON))
	if err != nil {
		panic("failed to parse escrow ABI: " + err.Error())
	}
	escrowABI = parsed
	playerJoinedSig = escrowABI.Events[EventPlayerJoined].ID
}

// ABI returns the parsed escrow contract ABI.
func ABI() abi.ABI {
	return escrowABI
}

// PlayerJoinedSig is the PlayerJoined event topic hash.
func PlayerJoinedSig() common.Hash {
	return playerJoinedSig
}
