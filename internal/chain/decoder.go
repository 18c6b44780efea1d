// Package chain talks to the EVM node: it decodes Swap logs, maintains the
// streaming log subscription, and reads vault balances over eth_call.
package chain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

// SwapEventSignature is the canonical signature of the pool's Swap event:
// sender is indexed, the remaining fields live in the data payload.
const SwapEventSignature = "Swap(address,bool,uint256,uint256,uint256,int256)"

// SwapTopic0 is the precomputed keccak256 hash of SwapEventSignature, matched
// against topics[0] of every incoming log.
var SwapTopic0 = crypto.Keccak256Hash([]byte(SwapEventSignature))

// swapDataArgs describes the non-indexed tuple in the Swap event data:
// (isZeroToOne bool, amountIn uint256, fee uint256, amountOut uint256,
// quoteDelta int256).
var swapDataArgs = abi.Arguments{
	{Type: mustType("bool")},
	{Type: mustType("uint256")},
	{Type: mustType("uint256")},
	{Type: mustType("uint256")},
	{Type: mustType("int256")},
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("chain: bad abi type %q: %v", t, err))
	}
	return typ
}

// DecodeSwapLog decodes a raw eth_subscribe log record into a SwapEvent. It
// is pure: same input bytes always yield the identical event. Any shape
// problem yields an error and no partial event.
func DecodeSwapLog(l domain.RawLog) (domain.SwapEvent, error) {
	if len(l.Topics) < 2 {
		return domain.SwapEvent{}, fmt.Errorf("chain: %w: want >= 2 topics, got %d", domain.ErrNotSwapLog, len(l.Topics))
	}
	if common.HexToHash(l.Topics[0]) != SwapTopic0 {
		return domain.SwapEvent{}, fmt.Errorf("chain: %w: topic0 %s", domain.ErrNotSwapLog, l.Topics[0])
	}

	// topics[1] carries the indexed sender, left-padded to 32 bytes.
	sender := common.BytesToAddress(common.HexToHash(l.Topics[1]).Bytes()[12:])

	data, err := hexutil.Decode(l.Data)
	if err != nil {
		return domain.SwapEvent{}, fmt.Errorf("chain: %w: data: %v", domain.ErrMalformedLog, err)
	}
	vals, err := swapDataArgs.Unpack(data)
	if err != nil {
		return domain.SwapEvent{}, fmt.Errorf("chain: %w: abi unpack: %v", domain.ErrMalformedLog, err)
	}

	zeroToOne, ok := vals[0].(bool)
	if !ok {
		return domain.SwapEvent{}, fmt.Errorf("chain: %w: field 0 is not bool", domain.ErrMalformedLog)
	}
	amountIn, ok := vals[1].(*big.Int)
	if !ok {
		return domain.SwapEvent{}, fmt.Errorf("chain: %w: field 1 is not uint256", domain.ErrMalformedLog)
	}
	fee, ok := vals[2].(*big.Int)
	if !ok {
		return domain.SwapEvent{}, fmt.Errorf("chain: %w: field 2 is not uint256", domain.ErrMalformedLog)
	}
	amountOut, ok := vals[3].(*big.Int)
	if !ok {
		return domain.SwapEvent{}, fmt.Errorf("chain: %w: field 3 is not uint256", domain.ErrMalformedLog)
	}
	quoteDelta, ok := vals[4].(*big.Int)
	if !ok {
		return domain.SwapEvent{}, fmt.Errorf("chain: %w: field 4 is not int256", domain.ErrMalformedLog)
	}

	blockNumber, err := parseQuantity(l.BlockNumber)
	if err != nil {
		return domain.SwapEvent{}, fmt.Errorf("chain: %w: blockNumber: %v", domain.ErrMalformedLog, err)
	}
	// logIndex is informational; a missing field decodes to zero.
	logIndex, _ := parseQuantity(l.LogIndex)

	return domain.SwapEvent{
		Pool:        common.HexToAddress(l.Address).Hex(),
		Sender:      sender.Hex(),
		ZeroToOne:   zeroToOne,
		AmountIn:    amountIn,
		Fee:         fee,
		AmountOut:   amountOut,
		QuoteDelta:  quoteDelta,
		TxHash:      l.TransactionHash,
		BlockNumber: blockNumber,
		LogIndex:    logIndex,
	}, nil
}

// parseQuantity normalizes a JSON-RPC quantity that providers deliver either
// as a hex string ("0x1b4") or as a native number.
func parseQuantity(raw json.RawMessage) (uint64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			return hexutil.DecodeUint64(strings.ToLower(s))
		}
		return strconv.ParseUint(s, 10, 64)
	}

	var n uint64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("not a quantity: %s", string(raw))
	}
	return n, nil
}

// ChecksumAddress validates addr and returns its EIP-55 checksummed form.
func ChecksumAddress(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("chain: %w: %q", domain.ErrInvalidAddress, addr)
	}
	return common.HexToAddress(addr).Hex(), nil
}
