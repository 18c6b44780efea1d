package chain

import (
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	testPool   = "0x1f98431c8ad98523631ae4a59f267346ea31f984"
	testSender = "0x000000000000000000000000ab5801a7d398351b8be11c439e05c5b3259aec9b"
)

func swapLog(t *testing.T, zeroToOne bool, amountIn, fee, amountOut, quoteDelta *big.Int) domain.RawLog {
	t.Helper()

	data, err := swapDataArgs.Pack(zeroToOne, amountIn, fee, amountOut, quoteDelta)
	require.NoError(t, err)

	return domain.RawLog{
		Address:         testPool,
		Topics:          []string{SwapTopic0.Hex(), testSender},
		Data:            hexutil.Encode(data),
		BlockNumber:     json.RawMessage(`"0x1b4"`),
		TransactionHash: "0xabc123",
		LogIndex:        json.RawMessage(`7`),
	}
}

func TestDecodeSwapLog(t *testing.T) {
	l := swapLog(t, true, big.NewInt(1000), big.NewInt(3), big.NewInt(995), big.NewInt(-995))

	ev, err := DecodeSwapLog(l)
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress(testPool).Hex(), ev.Pool)
	assert.Equal(t, "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", ev.Sender)
	assert.True(t, ev.ZeroToOne)
	assert.Equal(t, int64(1000), ev.AmountIn.Int64())
	assert.Equal(t, int64(3), ev.Fee.Int64())
	assert.Equal(t, int64(995), ev.AmountOut.Int64())
	assert.Equal(t, int64(-995), ev.QuoteDelta.Int64())
	assert.Equal(t, uint64(0x1b4), ev.BlockNumber)
	assert.Equal(t, uint64(7), ev.LogIndex)
	assert.Equal(t, "0xabc123", ev.TxHash)
}

func TestDecodeSwapLogDeterministic(t *testing.T) {
	l := swapLog(t, false, big.NewInt(42), big.NewInt(1), big.NewInt(40), big.NewInt(40))

	first, err := DecodeSwapLog(l)
	require.NoError(t, err)
	second, err := DecodeSwapLog(l)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDecodeSwapLogRejectsForeignTopic(t *testing.T) {
	l := swapLog(t, true, big.NewInt(1), big.NewInt(0), big.NewInt(1), big.NewInt(-1))
	l.Topics[0] = "0x" + "11" + l.Topics[0][4:]

	_, err := DecodeSwapLog(l)
	assert.ErrorIs(t, err, domain.ErrNotSwapLog)
}

func TestDecodeSwapLogRejectsMissingSenderTopic(t *testing.T) {
	l := swapLog(t, true, big.NewInt(1), big.NewInt(0), big.NewInt(1), big.NewInt(-1))
	l.Topics = l.Topics[:1]

	_, err := DecodeSwapLog(l)
	assert.ErrorIs(t, err, domain.ErrNotSwapLog)
}

func TestDecodeSwapLogRejectsShortData(t *testing.T) {
	l := swapLog(t, true, big.NewInt(1), big.NewInt(0), big.NewInt(1), big.NewInt(-1))
	l.Data = "0xdeadbeef"

	_, err := DecodeSwapLog(l)
	assert.ErrorIs(t, err, domain.ErrMalformedLog)
}

func TestDecodeSwapLogRejectsBadBlockNumber(t *testing.T) {
	l := swapLog(t, true, big.NewInt(1), big.NewInt(0), big.NewInt(1), big.NewInt(-1))
	l.BlockNumber = json.RawMessage(`"not-a-number"`)

	_, err := DecodeSwapLog(l)
	assert.ErrorIs(t, err, domain.ErrMalformedLog)
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want uint64
	}{
		{"hex string", `"0x1b4"`, 436},
		{"decimal string", `"436"`, 436},
		{"native number", `436`, 436},
		{"null", `null`, 0},
		{"empty", ``, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseQuantity(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChecksumAddress(t *testing.T) {
	got, err := ChecksumAddress("0xab5801a7d398351b8be11c439e05c5b3259aec9b")
	require.NoError(t, err)
	assert.Equal(t, "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", got)

	_, err = ChecksumAddress("not-an-address")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestSubscriberWatchedSet(t *testing.T) {
	sub := NewSubscriber("ws://localhost:8546", []string{common.HexToAddress(testPool).Hex()}, nil, discardLogger())

	assert.False(t, sub.AddWatched(common.HexToAddress(testPool).Hex()))
	assert.True(t, sub.AddWatched("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"))
	assert.False(t, sub.AddWatched("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"))

	watched := sub.Watched()
	require.Len(t, watched, 2)
	assert.Equal(t, "0x1F98431c8aD98523631AE4a59f267346ea31F984", watched[0])

	state, subID, _ := sub.Status()
	assert.Equal(t, StateDisconnected, state)
	assert.Empty(t, subID)
}
