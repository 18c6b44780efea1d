package store

import (
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

func event(block uint64) domain.SwapEvent {
	return domain.SwapEvent{
		Pool:        "0x1F98431c8aD98523631AE4a59f267346ea31F984",
		Sender:      "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
		AmountIn:    big.NewInt(100),
		Fee:         big.NewInt(1),
		AmountOut:   big.NewInt(99),
		QuoteDelta:  big.NewInt(-99),
		TxHash:      fmt.Sprintf("0x%064x", block),
		BlockNumber: block,
	}
}

func TestEventStoreAppendAndSnapshot(t *testing.T) {
	s := NewEventStore(10)

	for b := uint64(1); b <= 5; b++ {
		evicted := s.Append(event(b))
		assert.Empty(t, evicted)
	}

	got := s.Snapshot(0, 0)
	require.Len(t, got, 5)
	assert.Equal(t, uint64(1), got[0].BlockNumber)
	assert.Equal(t, uint64(5), got[4].BlockNumber)
	assert.Equal(t, 5, s.Len())
	assert.Equal(t, uint64(5), s.Total())
}

func TestEventStoreEvictsOldest(t *testing.T) {
	s := NewEventStore(3)

	for b := uint64(1); b <= 3; b++ {
		require.Empty(t, s.Append(event(b)))
	}

	evicted := s.Append(event(4))
	require.Len(t, evicted, 1)
	assert.Equal(t, uint64(1), evicted[0].BlockNumber)

	got := s.Snapshot(0, 0)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(2), got[0].BlockNumber)
	assert.Equal(t, uint64(4), got[2].BlockNumber)
	assert.Equal(t, uint64(4), s.Total())
}

func TestEventStoreSnapshotLimitAndSince(t *testing.T) {
	s := NewEventStore(100)
	for b := uint64(1); b <= 20; b++ {
		s.Append(event(b))
	}

	// Limit keeps the newest entries.
	got := s.Snapshot(5, 0)
	require.Len(t, got, 5)
	assert.Equal(t, uint64(16), got[0].BlockNumber)
	assert.Equal(t, uint64(20), got[4].BlockNumber)

	// since filters before the limit applies.
	got = s.Snapshot(3, 18)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(18), got[0].BlockNumber)

	got = s.Snapshot(0, 19)
	require.Len(t, got, 2)
}

func TestEventStoreSnapshotIsCopy(t *testing.T) {
	s := NewEventStore(10)
	s.Append(event(1))

	got := s.Snapshot(0, 0)
	got[0].BlockNumber = 999

	assert.Equal(t, uint64(1), s.Snapshot(0, 0)[0].BlockNumber)
}

func TestEventStoreConcurrentAppend(t *testing.T) {
	s := NewEventStore(50)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			for i := uint64(0); i < 100; i++ {
				s.Append(event(seed*1000 + i))
				s.Snapshot(10, 0)
			}
		}(uint64(w))
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
	assert.Equal(t, uint64(800), s.Total())
}
