package hyperliquid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawLevelUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		json string
		px   float64
		sz   float64
	}{
		{"object with string numbers", `{"px":"5.0","sz":"3.25","n":2}`, 5.0, 3.25},
		{"object with native numbers", `{"px":5.0,"sz":3.25}`, 5.0, 3.25},
		{"positional pair of strings", `["5.0","3.25"]`, 5.0, 3.25},
		{"positional pair of numbers", `[5.0,3.25]`, 5.0, 3.25},
		{"mixed pair", `[5.0,"3.25"]`, 5.0, 3.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l rawLevel
			require.NoError(t, json.Unmarshal([]byte(tt.json), &l))
			assert.Equal(t, tt.px, l.Px)
			assert.Equal(t, tt.sz, l.Sz)
		})
	}
}

func TestRawLevelUnmarshalRejectsGarbage(t *testing.T) {
	for _, bad := range []string{`"five"`, `[5.0]`, `{"px":"x","sz":"1"}`, `42`} {
		var l rawLevel
		assert.Error(t, json.Unmarshal([]byte(bad), &l), "input %s", bad)
	}
}

func TestL2BookResponseDecodes(t *testing.T) {
	payload := `{
		"coin": "PURR/USDC",
		"levels": [
			[{"px":"9.9","sz":"10"},{"px":"9.8","sz":"5"}],
			[["10.1","4"],["10.2","8"]]
		]
	}`

	var resp l2BookResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &resp))

	require.Len(t, resp.Levels, 2)
	require.Len(t, resp.Levels[0], 2)
	require.Len(t, resp.Levels[1], 2)
	assert.Equal(t, 9.9, resp.Levels[0][0].Px)
	assert.Equal(t, 10.1, resp.Levels[1][0].Px)
	assert.Equal(t, 8.0, resp.Levels[1][1].Sz)
}

func TestToAck(t *testing.T) {
	var resp orderResponse
	require.NoError(t, json.Unmarshal([]byte(`{
		"status": "ok",
		"response": {"type":"order","data":{"statuses":[{"filled":{"oid":77,"totalSz":"3","avgPx":"5"}}]}}
	}`), &resp))

	ack := toAck(resp)
	assert.True(t, ack.Accepted)
	assert.Equal(t, "77", ack.OrderID)

	require.NoError(t, json.Unmarshal([]byte(`{
		"status": "ok",
		"response": {"type":"order","data":{"statuses":[{"error":"insufficient margin"}]}}
	}`), &resp))

	ack = toAck(resp)
	assert.False(t, ack.Accepted)
	assert.Equal(t, "insufficient margin", ack.Reason)
}
