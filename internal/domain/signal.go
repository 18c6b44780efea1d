package domain

import "context"

// Pub/sub channels carrying JSON envelopes to the WebSocket hub.
const (
	ChannelSwap      = "ch:swap"
	ChannelRebalance = "ch:rebalance"
	ChannelStatus    = "ch:status"
)

// Envelope message kinds pushed to WebSocket clients.
const (
	MsgTypeHello           = "hello"
	MsgTypeSwap            = "swap"
	MsgTypeStatus          = "status"
	MsgTypeRebalanceIntent = "rebalance_intent"
	MsgTypeRebalanceResult = "rebalance_result"
)

// Envelope is the JSON-tagged wrapper for every message on the push channel.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// SignalBus is the broadcast fan-out between the ingestion/decision pipeline
// and the WebSocket hub. Implemented by cache/redis.SignalBus.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
