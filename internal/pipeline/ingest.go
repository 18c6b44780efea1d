// Package pipeline connects the chain subscriber to storage, broadcast, and
// the rebalance trigger. One Ingestor instance handles every decoded swap.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
	"github.com/atlaslabs-io/hedgewatch/internal/store"
)

const (
	// persistBatchSize flushes the durable-store buffer when reached.
	persistBatchSize = 100

	// persistFlushInterval flushes partial batches on this cadence.
	persistFlushInterval = 2 * time.Second

	// persistBufferSize bounds the handoff channel. Ingestion never blocks on
	// a slow database; overflow events are dropped from persistence only (the
	// in-memory buffer and broadcast still see them).
	persistBufferSize = 1024
)

// Archiver receives events evicted from the bounded in-memory buffer.
type Archiver interface {
	Archive(events []domain.SwapEvent)
}

// Trigger is poked with each swap after it has been stored and broadcast.
// The rebalance engine implements it.
type Trigger interface {
	OnSwap(ctx context.Context, ev domain.SwapEvent)
}

// Ingestor fans each decoded swap out to the in-memory store, the signal
// bus, the optional durable store, the optional archiver, and the optional
// rebalance trigger. HandleSwap is cheap and non-blocking; only the
// persistence writes happen on a separate goroutine.
type Ingestor struct {
	events   *store.EventStore
	bus      domain.SignalBus
	swaps    domain.SwapStore // optional
	archiver Archiver         // optional
	trigger  Trigger          // optional
	logger   *slog.Logger

	persistCh chan domain.SwapEvent
}

// Deps bundles the Ingestor's collaborators. Swaps, Archiver, and Trigger
// may be nil.
type Deps struct {
	Events   *store.EventStore
	Bus      domain.SignalBus
	Swaps    domain.SwapStore
	Archiver Archiver
	Trigger  Trigger
	Logger   *slog.Logger
}

// NewIngestor creates an Ingestor.
func NewIngestor(deps Deps) *Ingestor {
	return &Ingestor{
		events:    deps.Events,
		bus:       deps.Bus,
		swaps:     deps.Swaps,
		archiver:  deps.Archiver,
		trigger:   deps.Trigger,
		logger:    deps.Logger.With(slog.String("component", "ingest")),
		persistCh: make(chan domain.SwapEvent, persistBufferSize),
	}
}

// HandleSwap processes one decoded swap event. It satisfies
// chain.EventHandler.
func (in *Ingestor) HandleSwap(ctx context.Context, ev domain.SwapEvent) {
	evicted := in.events.Append(ev)
	if in.archiver != nil && len(evicted) > 0 {
		in.archiver.Archive(evicted)
	}

	in.publish(ctx, ev)

	if in.swaps != nil {
		select {
		case in.persistCh <- ev:
		default:
			in.logger.Warn("persist buffer full, dropping event from durable store",
				slog.String("tx_hash", ev.TxHash),
			)
		}
	}

	if in.trigger != nil {
		// Fire and forget: a slow oracle or exchange must not stall the
		// read loop.
		go in.trigger.OnSwap(ctx, ev)
	}
}

// publish pushes the swap envelope to the bus. Broadcast is best-effort.
func (in *Ingestor) publish(ctx context.Context, ev domain.SwapEvent) {
	payload, err := json.Marshal(domain.Envelope{Type: domain.MsgTypeSwap, Data: ev})
	if err != nil {
		in.logger.Error("marshal swap envelope failed", slog.String("error", err.Error()))
		return
	}
	if err := in.bus.Publish(ctx, domain.ChannelSwap, payload); err != nil {
		in.logger.Warn("publish swap failed", slog.String("error", err.Error()))
	}
}

// Run drives the durable-store writer until ctx is cancelled. It batches
// events and flushes on size or interval, with one final flush on shutdown.
// Without a durable store it just blocks on ctx.
func (in *Ingestor) Run(ctx context.Context) error {
	if in.swaps == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(persistFlushInterval)
	defer ticker.Stop()

	batch := make([]domain.SwapEvent, 0, persistBatchSize)

	flush := func(flushCtx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := in.swaps.InsertBatch(flushCtx, batch); err != nil {
			in.logger.Error("insert swap batch failed",
				slog.Int("events", len(batch)),
				slog.String("error", err.Error()),
			)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			// Drain whatever already arrived, then flush once.
			for {
				select {
				case ev := <-in.persistCh:
					batch = append(batch, ev)
				default:
					flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					flush(flushCtx)
					cancel()
					return ctx.Err()
				}
			}
		case ev := <-in.persistCh:
			batch = append(batch, ev)
			if len(batch) >= persistBatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}
