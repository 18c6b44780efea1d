package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atlaslabs-io/hedgewatch/internal/chain"
	"github.com/atlaslabs-io/hedgewatch/internal/crypto"
	"github.com/atlaslabs-io/hedgewatch/internal/domain"
	"github.com/atlaslabs-io/hedgewatch/internal/pipeline"
	"github.com/atlaslabs-io/hedgewatch/internal/platform/hyperliquid"
	"github.com/atlaslabs-io/hedgewatch/internal/rebalance"
	"github.com/atlaslabs-io/hedgewatch/internal/server"
	"github.com/atlaslabs-io/hedgewatch/internal/server/handler"
	"github.com/atlaslabs-io/hedgewatch/internal/server/ws"
)

// WatchMode ingests swap events, serves them over HTTP and WebSocket, and
// optionally persists and archives them. No orders are ever placed.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	g, ctx := errgroup.WithContext(ctx)

	sub, err := a.startIngestion(ctx, g, deps, nil)
	if err != nil {
		return fmt.Errorf("watch mode: %w", err)
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, sub)
	}

	return g.Wait()
}

// FullMode runs everything watch mode does plus the rebalance engine: every
// ingested swap triggers a vault ratio check and, when warranted, an IOC
// sweep against the exchange book.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode",
		slog.String("market", a.cfg.Exchange.Market),
		slog.Bool("trading_enabled", a.cfg.TradingEnabled()),
	)

	// At most one instance may rebalance a market at a time.
	release, err := deps.Locks.Hold(ctx, "rebalance:"+a.cfg.Exchange.Market, 30*time.Second)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return fmt.Errorf("full mode: another instance is already rebalancing %s", a.cfg.Exchange.Market)
		}
		return fmt.Errorf("full mode: %w", err)
	}
	defer release()

	g, ctx := errgroup.WithContext(ctx)

	engine, err := a.buildRebalancer(ctx, deps)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	sub, err := a.startIngestion(ctx, g, deps, engine)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, sub)
	}

	return g.Wait()
}

// startIngestion builds the subscriber and ingestor pair and adds their run
// loops to the errgroup. trigger may be nil (watch mode).
func (a *App) startIngestion(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	trigger pipeline.Trigger,
) (*chain.Subscriber, error) {
	pool, err := chain.ChecksumAddress(a.cfg.Chain.PoolAddress)
	if err != nil {
		return nil, fmt.Errorf("pool address: %w", err)
	}

	ingestorDeps := pipeline.Deps{
		Events:  deps.Events,
		Bus:     deps.SignalBus,
		Swaps:   deps.SwapStore,
		Trigger: trigger,
		Logger:  a.logger,
	}
	if deps.Archiver != nil {
		ingestorDeps.Archiver = deps.Archiver
	}
	ingestor := pipeline.NewIngestor(ingestorDeps)

	sub := chain.NewSubscriber(a.cfg.Chain.WsURL, []string{pool}, ingestor.HandleSwap, a.logger)
	sub.OnStateChange(func(state chain.SubscriberState, subID string) {
		payload, err := json.Marshal(domain.Envelope{
			Type: domain.MsgTypeStatus,
			Data: map[string]any{
				"state":          string(state),
				"subscriptionId": subID,
				"at":             time.Now().UTC().Format(time.RFC3339),
			},
		})
		if err != nil {
			return
		}
		if err := deps.SignalBus.Publish(ctx, domain.ChannelStatus, payload); err != nil {
			a.logger.Debug("status publish failed", slog.String("error", err.Error()))
		}
	})

	g.Go(func() error {
		return sub.Run(ctx)
	})
	g.Go(func() error {
		return ingestor.Run(ctx)
	})
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx, time.Minute)
		})
	}

	return sub, nil
}

// buildRebalancer assembles the oracle, exchange clients, sweeper, and
// decision engine. With trading disabled it swaps in a placer that rejects
// every order, so decisions are still made and broadcast but nothing reaches
// the venue.
func (a *App) buildRebalancer(ctx context.Context, deps *Dependencies) (*rebalance.Engine, error) {
	oracle, err := chain.NewVaultOracle(chain.VaultOracleConfig{
		RpcURL:        a.cfg.Chain.RpcURL,
		Vault:         a.cfg.Chain.VaultAddress,
		BaseToken:     a.cfg.Chain.BaseToken,
		QuoteToken:    a.cfg.Chain.QuoteToken,
		BaseDecimals:  a.cfg.Chain.BaseDecimals,
		QuoteDecimals: a.cfg.Chain.QuoteDecimals,
	})
	if err != nil {
		return nil, fmt.Errorf("build rebalancer: %w", err)
	}

	hlClient := hyperliquid.NewClient(a.cfg.Exchange.BaseURL)
	market := a.cfg.Exchange.Market

	szDecimals, err := hlClient.SzDecimals(ctx, market)
	if err != nil {
		szDecimals = a.cfg.Exchange.SzDecimals
		a.logger.WarnContext(ctx, "spot metadata unavailable, using configured sz_decimals",
			slog.String("market", market),
			slog.Int("sz_decimals", szDecimals),
			slog.String("error", err.Error()),
		)
	}

	var placer domain.OrderPlacer
	if a.cfg.TradingEnabled() {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    a.cfg.Exchange.PrivateKey,
			EncryptedKeyPath: a.cfg.Exchange.EncryptedKeyPath,
			KeyPassword:      a.cfg.Exchange.KeyPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("build rebalancer: load signing key: %w", err)
		}
		signer, err := crypto.NewSigner(keyHex)
		if err != nil {
			return nil, fmt.Errorf("build rebalancer: %w", err)
		}
		a.logger.InfoContext(ctx, "exchange signer ready",
			slog.String("address", signer.Address().Hex()),
		)
		placer = hyperliquid.NewExchange(a.cfg.Exchange.BaseURL, market, signer)
	} else {
		a.logger.WarnContext(ctx, "trading disabled, orders will be rejected locally")
		placer = disabledPlacer{}
	}

	sweeper := rebalance.NewSweeper(placer, market, a.cfg.Rebalance.MaxBookLevels, szDecimals, a.logger)

	books := pipeline.NewCachedBookSource(hlClient, deps.BookCache, a.logger)

	engine := rebalance.NewEngine(rebalance.Config{
		Band:             a.cfg.Rebalance.Band,
		Cooldown:         time.Duration(a.cfg.Rebalance.CooldownMs) * time.Millisecond,
		MinNotionalMicro: a.cfg.Rebalance.MinNotionalMicro,
		MaxNotionalMicro: a.cfg.Rebalance.MaxNotionalMicro,
	}, rebalance.EngineDeps{
		Oracle:    oracle,
		Books:     books,
		Sweeper:   sweeper,
		Market:    market,
		Bus:       deps.SignalBus,
		ExecStore: deps.ExecutionStore,
		Notifier:  deps.Notifier,
		Logger:    a.logger,
	})

	return engine, nil
}

// disabledPlacer rejects every order locally. Used in full mode when
// exchange.trading_enabled is false, so the decision path stays observable
// without venue side effects.
type disabledPlacer struct{}

func (disabledPlacer) PlaceIOC(ctx context.Context, market string, buy bool, price, size float64) (domain.OrderAck, error) {
	return domain.OrderAck{Accepted: false, Reason: "trading_disabled"}, nil
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// errgroup. The server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	sub *chain.Subscriber,
) {
	startedAt := time.Now().UTC()

	hub := ws.NewHub(deps.SignalBus, ws.Config{
		Market:    a.cfg.Exchange.Market,
		Mode:      a.cfg.Mode,
		StartedAt: startedAt,
		Watched:   sub.Watched,
	}, a.logger)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	var backlog handler.Backlog
	if deps.Archiver != nil {
		backlog = deps.Archiver
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(sub, deps.Events, deps.BookCache, backlog, handler.ServiceInfo{
			Market:          a.cfg.Exchange.Market,
			Mode:            a.cfg.Mode,
			TradingEnabled:  a.cfg.TradingEnabled(),
			Band:            a.cfg.Rebalance.Band,
			CooldownSeconds: float64(a.cfg.Rebalance.CooldownMs) / 1000,
			StartedAt:       startedAt,
		}, a.logger),
		Events:     handler.NewEventsHandler(deps.Events, deps.SwapStore, a.logger),
		Watch:      handler.NewWatchHandler(sub, a.logger),
		Executions: handler.NewExecutionsHandler(deps.ExecutionStore, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
