package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyindexer/internal/server"
	"github.com/alanyoungcy/polyindexer/internal/server/handler"
)

// DiscoverMode runs one discovery pass over the configured event slugs and
// exits. With a refresh interval set, it keeps re-discovering until cancelled.
func (a *App) DiscoverMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting discover mode",
		slog.Any("event_slugs", a.cfg.Catalog.EventSlugs),
	)

	if len(a.cfg.Catalog.EventSlugs) == 0 {
		return fmt.Errorf("app: discover mode requires catalog.event_slugs")
	}

	interval := a.cfg.Catalog.RefreshInterval.Duration
	if interval <= 0 {
		for _, slug := range a.cfg.Catalog.EventSlugs {
			stats, err := deps.Discovery.DiscoverEvent(ctx, slug)
			if err != nil {
				return err
			}
			a.logger.InfoContext(ctx, "event discovered",
				slog.String("slug", slug),
				slog.Int("markets", stats.Markets),
				slog.Int("verified", stats.Verified),
			)
		}
		return deps.Discovery.RefreshCatalog(ctx)
	}

	err := deps.Discovery.RunLoop(ctx, a.cfg.Catalog.EventSlugs, interval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// IndexMode ingests trades. With a tx_hash configured it indexes that single
// transaction; with from_block/to_block it backfills that range; otherwise it
// resumes from the stored cursor and follows the chain head until cancelled.
func (a *App) IndexMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting index mode",
		slog.String("stream", a.cfg.Indexer.StreamKey),
	)

	if a.cfg.Indexer.TxHash != "" {
		stats, err := deps.Indexer.IndexTx(ctx, a.cfg.Indexer.TxHash)
		if err != nil {
			return err
		}
		a.logger.InfoContext(ctx, "transaction indexed",
			slog.String("tx_hash", a.cfg.Indexer.TxHash),
			slog.Int("matched", stats.Matched),
			slog.Int64("persisted", stats.Persisted),
		)
		return nil
	}

	if a.cfg.Indexer.ToBlock != 0 {
		return a.backfill(ctx, deps)
	}

	err := deps.Indexer.FollowLoop(ctx, a.cfg.Indexer.PollInterval.Duration, a.cfg.Indexer.FromBlock)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// backfill runs a bounded one-shot ingestion of [from_block, to_block].
func (a *App) backfill(ctx context.Context, deps *Dependencies) error {
	from := a.cfg.Indexer.FromBlock
	if from == 0 {
		resumed, err := deps.Indexer.ResumeBlock(ctx, 1)
		if err != nil {
			return err
		}
		from = resumed
	}

	stats, err := deps.Indexer.Run(ctx, from, a.cfg.Indexer.ToBlock)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "backfill complete",
		slog.Uint64("from_block", from),
		slog.Uint64("to_block", a.cfg.Indexer.ToBlock),
		slog.Int("ranges", stats.Ranges),
		slog.Int("matched", stats.Matched),
		slog.Int("unmatched", stats.Unmatched),
		slog.Int64("persisted", stats.Persisted),
	)
	if stats.DeferredFrom != nil {
		a.logger.WarnContext(ctx, "backfill incomplete, rerun to finish",
			slog.Uint64("deferred_from", *stats.DeferredFrom),
		)
	}
	return nil
}

// ServeMode runs only the HTTP read API.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")
	return a.runServer(ctx, deps)
}

// FullMode runs discovery, ingestion, and the HTTP API together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	if len(a.cfg.Catalog.EventSlugs) > 0 {
		// Prime the catalog before ingestion starts so the first ranges
		// already match against fresh markets.
		for _, slug := range a.cfg.Catalog.EventSlugs {
			if _, err := deps.Discovery.DiscoverEvent(ctx, slug); err != nil {
				a.logger.WarnContext(ctx, "initial discovery failed",
					slog.String("slug", slug),
					slog.String("error", err.Error()),
				)
			}
		}
		if interval := a.cfg.Catalog.RefreshInterval.Duration; interval > 0 {
			g.Go(func() error {
				err := deps.Discovery.RunLoop(ctx, a.cfg.Catalog.EventSlugs, interval)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		}
	}

	g.Go(func() error {
		err := deps.Indexer.FollowLoop(ctx, a.cfg.Indexer.PollInterval.Duration, a.cfg.Indexer.FromBlock)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if a.cfg.Server.Enabled {
		g.Go(func() error {
			return a.runServer(ctx, deps)
		})
	}

	return g.Wait()
}

// runServer builds and runs the HTTP server until the context is cancelled,
// then shuts it down gracefully.
func (a *App) runServer(ctx context.Context, deps *Dependencies) error {
	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
		},
		server.Handlers{
			Health:  handler.NewHealthHandler(deps.Catalog, deps.TradeService, a.logger),
			Events:  handler.NewEventHandler(deps.EventService, a.logger),
			Markets: handler.NewMarketHandler(deps.MarketService, a.logger),
			Trades:  handler.NewTradeHandler(deps.TradeService, a.logger),
			Sync:    handler.NewSyncHandler(deps.TradeService, a.logger),
		},
		a.logger,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}
