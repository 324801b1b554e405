// Package pipeline orchestrates trade ingestion: fetch fill logs for a block
// range, decode them, match them against the market catalog, and persist the
// matched trades together with the sync cursor in one transaction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyindexer/internal/catalog"
	"github.com/alanyoungcy/polyindexer/internal/ctf"
	"github.com/alanyoungcy/polyindexer/internal/domain"
)

// LogSource is the chain RPC boundary the indexer consumes.
type LogSource interface {
	FilterOrderFills(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error)
	BlockTime(ctx context.Context, blockNumber uint64) (time.Time, error)
	HeadBlock(ctx context.Context) (uint64, error)
	TxBlock(ctx context.Context, txHash string) (uint64, error)
}

// TimestampCache is an optional shared cache of block timestamps; the indexer
// additionally keeps a per-range in-memory cache on top of it.
type TimestampCache interface {
	Get(ctx context.Context, blockNumber uint64) (time.Time, bool)
	Set(ctx context.Context, blockNumber uint64, ts time.Time)
}

// RangeStats reports what happened to a single block range.
type RangeStats struct {
	FromBlock uint64
	ToBlock   uint64
	Fetched   int
	Malformed int
	Echoes    int
	Matched   int
	Unmatched int
	Persisted int64
}

// RunStats aggregates RangeStats over one invocation.
type RunStats struct {
	Ranges    int
	Fetched   int
	Malformed int
	Echoes    int
	Matched   int
	Unmatched int
	Persisted int64
	// DeferredFrom is set when a range could not be fetched after retries;
	// ingestion stopped there and resumes from this block next invocation.
	DeferredFrom *uint64
}

func (r *RunStats) add(s RangeStats) {
	r.Ranges++
	r.Fetched += s.Fetched
	r.Malformed += s.Malformed
	r.Echoes += s.Echoes
	r.Matched += s.Matched
	r.Unmatched += s.Unmatched
	r.Persisted += s.Persisted
}

// Config holds the tunable parameters of the indexer.
type Config struct {
	StreamKey   string
	BatchSize   uint64 // blocks per range
	Concurrency int    // concurrent fetch/decode workers
	Retry       RetryPolicy
}

// Indexer is the ingestion pipeline for one sync stream. Fetching, decoding,
// and matching run concurrently across ranges; persistence is serialized and
// applied in ascending block order so the cursor only ever moves forward over
// fully ingested data.
type Indexer struct {
	cfg      Config
	source   LogSource
	decoder  *ctf.Decoder
	catalog  *catalog.Catalog
	trades   domain.TradeStore
	syncs    domain.SyncStateStore
	tsCache  TimestampCache // optional
	archiver *Archiver      // optional
	logger   *slog.Logger

	persistMu sync.Mutex
}

// NewIndexer creates an Indexer. tsCache and archiver may be nil.
func NewIndexer(
	cfg Config,
	source LogSource,
	decoder *ctf.Decoder,
	cat *catalog.Catalog,
	trades domain.TradeStore,
	syncs domain.SyncStateStore,
	tsCache TimestampCache,
	archiver *Archiver,
	logger *slog.Logger,
) *Indexer {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1000
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Indexer{
		cfg:      cfg,
		source:   source,
		decoder:  decoder,
		catalog:  cat,
		trades:   trades,
		syncs:    syncs,
		tsCache:  tsCache,
		archiver: archiver,
		logger:   logger.With(slog.String("component", "indexer"), slog.String("stream", cfg.StreamKey)),
	}
}

// ResumeBlock returns the first block that has not yet been durably ingested
// for this stream: lastProcessedBlock+1, or defaultStart when the stream has
// no cursor yet.
func (ix *Indexer) ResumeBlock(ctx context.Context, defaultStart uint64) (uint64, error) {
	state, err := ix.syncs.Get(ctx, ix.cfg.StreamKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return defaultStart, nil
		}
		return 0, fmt.Errorf("pipeline: read sync state: %w", err)
	}
	return state.LastProcessedBlock + 1, nil
}

// rangeResult carries one fetched-decoded-matched range to the persister.
type rangeResult struct {
	seq    int
	from   uint64
	to     uint64
	stats  RangeStats
	logs   []types.Log
	trades []domain.Trade
	err    error
}

// Run ingests [fromBlock, toBlock] inclusive, splitting it into BatchSize
// ranges. Re-running over already-ingested blocks is a no-op: duplicate rows
// are skipped on conflict and the cursor never moves backwards.
//
// A range that cannot be fetched after retries stops cursor advancement at
// its predecessor and is reported in RunStats.DeferredFrom; this is not fatal
// and the range is picked up again on the next invocation. Only a persistence
// failure aborts with an error.
func (ix *Indexer) Run(ctx context.Context, fromBlock, toBlock uint64) (RunStats, error) {
	var stats RunStats
	if toBlock < fromBlock {
		return stats, fmt.Errorf("pipeline: invalid range [%d,%d]", fromBlock, toBlock)
	}

	type job struct {
		seq      int
		from, to uint64
	}
	var jobs []job
	for seq, from := 0, fromBlock; from <= toBlock; seq++ {
		to := from + ix.cfg.BatchSize - 1
		if to > toBlock {
			to = toBlock
		}
		jobs = append(jobs, job{seq: seq, from: from, to: to})
		from = to + 1
	}

	g, gctx := errgroup.WithContext(ctx)
	jobCh := make(chan job)
	resultCh := make(chan rangeResult, ix.cfg.Concurrency)

	g.Go(func() error {
		defer close(jobCh)
		for _, j := range jobs {
			select {
			case jobCh <- j:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var workers sync.WaitGroup
	for i := 0; i < ix.cfg.Concurrency; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for j := range jobCh {
				res := ix.prepareRange(gctx, j.seq, j.from, j.to)
				select {
				case resultCh <- res:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(resultCh)
	}()

	// Persist results strictly in range order so the cursor never runs
	// ahead of a gap.
	var runErr error
	pending := make(map[int]rangeResult, len(jobs))
	next := 0
	for res := range resultCh {
		pending[res.seq] = res
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			if runErr != nil {
				continue // draining after a failure
			}
			if r.err != nil {
				from := r.from
				stats.DeferredFrom = &from
				runErr = r.err
				ix.logger.Warn("range deferred",
					slog.Uint64("from_block", r.from),
					slog.Uint64("to_block", r.to),
					slog.String("error", r.err.Error()),
				)
				continue
			}

			persisted, err := ix.persistRange(ctx, r)
			if err != nil {
				runErr = err
				from := r.from
				stats.DeferredFrom = &from
				continue
			}
			r.stats.Persisted = persisted
			stats.add(r.stats)
		}
	}

	if gerr := g.Wait(); gerr != nil && runErr == nil && !errors.Is(gerr, context.Canceled) {
		runErr = gerr
	}

	if runErr != nil && errors.Is(runErr, domain.ErrRPCTransient) {
		// Deferred, not fatal: the caller resumes from DeferredFrom later.
		ix.logger.Warn("run incomplete, transient rpc failure", slog.String("error", runErr.Error()))
		return stats, nil
	}
	return stats, runErr
}

// prepareRange runs the Fetching, Decoding, and Matching phases for one
// range. It never touches the store.
func (ix *Indexer) prepareRange(ctx context.Context, seq int, from, to uint64) rangeResult {
	res := rangeResult{seq: seq, from: from, to: to, stats: RangeStats{FromBlock: from, ToBlock: to}}

	// Fetching, with bounded retry.
	var logs []types.Log
	err := ix.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var ferr error
		logs, ferr = ix.source.FilterOrderFills(ctx, from, to)
		return ferr
	})
	if err != nil {
		res.err = fmt.Errorf("pipeline: fetch range [%d,%d]: %w", from, to, err)
		return res
	}
	res.logs = logs
	res.stats.Fetched = len(logs)

	// Decoding and Matching against one consistent catalog snapshot.
	snap := ix.catalog.Snapshot()
	blockTimes := make(map[uint64]time.Time)

	for _, lg := range logs {
		fill, err := ix.decoder.DecodeOrderFilled(lg)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrEchoFill):
				res.stats.Echoes++
			case errors.Is(err, domain.ErrMalformedLog):
				res.stats.Malformed++
				ix.logger.Warn("skipping malformed log",
					slog.String("tx_hash", lg.TxHash.Hex()),
					slog.Uint64("log_index", uint64(lg.Index)),
					slog.String("error", err.Error()),
				)
			default:
				res.stats.Malformed++
				ix.logger.Warn("skipping undecodable log", slog.String("error", err.Error()))
			}
			continue
		}

		entry, ok := snap.Resolve(fill.TokenID)
		if !ok {
			// Unmatched trades are counted and dropped, not persisted.
			res.stats.Unmatched++
			ix.logger.Debug("unmatched trade",
				slog.String("token_id", fill.TokenID),
				slog.String("tx_hash", fill.TxHash),
			)
			continue
		}

		ts, err := ix.blockTime(ctx, fill.BlockNumber, blockTimes)
		if err != nil {
			res.err = fmt.Errorf("pipeline: block time %d: %w", fill.BlockNumber, err)
			return res
		}

		res.trades = append(res.trades, tradeFromFill(fill, entry, ts))
		res.stats.Matched++
	}

	return res
}

// persistRange runs the Persisting phase: every trade of the range plus the
// cursor advance to ToBlock commit in one transaction, serialized per stream.
// Any store error here is fatal to the pipeline.
func (ix *Indexer) persistRange(ctx context.Context, r rangeResult) (int64, error) {
	ix.persistMu.Lock()
	defer ix.persistMu.Unlock()

	inserted, err := ix.trades.InsertRange(ctx, ix.cfg.StreamKey, r.to, r.trades)
	if err != nil {
		return 0, fmt.Errorf("pipeline: persist range [%d,%d]: %w: %w", r.from, r.to, domain.ErrStoreFatal, err)
	}

	if ix.archiver != nil && len(r.logs) > 0 {
		// Archival is best-effort and never blocks ingestion.
		if err := ix.archiver.ArchiveRange(ctx, ix.cfg.StreamKey, r.from, r.to, r.logs); err != nil {
			ix.logger.Warn("raw log archive failed",
				slog.Uint64("from_block", r.from),
				slog.Uint64("to_block", r.to),
				slog.String("error", err.Error()),
			)
		}
	}

	ix.logger.Info("range persisted",
		slog.Uint64("from_block", r.from),
		slog.Uint64("to_block", r.to),
		slog.Int("fetched", r.stats.Fetched),
		slog.Int("matched", r.stats.Matched),
		slog.Int("unmatched", r.stats.Unmatched),
		slog.Int("malformed", r.stats.Malformed),
		slog.Int("echoes", r.stats.Echoes),
		slog.Int64("inserted", inserted),
	)
	return inserted, nil
}

// blockTime resolves a block timestamp through the per-range map, then the
// shared cache, then the RPC.
func (ix *Indexer) blockTime(ctx context.Context, blockNumber uint64, local map[uint64]time.Time) (time.Time, error) {
	if ts, ok := local[blockNumber]; ok {
		return ts, nil
	}
	if ix.tsCache != nil {
		if ts, ok := ix.tsCache.Get(ctx, blockNumber); ok {
			local[blockNumber] = ts
			return ts, nil
		}
	}

	var ts time.Time
	err := ix.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var terr error
		ts, terr = ix.source.BlockTime(ctx, blockNumber)
		return terr
	})
	if err != nil {
		return time.Time{}, err
	}

	local[blockNumber] = ts
	if ix.tsCache != nil {
		ix.tsCache.Set(ctx, blockNumber, ts)
	}
	return ts, nil
}

// tradeFromFill attaches the resolved market and block timestamp to a fill.
func tradeFromFill(fill domain.Fill, entry catalog.Entry, ts time.Time) domain.Trade {
	return domain.Trade{
		MarketID:       entry.Market.ID,
		TxHash:         fill.TxHash,
		LogIndex:       fill.LogIndex,
		BlockNumber:    fill.BlockNumber,
		Exchange:       fill.Exchange,
		OrderHash:      fill.OrderHash,
		Maker:          fill.Maker,
		Taker:          fill.Taker,
		Side:           fill.Side,
		Outcome:        entry.Outcome,
		Price:          fill.Price,
		Size:           fill.Size,
		Fee:            fill.Fee,
		TokenID:        fill.TokenID,
		BlockTimestamp: ts,
	}
}

// IndexTx resolves the block a transaction was mined in and ingests that
// single-block range.
func (ix *Indexer) IndexTx(ctx context.Context, txHash string) (RunStats, error) {
	var blockNumber uint64
	err := ix.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var terr error
		blockNumber, terr = ix.source.TxBlock(ctx, txHash)
		return terr
	})
	if err != nil {
		return RunStats{}, fmt.Errorf("pipeline: resolve tx %s: %w", txHash, err)
	}
	return ix.Run(ctx, blockNumber, blockNumber)
}

// FollowLoop resumes from the stored cursor and repeatedly ingests up to the
// chain head until the context is cancelled. Transient failures are logged
// and retried next tick; only store failures abort the loop.
func (ix *Indexer) FollowLoop(ctx context.Context, pollInterval time.Duration, defaultStart uint64) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if err := ix.followOnce(ctx, defaultStart); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			ix.logger.Info("indexer loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (ix *Indexer) followOnce(ctx context.Context, defaultStart uint64) error {
	start, err := ix.ResumeBlock(ctx, defaultStart)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreFatal, err)
	}

	var head uint64
	if err := ix.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var herr error
		head, herr = ix.source.HeadBlock(ctx)
		return herr
	}); err != nil {
		ix.logger.Warn("head block unavailable", slog.String("error", err.Error()))
		return nil
	}

	if head < start {
		return nil
	}

	stats, err := ix.Run(ctx, start, head)
	if err != nil {
		return err
	}
	ix.logger.Info("follow tick complete",
		slog.Uint64("from_block", start),
		slog.Uint64("to_block", head),
		slog.Int("ranges", stats.Ranges),
		slog.Int("matched", stats.Matched),
		slog.Int64("persisted", stats.Persisted),
	)
	return nil
}
