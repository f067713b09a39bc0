package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"wallet-risk-lab/internal/cache"
	"wallet-risk-lab/internal/ethereum"
	"wallet-risk-lab/internal/observability"
	"wallet-risk-lab/internal/riskconfig"
	"wallet-risk-lab/internal/storage"
)

// ErrSubscriptionClosed is returned when the log subscription ends.
var ErrSubscriptionClosed = errors.New("log subscription closed")

// Live runner defaults.
const (
	DefaultBlockLag      = 2
	DefaultFlushInterval = 5 * time.Second
)

// LiveRunner follows new market logs over a subscription and stores the
// ones that mention a tracked wallet.
//
// Logs are buffered per block and written once the block is BlockLag
// blocks behind the highest block seen, so each block is stored in log
// index order and logs removed by a reorg before that point are dropped.
type LiveRunner struct {
	subscriber    ethereum.LogSubscriber
	decoder       *Decoder
	markets       []riskconfig.Market
	wallets       []string
	store         storage.TransactionStore
	times         *blockTimes
	blockLag      int64
	flushInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger
	metrics       *observability.Metrics

	buffer  map[int64][]ethereum.Log
	highest int64

	stats liveCounters
}

// LiveRunnerOptions contains configuration for creating a LiveRunner.
type LiveRunnerOptions struct {
	Subscriber    ethereum.LogSubscriber
	Config        riskconfig.Config
	Wallets       []string
	Store         storage.TransactionStore
	Times         cache.BlockTimeCache
	Fetcher       ethereum.LogFetcher // block timestamps; nil uses the local clock
	BlockLag      int64               // Default: 2 blocks
	FlushInterval time.Duration       // Default: 5s
	Clock         func() time.Time
	Logger        *slog.Logger
	Metrics       *observability.Metrics
}

// LiveStats are counters of a running LiveRunner.
type LiveStats struct {
	LogsReceived int64
	Stored       int64
	Duplicates   int64
	Dropped      int64 // removed by reorg before being written
}

type liveCounters struct {
	received, stored, duplicates, dropped atomic.Int64
}

// NewLiveRunner creates a live runner.
func NewLiveRunner(opts LiveRunnerOptions) *LiveRunner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "live")

	blockLag := opts.BlockLag
	if blockLag <= 0 {
		blockLag = DefaultBlockLag
	}
	flush := opts.FlushInterval
	if flush <= 0 {
		flush = DefaultFlushInterval
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &LiveRunner{
		subscriber:    opts.Subscriber,
		decoder:       NewDecoder(opts.Config),
		markets:       opts.Config.Markets(),
		wallets:       normalizeWallets(opts.Wallets),
		store:         opts.Store,
		times:         newBlockTimes(opts.Times, opts.Fetcher, logger, opts.Metrics),
		blockLag:      blockLag,
		flushInterval: flush,
		now:           now,
		logger:        logger,
		metrics:       opts.Metrics,
		buffer:        make(map[int64][]ethereum.Log),
	}
}

// Stats returns current runner counters.
func (r *LiveRunner) Stats() LiveStats {
	return LiveStats{
		LogsReceived: r.stats.received.Load(),
		Stored:       r.stats.stored.Load(),
		Duplicates:   r.stats.duplicates.Load(),
		Dropped:      r.stats.dropped.Load(),
	}
}

// Run subscribes and processes logs until ctx is cancelled or the
// subscription closes. Buffered logs are flushed before returning.
func (r *LiveRunner) Run(ctx context.Context) error {
	addrs := make([]string, len(r.markets))
	for i, m := range r.markets {
		addrs[i] = m.Address
	}

	logs, err := r.subscriber.SubscribeLogs(ctx, ethereum.LogFilter{
		Addresses: addrs,
		Topics:    [][]string{r.decoder.Topics()},
	})
	if err != nil {
		return err
	}

	flushTicker := time.NewTicker(r.flushInterval)
	defer flushTicker.Stop()

	r.logger.Info("live runner started",
		"markets", len(addrs),
		"wallets", len(r.wallets),
		"block_lag", r.blockLag,
		"flush_interval", r.flushInterval,
	)

	for {
		select {
		case <-ctx.Done():
			// Flush with a context that outlives ctx.
			r.flushAll(context.WithoutCancel(ctx))
			r.logger.Info("live runner stopping")
			return ctx.Err()

		case l, ok := <-logs:
			if !ok {
				r.flushAll(ctx)
				return ErrSubscriptionClosed
			}
			r.bufferLog(ctx, l)

		case <-flushTicker.C:
			r.processFinalized(ctx)
		}
	}
}

// bufferLog adds l to its block buffer and processes finalized blocks.
func (r *LiveRunner) bufferLog(ctx context.Context, l ethereum.Log) {
	r.stats.received.Add(1)
	r.metrics.RecordLiveLog()

	if l.Removed {
		r.dropRemoved(l)
		return
	}

	block := l.BlockNumber
	if block <= r.highest-r.blockLag {
		// Late log for a block already written: store immediately.
		r.handleLog(ctx, l)
		return
	}

	r.buffer[block] = append(r.buffer[block], l)
	if block > r.highest {
		r.highest = block
		r.processFinalized(ctx)
	}
	r.metrics.UpdateLiveBuffer(len(r.buffer), r.highest)
}

// dropRemoved discards a buffered log reverted by a reorg.
func (r *LiveRunner) dropRemoved(l ethereum.Log) {
	logs := r.buffer[l.BlockNumber]
	for i, b := range logs {
		if b.TxHash == l.TxHash && b.LogIndex == l.LogIndex {
			r.buffer[l.BlockNumber] = append(logs[:i], logs[i+1:]...)
			r.stats.dropped.Add(1)
			break
		}
	}
	if len(r.buffer[l.BlockNumber]) == 0 {
		delete(r.buffer, l.BlockNumber)
	}
}

// processFinalized writes blocks at least blockLag behind the highest block.
func (r *LiveRunner) processFinalized(ctx context.Context) {
	finalized := r.highest - r.blockLag
	if finalized < 0 {
		return
	}
	for _, block := range r.bufferedBlocks() {
		if block > finalized {
			break
		}
		r.processBlock(ctx, block)
	}
	r.metrics.UpdateLiveBuffer(len(r.buffer), r.highest)
}

// flushAll writes every buffered block. Used on shutdown.
func (r *LiveRunner) flushAll(ctx context.Context) {
	for _, block := range r.bufferedBlocks() {
		r.processBlock(ctx, block)
	}
	r.metrics.UpdateLiveBuffer(0, r.highest)
}

func (r *LiveRunner) bufferedBlocks() []int64 {
	blocks := make([]int64, 0, len(r.buffer))
	for b := range r.buffer {
		blocks = append(blocks, b)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })
	return blocks
}

// processBlock writes the logs of one block in log index order.
func (r *LiveRunner) processBlock(ctx context.Context, block int64) {
	logs := r.buffer[block]
	delete(r.buffer, block)

	sort.SliceStable(logs, func(i, j int) bool { return logs[i].LogIndex < logs[j].LogIndex })
	for _, l := range logs {
		r.handleLog(ctx, l)
	}
}

// handleLog stores one transaction per tracked wallet mentioned by l.
func (r *LiveRunner) handleLog(ctx context.Context, l ethereum.Log) {
	matched := matchingWallets(l, r.wallets)
	if len(matched) == 0 {
		return
	}

	ts, err := r.times.resolve(ctx, l)
	if err != nil {
		ts = r.now().Unix()
		r.logger.Debug("block time unavailable, using local clock", "block", l.BlockNumber, "error", err)
	}

	for _, w := range matched {
		tx := r.decoder.Decode(l, w, ts)
		if err := r.store.Insert(ctx, &tx); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				r.stats.duplicates.Add(1)
				continue
			}
			r.logger.Error("store live transaction failed", "wallet", w, "tx_hash", l.TxHash, "error", err)
			r.metrics.RecordSourceError("live", "store")
			continue
		}
		r.stats.stored.Add(1)
		r.metrics.RecordStored(1)
	}
}
