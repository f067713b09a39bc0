package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wallet-risk-lab/internal/cache"
	"wallet-risk-lab/internal/ethereum"
	"wallet-risk-lab/internal/observability"
)

// blockTimes resolves block timestamps through a cache, falling back to
// the chain API on a miss. A nil fetcher turns misses into errors.
type blockTimes struct {
	cache   cache.BlockTimeCache
	fetcher ethereum.LogFetcher
	logger  *slog.Logger
	metrics *observability.Metrics
}

func newBlockTimes(c cache.BlockTimeCache, f ethereum.LogFetcher, logger *slog.Logger, m *observability.Metrics) *blockTimes {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	return &blockTimes{cache: c, fetcher: f, logger: logger, metrics: m}
}

// lookup returns the block time in Unix seconds.
func (b *blockTimes) lookup(ctx context.Context, block int64) (int64, error) {
	ts, ok, err := b.cache.Get(ctx, block)
	if err != nil {
		// Cache errors degrade to a miss.
		b.metrics.RecordBlockTimeLookup("error")
		b.logger.Warn("block time cache get failed", "block", block, "error", err)
	} else if ok {
		b.metrics.RecordBlockTimeLookup("hit")
		return ts, nil
	}
	b.metrics.RecordBlockTimeLookup("miss")

	if b.fetcher == nil {
		return 0, fmt.Errorf("no block time source for block %d", block)
	}

	start := time.Now()
	ts, err = b.fetcher.BlockTimestamp(ctx, block)
	b.metrics.RecordRPCLatency("block_timestamp", time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("block %d timestamp: %w", block, err)
	}

	if err := b.cache.Set(ctx, block, ts); err != nil {
		b.logger.Warn("block time cache set failed", "block", block, "error", err)
	}
	return ts, nil
}

// resolve returns l's block time, preferring the time reported with the log.
func (b *blockTimes) resolve(ctx context.Context, l ethereum.Log) (int64, error) {
	if l.Timestamp > 0 {
		if err := b.cache.Set(ctx, l.BlockNumber, l.Timestamp); err != nil {
			b.logger.Warn("block time cache set failed", "block", l.BlockNumber, "error", err)
		}
		return l.Timestamp, nil
	}
	return b.lookup(ctx, l.BlockNumber)
}
