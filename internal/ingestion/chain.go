package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"wallet-risk-lab/internal/cache"
	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/ethereum"
	"wallet-risk-lab/internal/observability"
	"wallet-risk-lab/internal/riskconfig"
)

// ErrAllMarketsFailed is returned when no market could be queried.
var ErrAllMarketsFailed = errors.New("log fetch failed for every market")

// DefaultMarketConcurrency bounds parallel per-market log queries.
const DefaultMarketConcurrency = 4

// ChainSourceOptions configures Etherscan and RPC sources.
type ChainSourceOptions struct {
	FromBlock   int64
	ToBlock     int64 // 0 means latest
	Times       cache.BlockTimeCache
	Concurrency int
	Logger      *slog.Logger
	Metrics     *observability.Metrics
}

// logSource fetches logs per market contract and keeps the ones that
// mention a requested wallet.
type logSource struct {
	name        string
	fetcher     ethereum.LogFetcher
	decoder     *Decoder
	markets     []riskconfig.Market
	eventFilter bool // restrict queries to tracked topic0 values
	fromBlock   int64
	toBlock     int64
	concurrency int
	times       *blockTimes
	logger      *slog.Logger
	metrics     *observability.Metrics
}

func newLogSource(name string, fetcher ethereum.LogFetcher, cfg riskconfig.Config, eventFilter bool, opts ChainSourceOptions) logSource {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("source", name)

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultMarketConcurrency
	}

	return logSource{
		name:        name,
		fetcher:     fetcher,
		decoder:     NewDecoder(cfg),
		markets:     cfg.Markets(),
		eventFilter: eventFilter,
		fromBlock:   opts.FromBlock,
		toBlock:     opts.ToBlock,
		concurrency: concurrency,
		times:       newBlockTimes(opts.Times, fetcher, logger, opts.Metrics),
		logger:      logger,
		metrics:     opts.Metrics,
	}
}

// EtherscanSource collects transactions through the Etherscan getLogs API,
// one query per market contract.
type EtherscanSource struct {
	logSource
}

// NewEtherscanSource creates a source over an explorer client.
func NewEtherscanSource(client ethereum.LogFetcher, cfg riskconfig.Config, opts ChainSourceOptions) *EtherscanSource {
	return &EtherscanSource{logSource: newLogSource(SourceEtherscan, client, cfg, false, opts)}
}

// RPCSource collects transactions through eth_getLogs on a node,
// one query per market contract filtered to the tracked events.
type RPCSource struct {
	logSource
}

// NewRPCSource creates a source over a node client.
func NewRPCSource(client ethereum.LogFetcher, cfg riskconfig.Config, opts ChainSourceOptions) *RPCSource {
	return &RPCSource{logSource: newLogSource(SourceRPC, client, cfg, true, opts)}
}

var (
	_ TransactionSource = (*EtherscanSource)(nil)
	_ TransactionSource = (*RPCSource)(nil)
)

// Fetch queries every market and returns the logs mentioning each wallet.
// A failing market is logged and skipped. Fails only when every market
// failed or ctx is done.
func (s *logSource) Fetch(ctx context.Context, wallets []string) ([]domain.Transaction, error) {
	wallets = normalizeWallets(wallets)
	if len(wallets) == 0 || len(s.markets) == 0 {
		return nil, nil
	}

	results := make([][]ethereum.Log, len(s.markets))
	failed := make([]bool, len(s.markets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, m := range s.markets {
		g.Go(func() error {
			start := time.Now()
			logs, err := s.fetcher.GetLogs(gctx, s.filter(m))
			s.metrics.RecordRPCLatency("get_logs", time.Since(start))
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("fetch market logs failed", "market", m.Symbol, "address", m.Address, "error", err)
				s.metrics.RecordSourceError(s.name, "get_logs")
				failed[i] = true
				return nil
			}
			results[i] = logs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	allFailed := true
	for _, f := range failed {
		if !f {
			allFailed = false
			break
		}
	}
	if allFailed {
		return nil, ErrAllMarketsFailed
	}

	var txs []domain.Transaction
	for _, logs := range results {
		for _, l := range logs {
			if l.Removed {
				continue
			}
			matched := matchingWallets(l, wallets)
			if len(matched) == 0 {
				continue
			}

			ts, err := s.times.resolve(ctx, l)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				s.logger.Warn("resolve block time failed", "block", l.BlockNumber, "error", err)
				s.metrics.RecordSourceError(s.name, "block_time")
				ts = 0
			}

			for _, w := range matched {
				txs = append(txs, s.decoder.Decode(l, w, ts))
			}
		}
	}

	s.metrics.RecordFetched(s.name, len(txs))
	s.logger.Info("fetched transactions", "wallets", len(wallets), "markets", len(s.markets), "transactions", len(txs))
	return txs, nil
}

func (s *logSource) filter(m riskconfig.Market) ethereum.LogFilter {
	f := ethereum.LogFilter{
		Addresses: []string{m.Address},
		FromBlock: s.fromBlock,
		ToBlock:   s.toBlock,
	}
	if s.eventFilter {
		f.Topics = [][]string{s.decoder.Topics()}
	}
	return f
}

// matchingWallets returns the wallets mentioned by l, in input order.
func matchingWallets(l ethereum.Log, wallets []string) []string {
	var out []string
	for _, w := range wallets {
		if l.Mentions(w) {
			out = append(out, w)
		}
	}
	return out
}
