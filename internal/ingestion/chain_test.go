package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"wallet-risk-lab/internal/cache"
	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/ethereum"
	"wallet-risk-lab/internal/logging"
	"wallet-risk-lab/internal/observability"
)

const (
	mintSig   = "Mint(address,uint256,uint256)"
	supplySig = "SupplyCollateral(address,address,address,uint256)"
)

func newFetcher() *fakeFetcher {
	return &fakeFetcher{
		logs:  make(map[string][]ethereum.Log),
		fail:  make(map[string]error),
		times: map[int64]int64{100: 1_700_000_000, 200: 1_700_000_600},
	}
}

func chainOpts() ChainSourceOptions {
	return ChainSourceOptions{
		Logger:  logging.Discard(),
		Metrics: observability.NewMetrics("test", nil),
	}
}

func TestEtherscanSource_FiltersWallets(t *testing.T) {
	f := newFetcher()
	dai := strings.ToLower(cDAIAddr)

	// v2 events carry the wallet in data only.
	inData := makeLog(cDAIAddr, mintSig, "", 100, 0)
	inData.Data = "0x000000000000000000000000" + strings.TrimPrefix(walletA, "0x") + strings.Repeat("0", 64)
	f.logs[dai] = []ethereum.Log{
		inData,
		makeLog(cDAIAddr, mintSig, "0x9999999999999999999999999999999999999999", 100, 1),
	}
	f.logs[strings.ToLower(usdcAddr)] = []ethereum.Log{makeLog(usdcAddr, supplySig, walletB, 200, 2)}

	src := NewEtherscanSource(f, testConfig(), chainOpts())
	txs, err := src.Fetch(context.Background(), []string{walletA, walletB})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	byWallet := make(map[string]domain.Transaction)
	for _, tx := range txs {
		byWallet[tx.Wallet] = tx
	}
	if tx := byWallet[walletA]; tx.Market != "cDAI" || tx.Kind != domain.TxKindSupply || tx.Timestamp != 1_700_000_000_000 {
		t.Errorf("walletA tx = %+v", tx)
	}
	if tx := byWallet[walletB]; tx.Market != "USDC" || tx.Kind != domain.TxKindSupply || tx.Timestamp != 1_700_000_600_000 {
		t.Errorf("walletB tx = %+v", tx)
	}

	for _, filter := range f.filters {
		if len(filter.Topics) != 0 {
			t.Errorf("explorer queries must not carry topic filters, got %v", filter.Topics)
		}
	}
}

func TestRPCSource_EventFilter(t *testing.T) {
	f := newFetcher()
	src := NewRPCSource(f, testConfig(), chainOpts())

	if _, err := src.Fetch(context.Background(), []string{walletA}); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if len(f.filters) != 2 {
		t.Fatalf("expected one query per market, got %d", len(f.filters))
	}
	want := NewDecoder(testConfig()).Topics()
	for _, filter := range f.filters {
		if len(filter.Topics) != 1 || len(filter.Topics[0]) != len(want) {
			t.Fatalf("expected topic0 filter with %d events, got %v", len(want), filter.Topics)
		}
	}
}

func TestLogSource_PartialFailure(t *testing.T) {
	f := newFetcher()
	f.fail[strings.ToLower(cDAIAddr)] = errors.New("rate limited")
	f.logs[strings.ToLower(usdcAddr)] = []ethereum.Log{makeLog(usdcAddr, supplySig, walletA, 200, 0)}

	txs, err := NewEtherscanSource(f, testConfig(), chainOpts()).Fetch(context.Background(), []string{walletA})
	if err != nil {
		t.Fatalf("partial failure should be tolerated, got %v", err)
	}
	if len(txs) != 1 {
		t.Errorf("expected 1 transaction from healthy market, got %d", len(txs))
	}
}

func TestLogSource_AllMarketsFailed(t *testing.T) {
	f := newFetcher()
	f.fail[strings.ToLower(cDAIAddr)] = errors.New("down")
	f.fail[strings.ToLower(usdcAddr)] = errors.New("down")

	_, err := NewRPCSource(f, testConfig(), chainOpts()).Fetch(context.Background(), []string{walletA})
	if !errors.Is(err, ErrAllMarketsFailed) {
		t.Errorf("expected ErrAllMarketsFailed, got %v", err)
	}
}

func TestLogSource_BlockTimesCached(t *testing.T) {
	f := newFetcher()
	f.logs[strings.ToLower(cDAIAddr)] = []ethereum.Log{
		makeLog(cDAIAddr, mintSig, walletA, 100, 0),
		makeLog(cDAIAddr, mintSig, walletA, 100, 1),
	}
	c := cache.NewMemoryCache()
	opts := chainOpts()
	opts.Times = c
	opts.Concurrency = 1

	src := NewEtherscanSource(f, testConfig(), opts)
	if _, err := src.Fetch(context.Background(), []string{walletA}); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if _, err := src.Fetch(context.Background(), []string{walletA}); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if f.timeReq != 1 {
		t.Errorf("expected 1 block time request, got %d", f.timeReq)
	}
	if ts, ok, _ := c.Get(context.Background(), 100); !ok || ts != 1_700_000_000 {
		t.Errorf("cache entry = %d, %v", ts, ok)
	}
}

func TestLogSource_LogTimestampPreferred(t *testing.T) {
	f := newFetcher()
	l := makeLog(cDAIAddr, mintSig, walletA, 300, 0)
	l.Timestamp = 1_600_000_000
	f.logs[strings.ToLower(cDAIAddr)] = []ethereum.Log{l}

	txs, err := NewEtherscanSource(f, testConfig(), chainOpts()).Fetch(context.Background(), []string{walletA})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(txs) != 1 || txs[0].Timestamp != 1_600_000_000_000 {
		t.Fatalf("expected log timestamp, got %+v", txs)
	}
	if f.timeReq != 0 {
		t.Errorf("expected no block time request, got %d", f.timeReq)
	}
}

func TestLogSource_UnknownBlockTime(t *testing.T) {
	f := newFetcher()
	f.logs[strings.ToLower(cDAIAddr)] = []ethereum.Log{makeLog(cDAIAddr, mintSig, walletA, 999, 0)}

	txs, err := NewEtherscanSource(f, testConfig(), chainOpts()).Fetch(context.Background(), []string{walletA})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(txs) != 1 || txs[0].Timestamp != 0 {
		t.Errorf("expected zero timestamp on lookup failure, got %+v", txs)
	}
}

func TestLogSource_SkipsRemovedLogs(t *testing.T) {
	f := newFetcher()
	removed := makeLog(cDAIAddr, mintSig, walletA, 100, 0)
	removed.Removed = true
	f.logs[strings.ToLower(cDAIAddr)] = []ethereum.Log{removed, makeLog(cDAIAddr, mintSig, walletA, 100, 1)}

	txs, err := NewRPCSource(f, testConfig(), chainOpts()).Fetch(context.Background(), []string{walletA})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(txs) != 1 || txs[0].LogIndex != 1 {
		t.Errorf("expected only the live log, got %+v", txs)
	}
}

func TestLogSource_NoWallets(t *testing.T) {
	f := newFetcher()
	txs, err := NewRPCSource(f, testConfig(), chainOpts()).Fetch(context.Background(), nil)
	if err != nil || len(txs) != 0 {
		t.Errorf("expected empty result, got %v %v", txs, err)
	}
	if len(f.filters) != 0 {
		t.Errorf("expected no queries, got %d", len(f.filters))
	}
}
