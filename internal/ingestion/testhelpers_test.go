package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/ethereum"
	"wallet-risk-lab/internal/riskconfig"
	"wallet-risk-lab/internal/storage"
)

const (
	cDAIAddr = "0x5d3a536E4D6DbD6114cc1Ead35777bAB948E3643"
	usdcAddr = "0xc3d688B66703497DAA19211EEdff47f25384cdc3"

	walletA = "0x1111111111111111111111111111111111111111"
	walletB = "0x2222222222222222222222222222222222222222"
)

// testConfig returns a configuration with one v2 and one v3 market.
func testConfig() riskconfig.Config {
	cfg := riskconfig.Default()
	cfg.V2Markets = map[string]string{"cDAI": cDAIAddr}
	cfg.V3Markets = map[string]string{"USDC": usdcAddr}
	return cfg
}

// fakeFetcher serves logs per contract address.
type fakeFetcher struct {
	mu      sync.Mutex
	logs    map[string][]ethereum.Log // lowercase address -> logs
	fail    map[string]error
	times   map[int64]int64
	filters []ethereum.LogFilter
	timeReq int
}

func (f *fakeFetcher) GetLogs(_ context.Context, filter ethereum.LogFilter) ([]ethereum.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)

	addr := strings.ToLower(filter.Addresses[0])
	if err := f.fail[addr]; err != nil {
		return nil, err
	}
	return f.logs[addr], nil
}

func (f *fakeFetcher) BlockTimestamp(_ context.Context, block int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeReq++
	ts, ok := f.times[block]
	if !ok {
		return 0, errors.New("unknown block")
	}
	return ts, nil
}

// makeLog builds a log for the event at addr mentioning wallet in topic1.
func makeLog(addr, signature, wallet string, block int64, index int) ethereum.Log {
	topics := []string{ethereum.EventTopic(signature)}
	if wallet != "" {
		topics = append(topics, ethereum.AddressTopic(wallet))
	}
	return ethereum.Log{
		Address:     strings.ToLower(addr),
		Topics:      topics,
		Data:        "0x",
		BlockNumber: block,
		TxHash:      "0xtx" + string(rune('a'+index)),
		LogIndex:    index,
	}
}

// staticSource returns fixed transactions.
type staticSource struct {
	txs []domain.Transaction
	err error
}

func (s *staticSource) Fetch(_ context.Context, _ []string) ([]domain.Transaction, error) {
	return append([]domain.Transaction(nil), s.txs...), s.err
}

// orderValidatingStore wraps a TransactionStore and validates ordering in InsertBulk.
type orderValidatingStore struct {
	storage.TransactionStore
}

func (s *orderValidatingStore) InsertBulk(ctx context.Context, txs []*domain.Transaction) error {
	vals := make([]domain.Transaction, len(txs))
	for i, tx := range txs {
		vals[i] = *tx
	}
	if err := ValidateOrdering(vals); err != nil {
		return err
	}
	return s.TransactionStore.InsertBulk(ctx, txs)
}

// logOf rebuilds the raw log a transaction was decoded from.
func logOf(tx domain.Transaction) ethereum.Log {
	return ethereum.Log{
		Address:     tx.MarketAddress,
		Topics:      tx.Topics,
		Data:        tx.Data,
		BlockNumber: tx.BlockNumber,
		TxHash:      tx.TxHash,
		LogIndex:    tx.LogIndex,
	}
}
