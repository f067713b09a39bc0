package ingestion

import (
	"context"
	"fmt"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
)

// StoreSource reads previously ingested transactions from storage.
type StoreSource struct {
	store storage.TransactionStore
}

// NewStoreSource creates a source over store.
func NewStoreSource(store storage.TransactionStore) *StoreSource {
	return &StoreSource{store: store}
}

var _ TransactionSource = (*StoreSource)(nil)

// Fetch returns the stored transactions of wallets.
func (s *StoreSource) Fetch(ctx context.Context, wallets []string) ([]domain.Transaction, error) {
	wallets = normalizeWallets(wallets)
	if len(wallets) == 0 {
		return nil, nil
	}

	stored, err := s.store.GetByWallets(ctx, wallets)
	if err != nil {
		return nil, fmt.Errorf("load stored transactions: %w", err)
	}

	txs := make([]domain.Transaction, 0, len(stored))
	for _, tx := range stored {
		txs = append(txs, *tx)
	}
	return txs, nil
}
