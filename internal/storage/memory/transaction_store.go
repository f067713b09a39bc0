package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Transaction // keyed by composite key
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]*domain.Transaction),
	}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// txKey generates a unique key for a transaction.
func txKey(wallet, txHash string, logIndex int) string {
	return fmt.Sprintf("%s|%s|%d", domain.NormalizeAddress(wallet), domain.NormalizeAddress(txHash), logIndex)
}

// cloneTx copies a transaction including its topic slice.
func cloneTx(tx *domain.Transaction) *domain.Transaction {
	c := *tx
	c.Wallet = domain.NormalizeAddress(tx.Wallet)
	if tx.Topics != nil {
		c.Topics = append([]string(nil), tx.Topics...)
	}
	return &c
}

func validTx(tx *domain.Transaction) bool {
	return tx != nil && tx.Wallet != "" && tx.TxHash != ""
}

// Insert adds a new transaction. Returns ErrDuplicateKey if exists.
func (s *TransactionStore) Insert(_ context.Context, tx *domain.Transaction) error {
	if !validTx(tx) {
		return storage.ErrInvalidInput
	}

	key := txKey(tx.Wallet, tx.TxHash, tx.LogIndex)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = cloneTx(tx)
	return nil
}

// InsertBulk adds multiple transactions atomically. Fails entire batch on any duplicate.
func (s *TransactionStore) InsertBulk(_ context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(txs))

	// First pass: check for duplicates (existing + intra-batch)
	for _, tx := range txs {
		if !validTx(tx) {
			return storage.ErrInvalidInput
		}
		key := txKey(tx.Wallet, tx.TxHash, tx.LogIndex)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, tx := range txs {
		s.data[txKey(tx.Wallet, tx.TxHash, tx.LogIndex)] = cloneTx(tx)
	}

	return nil
}

// GetByWallet retrieves all transactions of a wallet in chronological order.
func (s *TransactionStore) GetByWallet(_ context.Context, wallet string) ([]*domain.Transaction, error) {
	wallet = domain.NormalizeAddress(wallet)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.data {
		if tx.Wallet == wallet {
			result = append(result, cloneTx(tx))
		}
	}

	sortTransactions(result)
	return result, nil
}

// GetByWallets retrieves transactions of several wallets, grouped by wallet ASC.
func (s *TransactionStore) GetByWallets(_ context.Context, wallets []string) ([]*domain.Transaction, error) {
	want := make(map[string]struct{}, len(wallets))
	for _, w := range wallets {
		want[domain.NormalizeAddress(w)] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.data {
		if _, ok := want[tx.Wallet]; ok {
			result = append(result, cloneTx(tx))
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Wallet != result[j].Wallet {
			return result[i].Wallet < result[j].Wallet
		}
		return txLess(result[i], result[j])
	})
	return result, nil
}

// CountByWallet returns the number of stored transactions of a wallet.
func (s *TransactionStore) CountByWallet(_ context.Context, wallet string) (int, error) {
	wallet = domain.NormalizeAddress(wallet)

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, tx := range s.data {
		if tx.Wallet == wallet {
			count++
		}
	}
	return count, nil
}

func txLess(a, b *domain.Transaction) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	if a.BlockNumber != b.BlockNumber {
		return a.BlockNumber < b.BlockNumber
	}
	if a.LogIndex != b.LogIndex {
		return a.LogIndex < b.LogIndex
	}
	return a.TxHash < b.TxHash
}

func sortTransactions(txs []*domain.Transaction) {
	sort.Slice(txs, func(i, j int) bool { return txLess(txs[i], txs[j]) })
}
