package storage

import (
	"context"

	"wallet-risk-lab/internal/domain"
)

// TransactionStore persists decoded lending-protocol transactions.
// Primary key: (wallet, tx_hash, log_index).
type TransactionStore interface {
	// Insert adds a new transaction. Returns ErrDuplicateKey if the key exists.
	Insert(ctx context.Context, tx *domain.Transaction) error

	// InsertBulk adds multiple transactions atomically.
	// Fails the entire batch on any duplicate.
	InsertBulk(ctx context.Context, txs []*domain.Transaction) error

	// GetByWallet retrieves all transactions of a wallet,
	// ordered by timestamp ASC, block ASC, log index ASC.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.Transaction, error)

	// GetByWallets retrieves transactions of several wallets,
	// ordered by wallet ASC and then as GetByWallet.
	GetByWallets(ctx context.Context, wallets []string) ([]*domain.Transaction, error)

	// CountByWallet returns the number of stored transactions of a wallet.
	CountByWallet(ctx context.Context, wallet string) (int, error)
}

// FeatureStore persists extracted features per pipeline run.
// Primary key: (run_id, wallet_id).
type FeatureStore interface {
	// InsertBulk adds feature records. Fails the entire batch on any duplicate.
	InsertBulk(ctx context.Context, records []*domain.FeatureRecord) error

	// GetByRun retrieves all records of a run, ordered by wallet ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.FeatureRecord, error)

	// GetLatest retrieves the most recent record of a wallet.
	// Returns ErrNotFound if the wallet has none.
	GetLatest(ctx context.Context, wallet string) (*domain.FeatureRecord, error)
}

// ScoreStore persists scores per pipeline run.
// Primary key: (run_id, wallet_id).
type ScoreStore interface {
	// InsertBulk adds score records. Fails the entire batch on any duplicate.
	InsertBulk(ctx context.Context, records []*domain.ScoreRecord) error

	// GetByRun retrieves all scores of a run,
	// ordered by normalized score DESC, wallet ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.ScoreRecord, error)

	// GetLatest retrieves the most recent score of a wallet.
	// Returns ErrNotFound if the wallet has none.
	GetLatest(ctx context.Context, wallet string) (*domain.ScoreRecord, error)
}
