package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const insertTransactionQuery = `
	INSERT INTO wallet_transactions (
		wallet, market, market_address, block_number, tx_hash, log_index, timestamp, topics, data, kind
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

const selectTransactionColumns = `
	SELECT wallet, market, market_address, block_number, tx_hash, log_index, timestamp, topics, data, kind
	FROM wallet_transactions
`

func transactionArgs(tx *domain.Transaction) []any {
	topics := tx.Topics
	if topics == nil {
		topics = []string{}
	}
	kind := tx.Kind
	if kind == "" {
		kind = domain.TxKindUnknown
	}
	return []any{
		domain.NormalizeAddress(tx.Wallet),
		tx.Market,
		domain.NormalizeAddress(tx.MarketAddress),
		tx.BlockNumber,
		domain.NormalizeAddress(tx.TxHash),
		tx.LogIndex,
		tx.Timestamp,
		topics,
		tx.Data,
		string(kind),
	}
}

// Insert adds a new transaction. Returns ErrDuplicateKey if (wallet, tx_hash, log_index) exists.
func (s *TransactionStore) Insert(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.Wallet == "" || tx.TxHash == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTransactionQuery, transactionArgs(tx)...)
	if err != nil {
		if sErr := storageError(err); sErr != nil {
			return sErr
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// InsertBulk adds multiple transactions atomically. Fails entire batch on any duplicate.
func (s *TransactionStore) InsertBulk(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	for _, t := range txs {
		if t == nil || t.Wallet == "" || t.TxHash == "" {
			return storage.ErrInvalidInput
		}
	}

	dbtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbtx.Rollback(ctx)

	for _, t := range txs {
		if _, err := dbtx.Exec(ctx, insertTransactionQuery, transactionArgs(t)...); err != nil {
			if sErr := storageError(err); sErr != nil {
				return sErr
			}
			return fmt.Errorf("insert transaction in bulk: %w", err)
		}
	}

	if err := dbtx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByWallet retrieves all transactions of a wallet in chronological order.
func (s *TransactionStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.Transaction, error) {
	query := selectTransactionColumns + `
		WHERE wallet = $1
		ORDER BY timestamp ASC, block_number ASC, log_index ASC, tx_hash ASC
	`

	rows, err := s.pool.Query(ctx, query, domain.NormalizeAddress(wallet))
	if err != nil {
		return nil, fmt.Errorf("get transactions by wallet: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetByWallets retrieves transactions of several wallets, grouped by wallet ASC.
func (s *TransactionStore) GetByWallets(ctx context.Context, wallets []string) ([]*domain.Transaction, error) {
	if len(wallets) == 0 {
		return nil, nil
	}
	normalized := make([]string, len(wallets))
	for i, w := range wallets {
		normalized[i] = domain.NormalizeAddress(w)
	}

	query := selectTransactionColumns + `
		WHERE wallet = ANY($1)
		ORDER BY wallet ASC, timestamp ASC, block_number ASC, log_index ASC, tx_hash ASC
	`

	rows, err := s.pool.Query(ctx, query, normalized)
	if err != nil {
		return nil, fmt.Errorf("get transactions by wallets: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// CountByWallet returns the number of stored transactions of a wallet.
func (s *TransactionStore) CountByWallet(ctx context.Context, wallet string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM wallet_transactions WHERE wallet = $1`,
		domain.NormalizeAddress(wallet),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return count, nil
}

// scanTransactions scans multiple rows into a slice of Transaction.
func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction

	for rows.Next() {
		var tx domain.Transaction
		var kind string

		err := rows.Scan(
			&tx.Wallet,
			&tx.Market,
			&tx.MarketAddress,
			&tx.BlockNumber,
			&tx.TxHash,
			&tx.LogIndex,
			&tx.Timestamp,
			&tx.Topics,
			&tx.Data,
			&kind,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		tx.Kind = domain.ParseTxKind(kind)

		txs = append(txs, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}

	return txs, nil
}
