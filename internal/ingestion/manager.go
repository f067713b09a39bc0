package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/observability"
	"wallet-risk-lab/internal/storage"
)

// Manager orchestrates ingestion from a source to storage.
// It enforces deterministic ordering and uses the storage layer for
// duplicate rejection.
type Manager struct {
	source  TransactionSource
	store   storage.TransactionStore
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	Source  TransactionSource
	Store   storage.TransactionStore
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// IngestResult summarizes one ingestion pass.
type IngestResult struct {
	Wallets    int      // wallets with at least one fetched transaction
	Fetched    int      // transactions returned by the source
	Stored     int      // transactions newly stored
	Duplicates int      // transactions already present
	Errors     []string // non-fatal per-wallet storage errors
}

// NewManager creates a new ingestion manager.
func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		source:  opts.Source,
		store:   opts.Store,
		logger:  logger,
		metrics: opts.Metrics,
		now:     time.Now,
	}
}

// Ingest fetches transactions of wallets and stores them wallet by wallet.
// Each wallet's batch is sorted by (timestamp, block, log_index) before
// InsertBulk. A batch rejected with ErrDuplicateKey is retried row by row
// so already stored transactions are counted and skipped.
// A source error is returned; storage errors are collected per wallet.
func (m *Manager) Ingest(ctx context.Context, wallets []string) (IngestResult, error) {
	var res IngestResult
	if m.source == nil || m.store == nil {
		return res, nil
	}

	txs, err := m.source.Fetch(ctx, wallets)
	if err != nil {
		return res, fmt.Errorf("fetch transactions: %w", err)
	}
	res.Fetched = len(txs)
	if len(txs) == 0 {
		return res, nil
	}

	order, groups := groupByWallet(txs)
	res.Wallets = len(order)

	for _, wallet := range order {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		batch := groups[wallet]
		SortTransactions(batch)

		stored, dups, err := m.storeWallet(ctx, batch)
		res.Stored += stored
		res.Duplicates += dups
		if err != nil {
			m.logger.Warn("store wallet transactions failed", "wallet", wallet, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", wallet, err))
		}
	}

	m.metrics.RecordStored(res.Stored)
	m.metrics.RecordDuplicates(res.Duplicates)
	if len(res.Errors) == 0 {
		m.metrics.MarkIngestion(m.now())
	}

	m.logger.Info("ingestion complete",
		"wallets", res.Wallets,
		"fetched", res.Fetched,
		"stored", res.Stored,
		"duplicates", res.Duplicates,
		"errors", len(res.Errors),
	)
	return res, nil
}

func (m *Manager) storeWallet(ctx context.Context, batch []domain.Transaction) (stored, dups int, err error) {
	ptrs := make([]*domain.Transaction, len(batch))
	for i := range batch {
		ptrs[i] = &batch[i]
	}

	err = m.store.InsertBulk(ctx, ptrs)
	if err == nil {
		return len(ptrs), 0, nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return 0, 0, err
	}

	// The batch overlaps stored rows (or repeats a key); insert one by one.
	for _, tx := range ptrs {
		switch err := m.store.Insert(ctx, tx); {
		case err == nil:
			stored++
		case errors.Is(err, storage.ErrDuplicateKey):
			dups++
		default:
			return stored, dups, err
		}
	}
	return stored, dups, nil
}
