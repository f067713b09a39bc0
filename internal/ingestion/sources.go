// Package ingestion collects lending-protocol transactions for wallets from
// simulated fixtures, chain APIs or storage, and persists them.
package ingestion

import (
	"context"

	"wallet-risk-lab/internal/domain"
)

// TransactionSource provides transactions for a set of wallets.
type TransactionSource interface {
	// Fetch returns transactions of the given wallets.
	// Transactions may be unordered; consumers enforce deterministic ordering.
	Fetch(ctx context.Context, wallets []string) ([]domain.Transaction, error)
}

// Source names used in logs and metrics.
const (
	SourceSimulated = "simulated"
	SourceEtherscan = "etherscan"
	SourceRPC       = "rpc"
	SourceStore     = "store"
)
