package ingestion

import (
	"errors"
	"sort"

	"wallet-risk-lab/internal/domain"
)

// ErrInvalidOrdering is returned when transactions are not properly ordered.
var ErrInvalidOrdering = errors.New("transactions are not in deterministic order")

// SortTransactions orders transactions by
// (timestamp ASC, block ASC, log_index ASC, tx_hash ASC, wallet ASC).
func SortTransactions(txs []domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return compareTransactions(&txs[i], &txs[j]) < 0
	})
}

// ValidateOrdering checks that transactions are strictly ordered.
// Returns ErrInvalidOrdering if not.
func ValidateOrdering(txs []domain.Transaction) error {
	for i := 1; i < len(txs); i++ {
		if compareTransactions(&txs[i-1], &txs[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareTransactions returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareTransactions(a, b *domain.Transaction) int {
	if c := compareInt64(a.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	if c := compareInt64(a.BlockNumber, b.BlockNumber); c != 0 {
		return c
	}
	if c := compareInt64(int64(a.LogIndex), int64(b.LogIndex)); c != 0 {
		return c
	}
	if c := compareString(a.TxHash, b.TxHash); c != 0 {
		return c
	}
	return compareString(domain.NormalizeAddress(a.Wallet), domain.NormalizeAddress(b.Wallet))
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// groupByWallet splits transactions per normalized wallet and returns the
// wallets in ascending order.
func groupByWallet(txs []domain.Transaction) ([]string, map[string][]domain.Transaction) {
	groups := make(map[string][]domain.Transaction)
	for _, tx := range txs {
		w := domain.NormalizeAddress(tx.Wallet)
		groups[w] = append(groups[w], tx)
	}
	wallets := make([]string, 0, len(groups))
	for w := range groups {
		wallets = append(wallets, w)
	}
	sort.Strings(wallets)
	return wallets, groups
}

// normalizeWallets lower-cases wallets, dropping blanks and duplicates
// while keeping first-seen order.
func normalizeWallets(wallets []string) []string {
	seen := make(map[string]struct{}, len(wallets))
	out := make([]string, 0, len(wallets))
	for _, w := range wallets {
		n := domain.NormalizeAddress(w)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
