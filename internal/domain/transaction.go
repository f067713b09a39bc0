package domain

import "strings"

// Transaction represents one logged lending-protocol event involving a wallet.
// Corresponds to wallet_transactions table in PostgreSQL.
type Transaction struct {
	Wallet        string   // lowercase hex address
	Market        string   // market symbol ("cDAI", "USDC") or event label
	MarketAddress string   // market contract address
	BlockNumber   int64    // block the log was emitted in
	TxHash        string   // transaction hash
	LogIndex      int      // index of log within block
	Timestamp     int64    // block time, Unix milliseconds
	Topics        []string // raw log topics (hex)
	Data          string   // raw log data (hex)
	Kind          TxKind   // assigned by the decoder at ingestion time
}

// TxKind is the protocol action a transaction represents.
type TxKind string

const (
	TxKindSupply      TxKind = "supply"
	TxKindWithdraw    TxKind = "withdraw"
	TxKindBorrow      TxKind = "borrow"
	TxKindRepay       TxKind = "repay"
	TxKindLiquidation TxKind = "liquidation"
	TxKindUnknown     TxKind = "unknown"
)

// String returns the string representation of TxKind.
func (k TxKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a known value. Empty is treated as unknown.
func (k TxKind) IsValid() bool {
	switch k {
	case TxKindSupply, TxKindWithdraw, TxKindBorrow, TxKindRepay, TxKindLiquidation, TxKindUnknown:
		return true
	}
	return false
}

// ParseTxKind maps a stored value to a TxKind, falling back to TxKindUnknown.
func ParseTxKind(s string) TxKind {
	k := TxKind(strings.ToLower(strings.TrimSpace(s)))
	if k.IsValid() {
		return k
	}
	return TxKindUnknown
}

// NormalizeAddress lowercases and trims an address for comparison.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
