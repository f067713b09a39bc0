package domain

// DefaultInactivityDays is the inactivity assigned to wallets with no activity.
const DefaultInactivityDays = 365

// Features is the derived behavioural summary of one wallet.
// Corresponds to wallet_features table in ClickHouse.
type Features struct {
	WalletID                string
	TotalTransactions       int
	FirstTransactionDate    *int64 // Unix ms, nil when no activity
	LastTransactionDate     *int64 // Unix ms, nil when no activity
	DaysSinceLastActivity   int
	TotalSuppliedUSD        float64
	TotalBorrowedUSD        float64
	SupplyToBorrowRatio     float64 // borrowed / supplied, 0 without supply
	NumberOfLiquidations    int
	RepaymentFrequency      float64 // repayments per 30 days
	VolatileAssetUsage      float64 // fraction in [0,1]
	ProtocolVersionUsage    ProtocolVersion
	CollateralFactorAverage float64 // fraction in [0,1]
	BorrowingBehavior       BorrowingBehavior
	HealthFactorTrend       HealthTrend
}

// DefaultFeatures returns the fixed record for a wallet with no transactions.
func DefaultFeatures(wallet string) Features {
	return Features{
		WalletID:              wallet,
		DaysSinceLastActivity: DefaultInactivityDays,
		ProtocolVersionUsage:  ProtocolVersionNone,
		BorrowingBehavior:     BorrowingNone,
		HealthFactorTrend:     HealthTrendStable,
	}
}

// ProtocolVersion is the lending market generation a wallet mostly uses.
type ProtocolVersion string

const (
	ProtocolVersionV2      ProtocolVersion = "v2"
	ProtocolVersionV3      ProtocolVersion = "v3"
	ProtocolVersionUnknown ProtocolVersion = "unknown"
	ProtocolVersionNone    ProtocolVersion = "none"
)

// BorrowingBehavior classifies how a wallet borrows.
type BorrowingBehavior string

const (
	BorrowingSupplierOnly        BorrowingBehavior = "supplier_only"
	BorrowingBorrowerOnly        BorrowingBehavior = "borrower_only"
	BorrowingResponsibleBorrower BorrowingBehavior = "responsible_borrower"
	BorrowingRiskyBorrower       BorrowingBehavior = "risky_borrower"
	BorrowingNone                BorrowingBehavior = "none"
)

// HealthTrend is the direction of the volatile-asset proxy for health factor.
type HealthTrend string

const (
	HealthTrendImproving     HealthTrend = "improving"
	HealthTrendDeteriorating HealthTrend = "deteriorating"
	HealthTrendStable        HealthTrend = "stable"
	HealthTrendUnknown       HealthTrend = "unknown"
)

// FeatureRecord is a persisted feature set for one pipeline run.
type FeatureRecord struct {
	RunID     string
	CreatedAt int64 // Unix ms
	Features
}
