package domain

// Score pairs a wallet with its integer risk score.
// Higher score means lower risk.
type Score struct {
	WalletID string
	Score    int
}

// ScoreRecord is a persisted score for one pipeline run.
// Corresponds to wallet_scores table.
type ScoreRecord struct {
	RunID           string
	WalletID        string
	RawScore        int
	NormalizedScore int
	Category        RiskCategory
	CreatedAt       int64 // Unix ms
}

// RiskCategory is the label bucket of a score.
type RiskCategory string

const (
	RiskVeryLow  RiskCategory = "Very Low Risk"
	RiskLow      RiskCategory = "Low Risk"
	RiskModerate RiskCategory = "Moderate Risk"
	RiskHigh     RiskCategory = "High Risk"
	RiskVeryHigh RiskCategory = "Very High Risk"
)

// RiskCategories lists categories from lowest to highest risk.
var RiskCategories = []RiskCategory{RiskVeryLow, RiskLow, RiskModerate, RiskHigh, RiskVeryHigh}

// Summary holds batch statistics over scores.
type Summary struct {
	TotalWallets int
	Mean         float64
	Median       float64
	StdDev       float64 // population standard deviation
	Min          int
	Max          int
	Distribution map[RiskCategory]int
}
