package reporting

import (
	"time"

	"wallet-risk-lab/internal/domain"
)

// DefaultTopN is the number of wallets listed per risk extreme.
const DefaultTopN = 10

// Report represents the risk analysis report structure.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	DataSource  string

	// Executive Summary
	Summary domain.Summary

	// Risk Distribution (fixed category order)
	Distribution []DistributionRow

	// Methodology
	BaseScore float64
	Weights   []WeightRow // report component order

	// Extremes
	HighestRisk []domain.Score // lowest scores first
	LowestRisk  []domain.Score // highest scores first
}

// DistributionRow is one risk category bucket.
type DistributionRow struct {
	Category domain.RiskCategory
	Count    int
	Percent  float64 // share of all wallets, 0 when there are none
}

// WeightRow describes one scoring component.
type WeightRow struct {
	Component string
	Label     string
	Weight    float64
	Rationale string
}

// DetailRow is one wallet of the detailed export.
type DetailRow struct {
	Features domain.Features
	RawScore int
	Score    int
	Category domain.RiskCategory
}
