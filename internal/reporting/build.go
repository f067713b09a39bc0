package reporting

import (
	"sort"
	"time"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/riskconfig"
	"wallet-risk-lab/internal/scoring"
)

// Run carries the outcome of one scoring run to be reported.
type Run struct {
	RunID       string
	GeneratedAt time.Time
	DataSource  string
	Scores      []domain.Score // normalized
	Config      riskconfig.Config
	TopN        int // 0 uses DefaultTopN
}

var componentText = map[string]struct{ label, rationale string }{
	riskconfig.ComponentBorrowSupplyRatio:  {"Borrow-to-Supply Ratio", "Primary risk metric for leverage"},
	riskconfig.ComponentLiquidationCount:   {"Liquidation Count", "Historical risk event indicator"},
	riskconfig.ComponentInactivityDays:     {"Inactivity Days", "Activity level indicator"},
	riskconfig.ComponentRepaymentFrequency: {"Repayment Frequency", "Behavioral risk indicator"},
	riskconfig.ComponentVolatileAssetUsage: {"Volatile Asset Usage", "Asset-specific risk"},
	riskconfig.ComponentProtocolVersion:    {"Protocol Version", "Technology risk"},
	riskconfig.ComponentCollateralFactor:   {"Collateral Factor", "Safety margin indicator"},
}

// Build assembles a report from a run. Scores are not modified.
func Build(run Run) *Report {
	topN := run.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	summary := scoring.Summarize(run.Scores)

	return &Report{
		GeneratedAt:  run.GeneratedAt,
		RunID:        run.RunID,
		DataSource:   run.DataSource,
		Summary:      summary,
		Distribution: buildDistribution(summary),
		BaseScore:    run.Config.BaseScore,
		Weights:      buildWeights(run.Config.Weights),
		HighestRisk:  lowestScores(run.Scores, topN),
		LowestRisk:   highestScores(run.Scores, topN),
	}
}

func buildDistribution(s domain.Summary) []DistributionRow {
	rows := make([]DistributionRow, 0, len(domain.RiskCategories))
	for _, c := range domain.RiskCategories {
		row := DistributionRow{Category: c, Count: s.Distribution[c]}
		if s.TotalWallets > 0 {
			row.Percent = float64(row.Count) / float64(s.TotalWallets) * 100
		}
		rows = append(rows, row)
	}
	return rows
}

func buildWeights(w riskconfig.Weights) []WeightRow {
	rows := make([]WeightRow, 0, len(riskconfig.Components))
	for _, c := range riskconfig.Components {
		text := componentText[c]
		rows = append(rows, WeightRow{
			Component: c,
			Label:     text.label,
			Weight:    w[c],
			Rationale: text.rationale,
		})
	}
	return rows
}

// lowestScores returns the n lowest scores, ties by wallet ID.
func lowestScores(scores []domain.Score, n int) []domain.Score {
	sorted := append([]domain.Score(nil), scores...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score < sorted[j].Score
		}
		return sorted[i].WalletID < sorted[j].WalletID
	})
	return head(sorted, n)
}

// highestScores returns the n highest scores, ties by wallet ID.
func highestScores(scores []domain.Score, n int) []domain.Score {
	sorted := append([]domain.Score(nil), scores...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].WalletID < sorted[j].WalletID
	})
	return head(sorted, n)
}

func head(scores []domain.Score, n int) []domain.Score {
	if len(scores) > n {
		return scores[:n]
	}
	return scores
}
