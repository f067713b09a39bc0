// Package scoring turns wallet features into bounded risk scores.
// Higher score means lower risk.
package scoring

import (
	"math"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/riskconfig"
)

// Score bounds.
const (
	MinScore = 0
	MaxScore = 1000
)

// Breakdown holds the unweighted contribution of each component.
type Breakdown map[string]float64

// Scorer computes weighted heuristic scores. Safe for concurrent use.
type Scorer struct {
	cfg riskconfig.Config
}

// NewScorer creates a scorer using the weights and base score of cfg.
func NewScorer(cfg riskconfig.Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Components returns the raw contribution of each component for f.
func (s *Scorer) Components(f domain.Features) Breakdown {
	return Breakdown{
		riskconfig.ComponentBorrowSupplyRatio:  scoreBorrowSupplyRatio(f.SupplyToBorrowRatio),
		riskconfig.ComponentLiquidationCount:   scoreLiquidations(f.NumberOfLiquidations),
		riskconfig.ComponentInactivityDays:     scoreInactivity(f.DaysSinceLastActivity),
		riskconfig.ComponentRepaymentFrequency: scoreRepaymentFrequency(f.RepaymentFrequency),
		riskconfig.ComponentVolatileAssetUsage: scoreVolatileUsage(f.VolatileAssetUsage),
		riskconfig.ComponentProtocolVersion:    scoreProtocolVersion(f.ProtocolVersionUsage),
		riskconfig.ComponentCollateralFactor:   scoreCollateralFactor(f.CollateralFactorAverage),
	}
}

// Score returns base + weighted contributions, clamped to [0,1000] and truncated.
// A NaN total, from weights that never passed Validate, scores MinScore.
func (s *Scorer) Score(f domain.Features) int {
	components := s.Components(f)
	weighted := 0.0
	for _, name := range riskconfig.Components {
		weighted += components[name] * s.cfg.Weights[name]
	}
	final := s.cfg.BaseScore + weighted
	if math.IsNaN(final) || final < MinScore {
		final = MinScore
	}
	if final > MaxScore {
		final = MaxScore
	}
	return int(final)
}

// ScoreAll scores every record, preserving input order.
func (s *Scorer) ScoreAll(features []domain.Features) []domain.Score {
	out := make([]domain.Score, len(features))
	for i, f := range features {
		out[i] = domain.Score{WalletID: f.WalletID, Score: s.Score(f)}
	}
	return out
}

func scoreBorrowSupplyRatio(ratio float64) float64 {
	switch {
	case ratio == 0:
		return 0
	case ratio <= 0.3:
		return 100
	case ratio <= 0.5:
		return 50
	case ratio <= 0.7:
		return 0
	case ratio <= 0.9:
		return -50
	default:
		return -100
	}
}

func scoreLiquidations(n int) float64 {
	switch {
	case n == 0:
		return 50
	case n == 1:
		return -25
	case n == 2:
		return -50
	case n <= 5:
		return -75
	default:
		return -100
	}
}

func scoreInactivity(days int) float64 {
	switch {
	case days <= 7:
		return 50
	case days <= 30:
		return 25
	case days <= 90:
		return 0
	case days <= 180:
		return -25
	default:
		return -50
	}
}

func scoreRepaymentFrequency(freq float64) float64 {
	switch {
	case freq >= 2.0:
		return 50
	case freq >= 1.0:
		return 25
	case freq >= 0.5:
		return 0
	case freq > 0:
		return -25
	default:
		return -50
	}
}

func scoreVolatileUsage(usage float64) float64 {
	switch {
	case usage <= 0.1:
		return 50
	case usage <= 0.3:
		return 25
	case usage <= 0.5:
		return 0
	case usage <= 0.7:
		return -25
	default:
		return -50
	}
}

func scoreProtocolVersion(v domain.ProtocolVersion) float64 {
	switch v {
	case domain.ProtocolVersionV3:
		return 25
	case domain.ProtocolVersionNone:
		return -25
	default:
		return 0
	}
}

func scoreCollateralFactor(avg float64) float64 {
	switch {
	case avg >= 0.8:
		return 25
	case avg >= 0.6:
		return 0
	case avg >= 0.4:
		return -25
	default:
		return -50
	}
}
