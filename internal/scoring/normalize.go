package scoring

import "wallet-risk-lab/internal/domain"

// DegenerateScore is assigned to every wallet when all raw scores are equal.
const DegenerateScore = 500

// Normalize rescales scores linearly so the batch minimum maps to 0 and the
// batch maximum to 1000, truncating to integers. The result depends on the
// batch: the same raw score can normalize differently alongside other wallets.
func Normalize(scores []domain.Score) []domain.Score {
	if len(scores) == 0 {
		return []domain.Score{}
	}

	lo, hi := scores[0].Score, scores[0].Score
	for _, s := range scores[1:] {
		lo = min(lo, s.Score)
		hi = max(hi, s.Score)
	}

	out := make([]domain.Score, len(scores))
	for i, s := range scores {
		out[i] = domain.Score{WalletID: s.WalletID, Score: DegenerateScore}
		if hi > lo {
			out[i].Score = int(int64(s.Score-lo) * MaxScore / int64(hi-lo))
		}
	}
	return out
}

// Categorize maps a score to its risk label.
func Categorize(score int) domain.RiskCategory {
	switch {
	case score >= 800:
		return domain.RiskVeryLow
	case score >= 600:
		return domain.RiskLow
	case score >= 400:
		return domain.RiskModerate
	case score >= 200:
		return domain.RiskHigh
	default:
		return domain.RiskVeryHigh
	}
}
