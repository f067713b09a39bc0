package verification

import (
	"context"
	"errors"
	"fmt"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/riskconfig"
	"wallet-risk-lab/internal/scoring"
	"wallet-risk-lab/internal/storage"
)

// ErrRunNotFound is returned when a run has no stored scores.
var ErrRunNotFound = errors.New("run not found")

// RunVerifier implements Verifier over a feature and a score store.
type RunVerifier struct {
	featureStore storage.FeatureStore
	scoreStore   storage.ScoreStore
	scorer       *scoring.Scorer
}

var _ Verifier = (*RunVerifier)(nil)

// RunVerifierOptions contains configuration for creating a RunVerifier.
type RunVerifierOptions struct {
	FeatureStore storage.FeatureStore
	ScoreStore   storage.ScoreStore
	Config       riskconfig.Config // model to re-score with
}

// NewRunVerifier creates a new RunVerifier.
func NewRunVerifier(opts RunVerifierOptions) *RunVerifier {
	return &RunVerifier{
		featureStore: opts.FeatureStore,
		scoreStore:   opts.ScoreStore,
		scorer:       scoring.NewScorer(opts.Config),
	}
}

// VerifyRun re-scores the run's stored features and compares each score record.
// Normalization is recomputed over the wallets that have stored features,
// so a wallet missing its features can shift the scores of the others.
func (v *RunVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationReport, error) {
	// 1. Load stored scores
	stored, err := v.scoreStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}
	if len(stored) == 0 {
		return nil, ErrRunNotFound
	}

	// 2. Load stored features
	featureRecs, err := v.featureStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}

	// 3. Re-score
	feats := make([]domain.Features, len(featureRecs))
	for i, r := range featureRecs {
		feats[i] = r.Features
	}
	raw := v.scorer.ScoreAll(feats)
	normalized := scoring.Normalize(raw)

	actual := make(map[string]domain.ScoreRecord, len(raw))
	for i := range raw {
		actual[raw[i].WalletID] = domain.ScoreRecord{
			RunID:           runID,
			WalletID:        raw[i].WalletID,
			RawScore:        raw[i].Score,
			NormalizedScore: normalized[i].Score,
			Category:        scoring.Categorize(normalized[i].Score),
		}
	}

	// 4. Compare
	report := &VerificationReport{
		RunID:        runID,
		TotalWallets: len(stored),
		Results:      make([]VerificationResult, 0, len(stored)),
	}

	for _, s := range stored {
		result := VerificationResult{
			WalletID:    s.WalletID,
			StoredScore: s.NormalizedScore,
		}

		a, ok := actual[s.WalletID]
		if !ok {
			result.Divergences = []FieldDivergence{
				{Field: "Features", Expected: "stored", Actual: "missing"},
			}
		} else {
			result.ActualScore = a.NormalizedScore
			result.Divergences = CompareScoreRecords(*s, a)
		}

		result.Match = len(result.Divergences) == 0
		if result.Match {
			report.MatchedWallets++
		} else {
			report.DivergentWallets++
		}
		report.Results = append(report.Results, result)
	}

	return report, nil
}
