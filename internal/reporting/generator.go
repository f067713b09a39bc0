package reporting

import (
	"context"
	"fmt"
	"time"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/riskconfig"
	"wallet-risk-lab/internal/storage"
)

// Generator produces reports from stored score runs.
type Generator struct {
	scoreStore   storage.ScoreStore
	featureStore storage.FeatureStore // optional, fills detailed rows
	cfg          riskconfig.Config
	topN         int
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. featureStore may be nil.
func NewGenerator(scoreStore storage.ScoreStore, featureStore storage.FeatureStore, cfg riskconfig.Config) *Generator {
	return &Generator{
		scoreStore:   scoreStore,
		featureStore: featureStore,
		cfg:          cfg,
		topN:         DefaultTopN,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithTopN sets the number of wallets listed per risk extreme.
func (g *Generator) WithTopN(n int) *Generator {
	g.topN = n
	return g
}

// Generate builds the report and detailed rows of a stored run.
// Returns storage.ErrNotFound when the run holds no scores.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, []DetailRow, error) {
	if runID == "" {
		return nil, nil, fmt.Errorf("run id: %w", storage.ErrInvalidInput)
	}

	records, err := g.scoreStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("run %s: %w", runID, storage.ErrNotFound)
	}

	features, err := g.loadFeatures(ctx, runID)
	if err != nil {
		return nil, nil, err
	}

	scores := make([]domain.Score, len(records))
	details := make([]DetailRow, len(records))
	for i, rec := range records {
		f, ok := features[rec.WalletID]
		if !ok {
			f = domain.Features{WalletID: rec.WalletID}
		}
		scores[i] = domain.Score{WalletID: rec.WalletID, Score: rec.NormalizedScore}
		details[i] = DetailRow{
			Features: f,
			RawScore: rec.RawScore,
			Score:    rec.NormalizedScore,
			Category: rec.Category,
		}
	}

	report := Build(Run{
		RunID:       runID,
		GeneratedAt: g.now(),
		DataSource:  "store",
		Scores:      scores,
		Config:      g.cfg,
		TopN:        g.topN,
	})
	return report, details, nil
}

func (g *Generator) loadFeatures(ctx context.Context, runID string) (map[string]domain.Features, error) {
	out := make(map[string]domain.Features)
	if g.featureStore == nil {
		return out, nil
	}
	records, err := g.featureStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load features of run %s: %w", runID, err)
	}
	for _, rec := range records {
		out[rec.WalletID] = rec.Features
	}
	return out, nil
}
