// Package verification re-scores stored runs and checks that the stored
// scores match what the current model produces from the stored features.
package verification

import (
	"context"

	"wallet-risk-lab/internal/domain"
)

// FieldDivergence represents a mismatch between stored and recomputed values.
type FieldDivergence struct {
	Field    string // field name
	Expected any    // stored value
	Actual   any    // recomputed value
}

// VerificationResult contains the result of verifying one wallet of a run.
type VerificationResult struct {
	WalletID    string
	Match       bool // true if all fields match
	Divergences []FieldDivergence
	StoredScore int // stored normalized score
	ActualScore int // recomputed normalized score
}

// VerificationReport contains results for a whole run.
type VerificationReport struct {
	RunID            string
	TotalWallets     int
	MatchedWallets   int
	DivergentWallets int
	Results          []VerificationResult // ordered as stored scores
}

// Verifier checks stored runs.
type Verifier interface {
	// VerifyRun re-scores the stored features of a run and compares every
	// stored score record against the recomputed one.
	VerifyRun(ctx context.Context, runID string) (*VerificationReport, error)
}

// CompareScoreRecords compares a stored and a recomputed record and returns divergences.
func CompareScoreRecords(stored, actual domain.ScoreRecord) []FieldDivergence {
	var divergences []FieldDivergence

	if stored.WalletID != actual.WalletID {
		divergences = append(divergences, FieldDivergence{
			Field:    "WalletID",
			Expected: stored.WalletID,
			Actual:   actual.WalletID,
		})
	}

	if stored.RawScore != actual.RawScore {
		divergences = append(divergences, FieldDivergence{
			Field:    "RawScore",
			Expected: stored.RawScore,
			Actual:   actual.RawScore,
		})
	}

	if stored.NormalizedScore != actual.NormalizedScore {
		divergences = append(divergences, FieldDivergence{
			Field:    "NormalizedScore",
			Expected: stored.NormalizedScore,
			Actual:   actual.NormalizedScore,
		})
	}

	if stored.Category != actual.Category {
		divergences = append(divergences, FieldDivergence{
			Field:    "Category",
			Expected: stored.Category,
			Actual:   actual.Category,
		})
	}

	return divergences
}
