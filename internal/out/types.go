package out

import (
	"encoding/json"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/idhash"
)

// Event types.
const (
	TypeWalletScore = "wallet_score"
	TypeRunSummary  = "run_summary"
)

// Envelope wraps every published event.
type Envelope struct {
	Type string          `json:"type"` // e.g. "wallet_score"
	TS   int64           `json:"ts"`   // unix milli
	Data json.RawMessage `json:"data"`
}

// WalletScore is the published score of one wallet.
type WalletScore struct {
	EventID  string `json:"event_id"` // stable per (run, wallet) for idempotent consumers
	RunID    string `json:"run_id"`
	WalletID string `json:"wallet_id"`
	RawScore int    `json:"raw_score"`
	Score    int    `json:"score"`
	Category string `json:"category"`
}

// PartitionKey keys score events by wallet.
func (w WalletScore) PartitionKey() string { return w.WalletID }

// NewWalletScore converts a persisted score record.
func NewWalletScore(r domain.ScoreRecord) WalletScore {
	return WalletScore{
		EventID:  idhash.ComputeEventID(r.RunID, r.WalletID),
		RunID:    r.RunID,
		WalletID: r.WalletID,
		RawScore: r.RawScore,
		Score:    r.NormalizedScore,
		Category: string(r.Category),
	}
}

// RunSummary is the published summary of one run.
type RunSummary struct {
	RunID        string         `json:"run_id"`
	TotalWallets int            `json:"total_wallets"`
	Mean         float64        `json:"mean"`
	Median       float64        `json:"median"`
	StdDev       float64        `json:"std_dev"`
	Min          int            `json:"min"`
	Max          int            `json:"max"`
	Distribution map[string]int `json:"distribution"`
}

// PartitionKey keys summary events by run.
func (r RunSummary) PartitionKey() string { return r.RunID }

// NewRunSummary converts a batch summary.
func NewRunSummary(runID string, s domain.Summary) RunSummary {
	dist := make(map[string]int, len(s.Distribution))
	for c, n := range s.Distribution {
		dist[string(c)] = n
	}
	return RunSummary{
		RunID:        runID,
		TotalWallets: s.TotalWallets,
		Mean:         s.Mean,
		Median:       s.Median,
		StdDev:       s.StdDev,
		Min:          s.Min,
		Max:          s.Max,
		Distribution: dist,
	}
}
