package clickhouse

import (
	"context"
	"fmt"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
)

// ScoreStore implements storage.ScoreStore using ClickHouse.
// Used for score history analytics across runs.
type ScoreStore struct {
	conn *Conn
}

// NewScoreStore creates a new ScoreStore.
func NewScoreStore(conn *Conn) *ScoreStore {
	return &ScoreStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ScoreStore = (*ScoreStore)(nil)

// InsertBulk adds multiple scores. Fails entire batch on duplicate.
func (s *ScoreStore) InsertBulk(ctx context.Context, records []*domain.ScoreRecord) error {
	if len(records) == 0 {
		return nil
	}

	type key struct {
		runID  string
		wallet string
	}
	seen := make(map[key]struct{})
	for _, r := range records {
		if r == nil || r.RunID == "" || r.WalletID == "" {
			return storage.ErrInvalidInput
		}
		k := key{r.RunID, domain.NormalizeAddress(r.WalletID)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, r := range records {
		exists, err := existsByRun(ctx, s.conn, "wallet_scores", r.RunID, r.WalletID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO wallet_scores (
			run_id, wallet_id, raw_score, normalized_score, category, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.RunID, domain.NormalizeAddress(r.WalletID),
			uint16(r.RawScore), uint16(r.NormalizedScore),
			string(r.Category), r.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRun retrieves all scores of a run, ordered by normalized score DESC, wallet ASC.
func (s *ScoreStore) GetByRun(ctx context.Context, runID string) ([]*domain.ScoreRecord, error) {
	query := `
		SELECT run_id, wallet_id, raw_score, normalized_score, category, created_at
		FROM wallet_scores FINAL
		WHERE run_id = ?
		ORDER BY normalized_score DESC, wallet_id ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query scores by run: %w", err)
	}
	defer rows.Close()

	return scanScoreRecords(rows)
}

// GetLatest retrieves the most recent score of a wallet.
func (s *ScoreStore) GetLatest(ctx context.Context, wallet string) (*domain.ScoreRecord, error) {
	query := `
		SELECT run_id, wallet_id, raw_score, normalized_score, category, created_at
		FROM wallet_scores FINAL
		WHERE wallet_id = ?
		ORDER BY created_at DESC, run_id DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, domain.NormalizeAddress(wallet))
	if err != nil {
		return nil, fmt.Errorf("query latest score: %w", err)
	}
	defer rows.Close()

	records, err := scanScoreRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, storage.ErrNotFound
	}
	return records[0], nil
}

// scanScoreRecords scans multiple rows.
func scanScoreRecords(rows chRows) ([]*domain.ScoreRecord, error) {
	var records []*domain.ScoreRecord

	for rows.Next() {
		var r domain.ScoreRecord
		var raw, normalized uint16
		var category string

		if err := rows.Scan(&r.RunID, &r.WalletID, &raw, &normalized, &category, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet scores row: %w", err)
		}
		r.RawScore = int(raw)
		r.NormalizedScore = int(normalized)
		r.Category = domain.RiskCategory(category)

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet scores rows: %w", err)
	}

	return records, nil
}
